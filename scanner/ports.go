package scanner

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// InvalidRangeError reports a port specification that cannot be expanded.
type InvalidRangeError struct {
	Spec   string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid port range %q: %s", e.Spec, e.Reason)
}

// ExpandPorts turns "a" or "a-b" into the ascending list of ports it covers.
func ExpandPorts(spec string) ([]int, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, &InvalidRangeError{Spec: spec, Reason: "empty specification"}
	}

	lo, hi := trimmed, trimmed
	if strings.Contains(trimmed, "-") {
		parts := strings.Split(trimmed, "-")
		if len(parts) != 2 {
			return nil, &InvalidRangeError{Spec: spec, Reason: "use startPort-endPort"}
		}
		lo, hi = parts[0], parts[1]
	}

	start, err := parsePort(spec, lo)
	if err != nil {
		return nil, err
	}
	end, err := parsePort(spec, hi)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, &InvalidRangeError{Spec: spec, Reason: "start port must be less than or equal to end port"}
	}

	ports := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports, nil
}

// parsePort accepts only plain decimal digits without sign, inner spaces or
// leading zeros.
func parsePort(spec, token string) (int, error) {
	if !isPlainNumber(token) {
		return 0, &InvalidRangeError{Spec: spec, Reason: fmt.Sprintf("port is not a number: %q", token)}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, &InvalidRangeError{Spec: spec, Reason: fmt.Sprintf("port is not a number: %q", token)}
	}
	if n < MinPort || n > MaxPort {
		return 0, &InvalidRangeError{Spec: spec, Reason: fmt.Sprintf("port %d outside %d-%d", n, MinPort, MaxPort)}
	}
	return n, nil
}

func isPlainNumber(token string) bool {
	if token == "" || len(token) > len("65535") || (token[0] == '0' && len(token) > 1) {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return false
		}
	}
	return true
}
