package scanner

import (
	"encoding/json"
	"strings"
	"time"
)

// PortState is the observed TCP state of a single port.
type PortState string

const (
	StateOpen     PortState = "Open"
	StateClosed   PortState = "Closed"
	StateFiltered PortState = "Filtered"
)

// ErrorKind tags a non-fatal, per-port failure. The zero value means no error.
type ErrorKind string

const (
	ErrNone              ErrorKind = ""
	ErrConnectionRefused ErrorKind = "ConnectionRefused"
	ErrTimeout           ErrorKind = "Timeout"
	ErrHostUnreachable   ErrorKind = "HostUnreachable"
	ErrSystemResource    ErrorKind = "SystemResource"
	ErrBannerRead        ErrorKind = "BannerReadFailure"
)

// Target is the single host scanned per invocation.
type Target struct {
	Host string `json:"host"`
}

// PortResult is the outcome of scanning one port. It is created once by a
// worker and never modified after it has been recorded.
type PortResult struct {
	Port        int
	State       PortState
	Service     string
	Banner      []byte
	Error       ErrorKind
	Fingerprint string
}

type portResultJSON struct {
	Port        int       `json:"port"`
	State       PortState `json:"state"`
	Service     string    `json:"service,omitempty"`
	Banner      string    `json:"banner,omitempty"`
	Error       ErrorKind `json:"error,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// MarshalJSON renders the banner as UTF-8 text and omits absent fields.
// Bytes that are not valid UTF-8 are dropped from the rendered banner.
func (r PortResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(portResultJSON{
		Port:        r.Port,
		State:       r.State,
		Service:     r.Service,
		Banner:      strings.ToValidUTF8(string(r.Banner), ""),
		Error:       r.Error,
		Fingerprint: r.Fingerprint,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON; stored reports are read back by the API.
func (r *PortResult) UnmarshalJSON(data []byte) error {
	var raw portResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PortResult{
		Port:        raw.Port,
		State:       raw.State,
		Service:     raw.Service,
		Error:       raw.Error,
		Fingerprint: raw.Fingerprint,
	}
	if raw.Banner != "" {
		r.Banner = []byte(raw.Banner)
	}
	return nil
}

// ScanReport is the aggregated, port-ordered result of one scan.
type ScanReport struct {
	Target       Target       `json:"target"`
	Address      string       `json:"address,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	OpenCount    int          `json:"open_count"`
	ScannedCount int          `json:"scanned_count"`
	Incomplete   bool         `json:"incomplete,omitempty"`
	Results      []PortResult `json:"results"`
}

// OpenPorts lists the open ports in ascending order.
func (r *ScanReport) OpenPorts() []int {
	open := make([]int, 0, r.OpenCount)
	for _, res := range r.Results {
		if res.State == StateOpen {
			open = append(open, res.Port)
		}
	}
	return open
}
