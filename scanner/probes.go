package scanner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ServiceProbe is one TCP probe from an nmap-service-probes style file.
type ServiceProbe struct {
	Name    string         // e.g. "GetRequest"
	Data    []byte         // payload written before reading, may be empty
	Ports   map[int]bool   // ports the probe is intended for; empty means any
	Matches []ServiceMatch // rules applied to the response
}

// ServiceMatch identifies a service from banner bytes.
type ServiceMatch struct {
	Service string
	Pattern *regexp.Regexp
}

// LoadStats describes lines skipped while loading a probe file.
type LoadStats struct {
	Probes     int
	Matches    int
	ErrorLines []int
}

// LoadProbesFile reads probes from the file at path.
func LoadProbesFile(path string) (*ProbeCache, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("cannot open probe file %s: %w", path, err)
	}
	defer file.Close()
	return LoadProbes(file)
}

// LoadProbes parses the probe format:
//
//	Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|
//	ports 80,8000-8010
//	match http m|^HTTP/1\.[01]|
//
// UDP probes are skipped. Malformed lines are counted in LoadStats and skipped.
func LoadProbes(r io.Reader) (*ProbeCache, LoadStats, error) {
	var (
		stats    LoadStats
		probes   []ServiceProbe
		current  *ServiceProbe
		skipping bool
	)

	lines := bufio.NewScanner(r)
	lineNum := 0
	for lines.Scan() {
		lineNum++
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Probe "):
			if current != nil {
				probes = append(probes, *current)
				current = nil
			}
			probe, udp, err := parseProbe(line)
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				skipping = true
				continue
			}
			skipping = udp
			if !udp {
				current = &probe
			}
		case skipping:
			continue
		case strings.HasPrefix(line, "ports "):
			if current == nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			ports, err := parsePortsDirective(strings.TrimPrefix(line, "ports "))
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			current.Ports = ports
		case strings.HasPrefix(line, "match "), strings.HasPrefix(line, "softmatch "):
			if current == nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			match, err := parseMatch(line)
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			current.Matches = append(current.Matches, match)
		default:
			// rarity, totalwaitms and other directives are not used.
		}
	}
	if current != nil {
		probes = append(probes, *current)
	}

	if err := lines.Err(); err != nil {
		return nil, stats, fmt.Errorf("error reading probes: %w", err)
	}

	for _, p := range probes {
		stats.Matches += len(p.Matches)
	}
	stats.Probes = len(probes)
	return NewProbeCache(probes), stats, nil
}

// parseProbe parses "Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|".
func parseProbe(line string) (ServiceProbe, bool, error) {
	parts := strings.SplitN(strings.TrimPrefix(line, "Probe "), " ", 3)
	if len(parts) < 3 {
		return ServiceProbe{}, false, fmt.Errorf("invalid Probe format")
	}
	if strings.EqualFold(parts[0], "UDP") {
		return ServiceProbe{}, true, nil
	}
	if !strings.EqualFold(parts[0], "TCP") {
		return ServiceProbe{}, false, fmt.Errorf("unknown protocol %q", parts[0])
	}

	data, err := parseProbeData(parts[2])
	if err != nil {
		return ServiceProbe{}, false, fmt.Errorf("cannot parse probe data: %w", err)
	}
	return ServiceProbe{Name: parts[1], Data: data}, false, nil
}

// parseProbeData converts q|...| into bytes, honouring \r, \n and \xHH escapes.
func parseProbeData(dataStr string) ([]byte, error) {
	// Trailing options such as "no-payload" may follow the closing delimiter.
	if len(dataStr) < 3 || dataStr[0] != 'q' {
		return nil, fmt.Errorf("probe data must be in format q|...|")
	}
	delim := dataStr[1]
	end := strings.IndexByte(dataStr[2:], delim)
	if end < 0 {
		return nil, fmt.Errorf("unterminated probe data")
	}
	content := dataStr[2 : 2+end]

	return unescapeProbe(content)
}

func unescapeProbe(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch s[i] {
		case 'r':
			out = append(out, '\r')
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case '0':
			out = append(out, 0)
		case 'x':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("short \\x escape")
			}
			b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad \\x escape: %w", err)
			}
			out = append(out, byte(b))
			i += 2
		default:
			out = append(out, s[i])
		}
	}
	return out, nil
}

func parsePortsDirective(list string) (map[int]bool, error) {
	ports := make(map[int]bool)
	for _, token := range strings.Split(list, ",") {
		expanded, err := ExpandPorts(token)
		if err != nil {
			return nil, err
		}
		for _, p := range expanded {
			ports[p] = true
		}
	}
	return ports, nil
}

// parseMatch parses "match service m|pattern|flags [version info]".
func parseMatch(line string) (ServiceMatch, error) {
	line = strings.TrimPrefix(strings.TrimPrefix(line, "soft"), "match ")
	parts := strings.SplitN(line, " ", 2)
	if len(parts) < 2 || len(parts[1]) < 3 || parts[1][0] != 'm' {
		return ServiceMatch{}, fmt.Errorf("invalid match format")
	}

	service := parts[0]
	body := parts[1]
	delim := body[1]
	end := strings.IndexByte(body[2:], delim)
	if end < 0 {
		return ServiceMatch{}, fmt.Errorf("unterminated match pattern")
	}
	pattern := body[2 : 2+end]
	flags := body[2+end+1:]
	if space := strings.IndexByte(flags, ' '); space >= 0 {
		flags = flags[:space]
	}

	if strings.Contains(flags, "s") {
		pattern = "(?s)" + pattern
	}
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return ServiceMatch{}, fmt.Errorf("cannot compile regex: %w", err)
	}
	return ServiceMatch{Service: service, Pattern: re}, nil
}

// ProbeCache indexes loaded probes for lookup during banner grabbing.
// It is read-only after construction and safe for concurrent use.
type ProbeCache struct {
	probes []ServiceProbe
	byName map[string]ServiceProbe
}

// NewProbeCache builds a cache over probes.
func NewProbeCache(probes []ServiceProbe) *ProbeCache {
	cache := &ProbeCache{
		probes: probes,
		byName: make(map[string]ServiceProbe, len(probes)),
	}
	for _, p := range probes {
		cache.byName[p.Name] = p
	}
	return cache
}

// Len returns the number of TCP probes.
func (pc *ProbeCache) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.probes)
}

// ProbeByName returns the probe with the given name.
func (pc *ProbeCache) ProbeByName(name string) (ServiceProbe, bool) {
	if pc == nil {
		return ServiceProbe{}, false
	}
	p, ok := pc.byName[name]
	return p, ok
}

// PayloadFor returns the payload of the first probe declared for port.
func (pc *ProbeCache) PayloadFor(port int) ([]byte, bool) {
	if pc == nil {
		return nil, false
	}
	for _, p := range pc.probes {
		if p.Ports[port] && len(p.Data) > 0 {
			return p.Data, true
		}
	}
	return nil, false
}

// Identify matches banner against every rule and returns the first service hit.
func (pc *ProbeCache) Identify(banner []byte) string {
	if pc == nil || len(banner) == 0 {
		return ""
	}
	for _, p := range pc.probes {
		for _, m := range p.Matches {
			if m.Pattern.Match(banner) {
				return m.Service
			}
		}
	}
	return ""
}
