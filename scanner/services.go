package scanner

import (
	"strings"

	"github.com/google/gopacket/layers"
)

var commonPorts = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	445:   "SMB",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	1521:  "Oracle",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-Alt",
	8443:  "HTTPS-Alt",
	11211: "Memcached",
	27017: "MongoDB",
}

// ServiceName returns the conventional service on port, or "" when unknown.
// The common table wins; otherwise the IANA name is used.
func ServiceName(port int) string {
	if name, ok := commonPorts[port]; ok {
		return name
	}
	if port < MinPort || port > MaxPort {
		return ""
	}
	return ianaName(layers.TCPPort(port))
}

// ianaName extracts "http" from the "80(http)" form of layers.TCPPort.
func ianaName(port layers.TCPPort) string {
	s := port.String()
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return ""
	}
	return s[open+1 : len(s)-1]
}
