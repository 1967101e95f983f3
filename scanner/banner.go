package scanner

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// MaxBannerBytes caps the number of leading bytes kept from a service.
const MaxBannerBytes = 1024

// Text protocols that stay silent until the client speaks.
var builtinProbes = map[int][]byte{
	80:    []byte("HEAD / HTTP/1.0\r\n\r\n"),
	8000:  []byte("HEAD / HTTP/1.0\r\n\r\n"),
	8008:  []byte("HEAD / HTTP/1.0\r\n\r\n"),
	8080:  []byte("HEAD / HTTP/1.0\r\n\r\n"),
	8888:  []byte("HEAD / HTTP/1.0\r\n\r\n"),
	6379:  []byte("PING\r\n"),
	11211: []byte("version\r\n"),
}

// BannerGrabber reads the leading bytes a service sends on a fresh connection.
type BannerGrabber struct {
	Timeout time.Duration
	Probes  *ProbeCache
}

// Grab performs at most one bounded read on conn. For ports with a known
// text protocol a short probe is written first; a failed write is ignored.
// A silent service yields nil with ErrNone, a reset yields nil with ErrBannerRead.
func (g *BannerGrabber) Grab(conn net.Conn, port int) ([]byte, ErrorKind) {
	if err := conn.SetDeadline(time.Now().Add(g.Timeout)); err != nil {
		return nil, ErrBannerRead
	}

	if payload := g.payloadFor(port); len(payload) > 0 {
		_, _ = conn.Write(payload)
	}

	buffer := make([]byte, MaxBannerBytes)
	n, err := conn.Read(buffer)
	banner := bytes.TrimSpace(buffer[:n])
	if len(banner) > 0 {
		return bytes.Clone(banner), ErrNone
	}

	if err == nil || errors.Is(err, io.EOF) || isTimeout(err) {
		return nil, ErrNone
	}
	return nil, ErrBannerRead
}

// Identify fingerprints a banner with the loaded probe matches.
func (g *BannerGrabber) Identify(banner []byte) string {
	return g.Probes.Identify(banner)
}

func (g *BannerGrabber) payloadFor(port int) []byte {
	if payload, ok := g.Probes.PayloadFor(port); ok {
		return payload
	}
	return builtinProbes[port]
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
