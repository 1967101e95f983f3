package scanner

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"time"
)

// ProbeOutcome is the result of one connect attempt. Conn is non-nil only
// when State is StateOpen, and the caller must close it.
type ProbeOutcome struct {
	State PortState
	Err   ErrorKind
	Conn  net.Conn
	Cause error
}

// ProbeFunc performs a single bounded connect attempt.
type ProbeFunc func(ctx context.Context, host string, port int, timeout time.Duration) ProbeOutcome

type errnoClass uint8

const (
	errnoOther errnoClass = iota
	errnoRefused
	errnoUnreachable
	errnoResource
)

// Probe performs a TCP connect scan of host:port with a hard deadline of timeout.
// Closed: connection actively refused (RST received).
// Filtered: deadline exceeded, unreachable network or host, or a local OS failure.
// Open: three-way handshake completed.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) ProbeOutcome {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err == nil {
		return ProbeOutcome{State: StateOpen, Conn: conn}
	}

	state, kind := classifyDialError(err)
	return ProbeOutcome{State: state, Err: kind, Cause: err}
}

func classifyDialError(err error) (PortState, ErrorKind) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		// Packets are being silently dropped.
		return StateFiltered, ErrTimeout
	}

	switch classifyErrno(err) {
	case errnoRefused:
		return StateClosed, ErrConnectionRefused
	case errnoUnreachable:
		return StateFiltered, ErrHostUnreachable
	default:
		return StateFiltered, ErrSystemResource
	}
}
