//go:build !unix

package scanner

import "strings"

// Windows reports refusals as WSAECONNREFUSED, which does not match the unix errno.
func classifyErrno(err error) errnoClass {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "actively refused"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection aborted"),
		strings.Contains(msg, "forcibly closed"):
		return errnoRefused
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "host is unreachable"), strings.Contains(msg, "host is down"):
		return errnoUnreachable
	case strings.Contains(msg, "too many open files"), strings.Contains(msg, "no buffer space"):
		return errnoResource
	}
	return errnoOther
}
