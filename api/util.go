package api

import (
	"crypto/rand"
	"fmt"

	"portwarden/scanner"
)

// validatePorts rejects port expressions the engine would abort on, so that
// bad requests fail with 400 instead of producing a failed task.
func validatePorts(spec string) error {
	_, err := scanner.ExpandPorts(spec)
	return err
}

func generateUUID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// Variant bits; version 4 UUID.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
