package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"portwarden/scanner"
)

// WriteAtomic replaces path with data. The bytes go to a temp file in the
// same directory which is synced and renamed over path; on failure the temp
// file is removed and any previous file at path is left untouched.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "portwarden-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		discard()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// EncodeReport renders report as indented JSON.
func EncodeReport(report *scanner.ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteReport saves report as JSON at path.
func WriteReport(path string, report *scanner.ScanReport) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	return WriteAtomic(path, data)
}
