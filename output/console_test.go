package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"portwarden/scanner"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	start := time.Now()
	report := &scanner.ScanReport{
		Target:       scanner.Target{Host: "localhost"},
		Address:      "127.0.0.1",
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
		OpenCount:    1,
		ScannedCount: 3,
		Incomplete:   true,
		Results: []scanner.PortResult{
			{Port: 21, State: scanner.StateClosed},
			{Port: 22, State: scanner.StateOpen, Service: "SSH", Banner: []byte("SSH-2.0-x\r\nsecond line"), Fingerprint: "ssh"},
			{Port: 23, State: scanner.StateFiltered},
		},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, report)
	out := buf.String()

	for _, want := range []string{"22/tcp", "SSH (ssh)", "SSH-2.0-x", "1 open of 3 scanned", "partial"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "21/tcp") || strings.Contains(out, "second line") {
		t.Fatalf("unexpected content:\n%s", out)
	}
}

func TestPrintSummary_NoOpenPorts(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	PrintSummary(&buf, &scanner.ScanReport{ScannedCount: 5})
	if !strings.Contains(buf.String(), "No open ports found.") {
		t.Fatalf("got:\n%s", buf.String())
	}
}

func TestPrintableBanner(t *testing.T) {
	if got := printableBanner([]byte("a\x00b\tc")); got != "a.b.c" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := printableBanner([]byte(long)); len(got) != maxBannerColumn+3 {
		t.Fatalf("banner not truncated: %d", len(got))
	}
}
