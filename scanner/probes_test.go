package scanner

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleProbes = `# sample
Probe TCP NULL q||
match ssh m|^SSH-([\d.]+)-| p/OpenSSH/
match ftp m|^220.*FTP|i

Probe UDP DNSStatusRequest q|\0\0\x10\0\0\0\0\0\0\0\0\0|
match dns m|^\0\0\x90|

Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|
rarity 1
ports 80,8000-8002
match http m|^HTTP/1\.[01] \d\d\d|
match broken m|([|
ports nonsense
`

func TestLoadProbes(t *testing.T) {
	cache, stats, err := LoadProbes(strings.NewReader(sampleProbes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.Len() != 2 || stats.Probes != 2 {
		t.Fatalf("expected 2 TCP probes, got len=%d stats=%d", cache.Len(), stats.Probes)
	}
	if stats.Matches != 3 {
		t.Fatalf("expected 3 matches, got %d", stats.Matches)
	}
	if !reflect.DeepEqual(stats.ErrorLines, []int{13, 14}) {
		t.Fatalf("error lines %v", stats.ErrorLines)
	}

	get, ok := cache.ProbeByName("GetRequest")
	if !ok {
		t.Fatal("GetRequest probe missing")
	}
	if string(get.Data) != "GET / HTTP/1.0\r\n\r\n" {
		t.Fatalf("probe data %q", get.Data)
	}
	for _, p := range []int{80, 8000, 8001, 8002} {
		if !get.Ports[p] {
			t.Fatalf("port %d missing from GetRequest ports", p)
		}
	}
	if _, ok := cache.ProbeByName("DNSStatusRequest"); ok {
		t.Fatal("UDP probe must be skipped")
	}
}

func TestProbeCache_PayloadAndIdentify(t *testing.T) {
	cache, _, err := LoadProbes(strings.NewReader(sampleProbes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload, ok := cache.PayloadFor(8001); !ok || !strings.HasPrefix(string(payload), "GET /") {
		t.Fatalf("PayloadFor(8001) = %q, %v", payload, ok)
	}
	if _, ok := cache.PayloadFor(22); ok {
		t.Fatal("no payload expected for port 22")
	}

	cases := map[string]string{
		"SSH-2.0-OpenSSH_9.6":         "ssh",
		"220 ProFTPD ftp server":      "ftp",
		"HTTP/1.1 200 OK\r\nServer: x": "http",
		"garbage":                     "",
	}
	for banner, want := range cases {
		if got := cache.Identify([]byte(banner)); got != want {
			t.Errorf("Identify(%q) = %q want %q", banner, got, want)
		}
	}
}

func TestProbeCache_NilSafe(t *testing.T) {
	var cache *ProbeCache
	if cache.Len() != 0 || cache.Identify([]byte("x")) != "" {
		t.Fatal("nil cache should be empty")
	}
	if _, ok := cache.PayloadFor(80); ok {
		t.Fatal("nil cache has no payloads")
	}
}

func TestUnescapeProbe(t *testing.T) {
	got, err := unescapeProbe(`a\0\x41\r\n\\`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []byte("a\x00A\r\n\\"); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
	if _, err := unescapeProbe(`\x4`); err == nil {
		t.Fatal("expected error for short hex escape")
	}
}

func TestLoadProbesFile_Missing(t *testing.T) {
	if _, _, err := LoadProbesFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadProbesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes")
	if err := os.WriteFile(path, []byte(sampleProbes), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache, _, err := LoadProbesFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 probes, got %d", cache.Len())
	}
}
