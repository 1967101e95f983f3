package scanner

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProber struct {
	mu       sync.Mutex
	calls    map[int]int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	open     map[int]bool
}

func newFakeProber(delay time.Duration, open ...int) *fakeProber {
	f := &fakeProber{calls: make(map[int]int), delay: delay, open: make(map[int]bool)}
	for _, p := range open {
		f.open[p] = true
	}
	return f
}

func (f *fakeProber) probe(ctx context.Context, host string, port int, timeout time.Duration) ProbeOutcome {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[port]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.open[port] {
		return ProbeOutcome{State: StateOpen}
	}
	return ProbeOutcome{State: StateClosed, Err: ErrConnectionRefused}
}

func (f *fakeProber) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestPool_EveryPortProbedExactlyOnce(t *testing.T) {
	ports, _ := ExpandPorts("1-2000")
	fake := newFakeProber(0, 10, 20, 30)
	agg := NewAggregator(Target{Host: "h"}, "10.0.0.1", len(ports))

	pool := &Pool{Concurrency: 64, Timeout: time.Second, probe: fake.probe}
	pool.Run(context.Background(), "10.0.0.1", ports, agg)

	for _, p := range ports {
		if fake.calls[p] != 1 {
			t.Fatalf("port %d probed %d times", p, fake.calls[p])
		}
	}
	report := agg.Snapshot()
	if report.ScannedCount != len(ports) || report.OpenCount != 3 {
		t.Fatalf("scanned=%d open=%d", report.ScannedCount, report.OpenCount)
	}
	if report.Results[0].Error != ErrConnectionRefused {
		t.Fatalf("error kind not carried into result: %+v", report.Results[0])
	}
}

func TestPool_ConcurrencyBound(t *testing.T) {
	ports, _ := ExpandPorts("1-200")
	fake := newFakeProber(5 * time.Millisecond)
	agg := NewAggregator(Target{Host: "h"}, "10.0.0.1", len(ports))

	pool := &Pool{Concurrency: 8, probe: fake.probe}
	pool.Run(context.Background(), "10.0.0.1", ports, agg)

	if got := fake.maxSeen.Load(); got > 8 {
		t.Fatalf("observed %d concurrent probes with concurrency 8", got)
	}
	if agg.Snapshot().ScannedCount != len(ports) {
		t.Fatal("not every port was scanned")
	}
}

func TestClampConcurrency(t *testing.T) {
	cases := map[int]int{0: DefaultConcurrency, -3: 1, 1: 1, 250: 250, 500: 500, 10000: MaxConcurrency}
	for in, want := range cases {
		if got := ClampConcurrency(in); got != want {
			t.Errorf("ClampConcurrency(%d) = %d want %d", in, got, want)
		}
	}
}

func TestPool_CancellationStopsPullingWork(t *testing.T) {
	ports, _ := ExpandPorts("1-1000")
	fake := newFakeProber(20 * time.Millisecond)
	agg := NewAggregator(Target{Host: "h"}, "10.0.0.1", len(ports))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(60*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		pool := &Pool{Concurrency: 4, probe: fake.probe}
		pool.Run(ctx, "10.0.0.1", ports, agg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}

	scanned := agg.Snapshot().ScannedCount
	if scanned == 0 || scanned >= len(ports) {
		t.Fatalf("expected a partial scan, got %d of %d", scanned, len(ports))
	}
	// Probes in flight at cancellation finish and are recorded.
	if calls := fake.totalCalls(); calls != scanned {
		t.Fatalf("%d probes started but %d recorded", calls, scanned)
	}
}

func TestPool_PanickingProbeIsRecorded(t *testing.T) {
	logger, logs := setupTestLogger()
	agg := NewAggregator(Target{Host: "h"}, "10.0.0.1", 2)
	pool := &Pool{
		Concurrency: 1,
		Logger:      logger,
		probe: func(ctx context.Context, host string, port int, timeout time.Duration) ProbeOutcome {
			if port == 1 {
				panic("socket exploded")
			}
			return ProbeOutcome{State: StateClosed}
		},
	}
	pool.Run(context.Background(), "10.0.0.1", []int{1, 2}, agg)

	report := agg.Snapshot()
	if report.ScannedCount != 2 {
		t.Fatalf("worker died: scanned %d", report.ScannedCount)
	}
	if report.Results[0].Error != ErrSystemResource || report.Results[0].State != StateFiltered {
		t.Fatalf("unexpected result for panicking probe: %+v", report.Results[0])
	}
	if !strings.Contains(logs.String(), "probe panicked") {
		t.Fatalf("expected panic to be logged, got: %s", logs.String())
	}
}

func TestPool_BannerOnOpenPorts(t *testing.T) {
	port := listen(t, func(c net.Conn) {
		_, _ = c.Write([]byte("220 mail.example.com ESMTP\r\n"))
		time.Sleep(100 * time.Millisecond)
	})
	closed := closedPort(t)

	agg := NewAggregator(Target{Host: "127.0.0.1"}, "127.0.0.1", 2)
	pool := &Pool{
		Concurrency: 2,
		Timeout:     time.Second,
		Banner:      &BannerGrabber{Timeout: 500 * time.Millisecond},
	}
	pool.Run(context.Background(), "127.0.0.1", []int{port, closed}, agg)

	report := agg.Snapshot()
	if report.ScannedCount != 2 || report.OpenCount != 1 {
		t.Fatalf("scanned=%d open=%d", report.ScannedCount, report.OpenCount)
	}
	for _, r := range report.Results {
		switch r.Port {
		case port:
			if string(r.Banner) != "220 mail.example.com ESMTP" {
				t.Fatalf("banner %q", r.Banner)
			}
		case closed:
			if r.State != StateClosed || r.Banner != nil {
				t.Fatalf("closed port result %+v", r)
			}
		}
	}
}

func TestPool_EmptyPortList(t *testing.T) {
	agg := NewAggregator(Target{Host: "h"}, "10.0.0.1", 0)
	(&Pool{}).Run(context.Background(), "10.0.0.1", nil, agg)
	if agg.Snapshot().ScannedCount != 0 {
		t.Fatal("expected nothing scanned")
	}
}
