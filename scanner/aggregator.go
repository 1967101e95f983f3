package scanner

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator collects per-port results from concurrent workers.
// Record may be called from any number of goroutines.
type Aggregator struct {
	target    Target
	address   string
	startedAt time.Time

	mu         sync.Mutex
	results    []PortResult
	seen       map[int]struct{}
	finishedAt time.Time
	incomplete bool

	scanned atomic.Int64
	open    atomic.Int64
}

// NewAggregator prepares storage for expected results.
func NewAggregator(target Target, address string, expected int) *Aggregator {
	return &Aggregator{
		target:    target,
		address:   address,
		startedAt: time.Now().UTC(),
		results:   make([]PortResult, 0, expected),
		seen:      make(map[int]struct{}, expected),
	}
}

// Record stores result in arrival order. A second result for the same port
// is dropped and Record reports false.
func (a *Aggregator) Record(result PortResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[result.Port]; dup {
		return false
	}
	a.seen[result.Port] = struct{}{}
	a.results = append(a.results, result)

	a.scanned.Add(1)
	if result.State == StateOpen {
		a.open.Add(1)
	}
	return true
}

// Progress returns the running counters without taking the lock.
func (a *Aggregator) Progress() (scanned, open int64) {
	return a.scanned.Load(), a.open.Load()
}

// Finish stamps the end of the scan. Later calls are ignored.
func (a *Aggregator) Finish(incomplete bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finishedAt.IsZero() {
		return
	}
	a.finishedAt = time.Now().UTC()
	a.incomplete = incomplete
}

// Snapshot returns a copy of the collected results sorted by port.
func (a *Aggregator) Snapshot() ScanReport {
	a.mu.Lock()
	results := slices.Clone(a.results)
	finishedAt := a.finishedAt
	incomplete := a.incomplete
	a.mu.Unlock()

	slices.SortFunc(results, func(x, y PortResult) int { return x.Port - y.Port })

	open := 0
	for _, r := range results {
		if r.State == StateOpen {
			open++
		}
	}

	return ScanReport{
		Target:       a.target,
		Address:      a.address,
		StartedAt:    a.startedAt,
		FinishedAt:   finishedAt,
		OpenCount:    open,
		ScannedCount: len(results),
		Incomplete:   incomplete,
		Results:      results,
	}
}
