package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"portwarden/logging"
)

const (
	DefaultConcurrency = 200
	MaxConcurrency     = 500
)

// ClampConcurrency bounds n to [1, MaxConcurrency]; zero selects the default.
func ClampConcurrency(n int) int {
	switch {
	case n == 0:
		return DefaultConcurrency
	case n < 1:
		return 1
	case n > MaxConcurrency:
		return MaxConcurrency
	}
	return n
}

// Pool is a fixed-size set of workers draining a consume-once port queue.
type Pool struct {
	Concurrency int
	Timeout     time.Duration
	Banner      *BannerGrabber // nil disables banner grabbing
	Limiter     *rate.Limiter  // nil means unlimited
	Logger      *slog.Logger

	probe ProbeFunc
}

// Run scans every port of address and records each outcome in agg. It
// returns once all started probes have been recorded. After ctx is
// cancelled no new port is taken, but probes already in flight complete.
func (p *Pool) Run(ctx context.Context, address string, ports []int, agg *Aggregator) {
	if len(ports) == 0 {
		return
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	probe := p.probe
	if probe == nil {
		probe = Probe
	}

	workers := min(ClampConcurrency(p.Concurrency), len(ports))
	jobs := make(chan int, workers)

	var g errgroup.Group
	for id := 0; id < workers; id++ {
		workerLogger := logger.With(slog.Int("worker_id", id))
		g.Go(func() error {
			p.work(ctx, workerLogger, probe, address, jobs, agg)
			return nil
		})
	}

feed:
	for _, port := range ports {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- port:
		}
	}
	close(jobs)

	_ = g.Wait()
}

func (p *Pool) work(ctx context.Context, logger *slog.Logger, probe ProbeFunc, address string, jobs <-chan int, agg *Aggregator) {
	for port := range jobs {
		if ctx.Err() != nil {
			return
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return
			}
		}

		result := p.scanPort(ctx, probe, address, port)
		if !agg.Record(result) {
			logger.Warn("duplicate result dropped", "port", port)
			continue
		}
		logger.Debug("port scanned", "port", port, "state", result.State, "error", string(result.Error))
	}
}

func (p *Pool) scanPort(ctx context.Context, probe ProbeFunc, address string, port int) (result PortResult) {
	defer func() {
		if r := recover(); r != nil {
			if p.Logger != nil {
				p.Logger.Error("probe panicked", "port", port, "panic", fmt.Sprint(r))
			}
			result = PortResult{Port: port, State: StateFiltered, Service: ServiceName(port), Error: ErrSystemResource}
		}
	}()

	// A cancelled scan lets the connect in hand run to its own deadline.
	outcome := probe(context.WithoutCancel(ctx), address, port, p.Timeout)
	result = PortResult{
		Port:    port,
		State:   outcome.State,
		Service: ServiceName(port),
		Error:   outcome.Err,
	}
	if outcome.Conn == nil {
		return result
	}
	defer outcome.Conn.Close()

	if p.Banner != nil {
		banner, kind := p.Banner.Grab(outcome.Conn, port)
		result.Banner = banner
		result.Error = kind
		result.Fingerprint = p.Banner.Identify(banner)
	}
	return result
}
