package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"portwarden/logging"
)

// DefaultConnectTimeout matches the quick-scan budget of the CLI.
const DefaultConnectTimeout = 300 * time.Millisecond

var (
	// ErrInvalidConfig indicates a ScanConfig value outside its accepted range.
	ErrInvalidConfig = errors.New("invalid scan config")
	// ErrScanInProgress is returned when Scan is called on a busy engine.
	ErrScanInProgress = errors.New("scan already in progress")
)

// ResolutionError reports a target host that could not be resolved.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve target %q: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// EngineState is the lifecycle of a single scan.
type EngineState int32

const (
	EngineIdle EngineState = iota
	EngineResolving
	EngineScanning
	EngineCompleted
	EngineAborted
)

func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineResolving:
		return "resolving"
	case EngineScanning:
		return "scanning"
	case EngineCompleted:
		return "completed"
	case EngineAborted:
		return "aborted"
	}
	return fmt.Sprintf("EngineState(%d)", int32(s))
}

// ScanConfig holds the options of one scan.
type ScanConfig struct {
	PortSpec       string
	Concurrency    int           // clamped to [1, 500]; 0 selects 200
	ConnectTimeout time.Duration // 0 selects DefaultConnectTimeout
	BannerTimeout  time.Duration // 0 or anything above ConnectTimeout selects ConnectTimeout
	GrabBanner     bool
	RateLimit      float64 // probes per second, 0 for unlimited
	Probes         *ProbeCache
}

func (c ScanConfig) normalize() (ScanConfig, error) {
	if c.ConnectTimeout < 0 {
		return c, fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
	}
	if c.BannerTimeout < 0 {
		return c, fmt.Errorf("%w: banner timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return c, fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	c.Concurrency = ClampConcurrency(c.Concurrency)
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.BannerTimeout == 0 || c.BannerTimeout > c.ConnectTimeout {
		c.BannerTimeout = c.ConnectTimeout
	}
	return c, nil
}

// Resolver looks up the addresses of a host; *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Engine runs one scan at a time against a single target.
type Engine struct {
	logger   *slog.Logger
	resolver Resolver
	probe    ProbeFunc

	running atomic.Bool
	state   atomic.Int32
	agg     atomic.Pointer[Aggregator]
	total   atomic.Int64
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for scan and per-port events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   logging.Discard(),
		resolver: net.DefaultResolver,
		probe:    Probe,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

// Progress reports counters of the scan in progress, or of the last scan.
func (e *Engine) Progress() (scanned, open int64, total int) {
	agg := e.agg.Load()
	if agg == nil {
		return 0, 0, 0
	}
	scanned, open = agg.Progress()
	return scanned, open, int(e.total.Load())
}

// Scan expands the port spec, resolves the target once and probes every
// port. Invalid configuration, an invalid port spec or a resolution failure
// abort the scan with no report. A cancelled ctx yields the partial report
// with Incomplete set.
func (e *Engine) Scan(ctx context.Context, target Target, cfg ScanConfig) (*ScanReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer e.running.Store(false)
	e.setState(EngineIdle)

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, e.abort(err)
	}
	ports, err := ExpandPorts(cfg.PortSpec)
	if err != nil {
		return nil, e.abort(err)
	}

	e.setState(EngineResolving)
	address, err := e.resolve(ctx, target.Host)
	if err != nil {
		if ctx.Err() != nil {
			return e.interrupted(target), nil
		}
		return nil, e.abort(err)
	}

	agg := NewAggregator(target, address, len(ports))
	e.total.Store(int64(len(ports)))
	e.agg.Store(agg)
	e.setState(EngineScanning)

	logger := e.logger.With(slog.String("target", target.Host), slog.String("address", address))
	logger.Info("scan started",
		"ports", len(ports),
		"concurrency", cfg.Concurrency,
		"connect_timeout", cfg.ConnectTimeout,
		"banner", cfg.GrabBanner,
	)

	pool := &Pool{
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.ConnectTimeout,
		Logger:      logger,
		probe:       e.probe,
	}
	if cfg.GrabBanner {
		pool.Banner = &BannerGrabber{Timeout: cfg.BannerTimeout, Probes: cfg.Probes}
	}
	if cfg.RateLimit > 0 {
		pool.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	pool.Run(ctx, address, ports, agg)

	scanned, _ := agg.Progress()
	agg.Finish(int(scanned) < len(ports))
	report := agg.Snapshot()
	e.setState(EngineCompleted)

	logger.Info("scan finished",
		"scanned", report.ScannedCount,
		"open", report.OpenCount,
		"incomplete", report.Incomplete,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return &report, nil
}

func (e *Engine) resolve(ctx context.Context, host string) (string, error) {
	if host == "" {
		return "", &ResolutionError{Host: host, Err: errors.New("empty host")}
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	addrs, err := e.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", &ResolutionError{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return "", &ResolutionError{Host: host, Err: errors.New("no addresses found")}
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

// interrupted ends a scan cancelled before any port was probed.
func (e *Engine) interrupted(target Target) *ScanReport {
	agg := NewAggregator(target, "", 0)
	agg.Finish(true)
	report := agg.Snapshot()
	e.setState(EngineCompleted)
	e.logger.Warn("scan cancelled during resolution", "target", target.Host)
	return &report
}

func (e *Engine) abort(err error) error {
	e.setState(EngineAborted)
	e.logger.Error("scan aborted", "error", err)
	return err
}

func (e *Engine) setState(s EngineState) {
	e.state.Store(int32(s))
}
