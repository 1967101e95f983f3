package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"portwarden/logging"
	"portwarden/output"
	"portwarden/scanner"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitAborted = 1
	ExitUsage   = 2
)

const (
	minTimeout = 0.1
	maxTimeout = 5.0
)

var progressInterval = 2 * time.Second

var errColor = color.New(color.FgRed, color.Bold)

type options struct {
	ports    string
	threads  int
	timeout  float64
	banner   bool
	output   string
	json     bool
	rate     float64
	probes   string
	noColor  bool
	logLevel string
	host     string
}

// Run parses args, scans the host they name and reports to stdout. SIGINT
// and SIGTERM stop the scan early; the partial report is still written.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, args, stdout, stderr)
}

// RunContext is Run with a caller-controlled context.
func RunContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
	if opts.noColor {
		color.NoColor = true
	}

	logger := logging.New(stderr, opts.logLevel)

	var probes *scanner.ProbeCache
	if opts.probes != "" {
		cache, stats, err := scanner.LoadProbesFile(opts.probes)
		if err != nil {
			errColor.Fprintf(stderr, "Error: %v\n", err)
			return ExitUsage
		}
		if len(stats.ErrorLines) > 0 {
			logger.Warn("probe loader skipped malformed lines", "count", len(stats.ErrorLines))
		}
		probes = cache
	}

	engine := scanner.NewEngine(scanner.WithLogger(logger))
	cfg := scanner.ScanConfig{
		PortSpec:       opts.ports,
		Concurrency:    opts.threads,
		ConnectTimeout: time.Duration(opts.timeout * float64(time.Second)),
		GrabBanner:     opts.banner,
		RateLimit:      opts.rate,
		Probes:         probes,
	}

	stopProgress := startProgress(engine, stderr)
	report, err := engine.Scan(ctx, scanner.Target{Host: opts.host}, cfg)
	stopProgress()
	if err != nil {
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return ExitAborted
	}

	if opts.json {
		data, err := output.EncodeReport(report)
		if err != nil {
			errColor.Fprintf(stderr, "Error: %v\n", err)
			return ExitAborted
		}
		_, _ = stdout.Write(data)
	} else {
		output.PrintSummary(stdout, report)
	}

	if opts.output != "" {
		if err := output.WriteReport(opts.output, report); err != nil {
			errColor.Fprintf(stderr, "Error: %v\n", err)
			return ExitAborted
		}
		if !opts.json {
			fmt.Fprintf(stdout, "Results saved to %s\n", opts.output)
		}
	}
	return ExitOK
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("portwarden", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: portwarden [flags] host")
		fmt.Fprintln(stderr, "       portwarden serve")
		fmt.Fprintln(stderr, "Example: portwarden -p 1-1024 --banner scanme.nmap.org")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ports, "p", "1-65535", "Port range start-end")
	fs.StringVar(&opts.ports, "ports", "1-65535", "Port range start-end")
	fs.IntVar(&opts.threads, "t", scanner.DefaultConcurrency, "Concurrent probes (1-500)")
	fs.IntVar(&opts.threads, "threads", scanner.DefaultConcurrency, "Concurrent probes (1-500)")
	fs.Float64Var(&opts.timeout, "timeout", scanner.DefaultConnectTimeout.Seconds(), "Connect timeout in seconds (0.1-5.0)")
	fs.BoolVar(&opts.banner, "banner", false, "Grab banners from open ports")
	fs.StringVar(&opts.output, "o", "scan_results.json", "Write the JSON report to this file; empty disables")
	fs.StringVar(&opts.output, "output", "scan_results.json", "Write the JSON report to this file; empty disables")
	fs.BoolVar(&opts.json, "json", false, "Print the JSON report to stdout")
	fs.Float64Var(&opts.rate, "rate", 0, "Maximum probes per second, 0 for unlimited")
	fs.StringVar(&opts.probes, "probes", "", "nmap-service-probes file used for banner payloads and fingerprints")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one host, got %d arguments", fs.NArg())
	}
	if opts.rate < 0 {
		return nil, errors.New("rate must not be negative")
	}
	opts.host = fs.Arg(0)
	opts.threads = max(1, min(scanner.MaxConcurrency, opts.threads))
	opts.timeout = max(minTimeout, min(maxTimeout, opts.timeout))
	return opts, nil
}

// startProgress prints the engine counters to w until the returned func is called.
func startProgress(engine *scanner.Engine, w io.Writer) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if engine.State() != scanner.EngineScanning {
					continue
				}
				scanned, open, total := engine.Progress()
				fmt.Fprintf(w, "Progress: %d/%d scanned, %d open\n", scanned, total, open)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

