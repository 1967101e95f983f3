package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"

	"github.com/fatih/color"

	"portwarden/scanner"
)

const maxBannerColumn = 60

var (
	openColor    = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	headingColor = color.New(color.FgCyan, color.Bold)
)

// PrintSummary writes the open-port table and the scan totals of report.
// Colour follows fatih/color's global NoColor switch.
func PrintSummary(w io.Writer, report *scanner.ScanReport) {
	headingColor.Fprintf(w, "Scan of %s (%s)\n", report.Target.Host, report.Address)

	open := 0
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, r := range report.Results {
		if r.State != scanner.StateOpen {
			continue
		}
		if open == 0 {
			fmt.Fprintln(tw, "PORT\tSERVICE\tBANNER")
		}
		open++
		service := r.Service
		if r.Fingerprint != "" {
			service = fmt.Sprintf("%s (%s)", service, r.Fingerprint)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", openColor.Sprintf("%d/tcp", r.Port), service, printableBanner(r.Banner))
	}
	_ = tw.Flush()

	if open == 0 {
		fmt.Fprintln(w, "No open ports found.")
	}
	duration := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "%d open of %d scanned in %s\n", report.OpenCount, report.ScannedCount, duration)
	if report.Incomplete {
		warnColor.Fprintln(w, "Scan interrupted: results are partial.")
	}
}

// printableBanner keeps the first banner line and replaces control bytes.
func printableBanner(banner []byte) string {
	line, _, _ := strings.Cut(string(banner), "\n")
	line = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return '.'
	}, strings.TrimRight(line, "\r"))
	if len(line) > maxBannerColumn {
		line = line[:maxBannerColumn] + "..."
	}
	return line
}
