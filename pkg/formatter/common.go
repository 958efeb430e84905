// Package formatter renders advisor reports as kubectl style tables.
package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

const bytesPerGB = 1024 * 1024 * 1024

// newTabWriter returns the tabwriter settings shared by every table
func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
}

// printTimestamp prints the scan timestamp and duration
func printTimestamp(out io.Writer, scanStartTime time.Time, scanDuration time.Duration) {
	fmt.Fprintf(out, "Scan completed at %s (took %.2fs)\n",
		scanStartTime.Format("2006-01-02 15:04:05"), scanDuration.Seconds())
}

// formatMoney renders dollars with thousands separators and two decimals
func formatMoney(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// formatGB renders a size given in GB as a binary byte count
func formatGB(gb float64) string {
	if gb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(gb * bytesPerGB))
}

// resourceName returns a display name or <unnamed> if empty
func resourceName(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// formatCount renders a whole count with thousands separators
func formatCount(v float64) string {
	return humanize.Comma(int64(v))
}
