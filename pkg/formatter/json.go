package formatter

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/younsl/costadvisor/pkg/advisor"
)

// PrintJSON writes the report as indented JSON
func PrintJSON(out io.Writer, report advisor.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}
