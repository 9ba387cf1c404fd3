// Package report formats aggregated benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/weiihann/relbench/compare"
	"github.com/weiihann/relbench/harness"
)

// Generate writes a markdown comparison table for the given rows. Columns
// follow the order of results.Targets.
func Generate(w io.Writer, rows []compare.Row, results *compare.Results) error {
	if len(rows) == 0 {
		return fmt.Errorf("no results to report")
	}

	targets := results.Targets

	fmt.Fprintln(w, "## Performance Comparison")
	fmt.Fprintln(w)

	runs := make([]string, 0, len(targets))
	for _, t := range targets {
		runs = append(runs, fmt.Sprintf("%s %d/%d", t, results.Successful(t), results.Runs))
	}

	fmt.Fprintf(w, "Successful runs: %s\n", strings.Join(runs, ", "))
	fmt.Fprintln(w)

	// Table header.
	header := append([]string{"Operation"}, targets...)
	header = append(header, "Faster")

	fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))

	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h)+2)
	}

	fmt.Fprintf(w, "|%s|\n", strings.Join(rule, "|"))

	for _, row := range rows {
		cells := make([]string, 0, len(header))
		cells = append(cells, row.Operation)

		for _, t := range targets {
			cells = append(cells, formatCell(row, t))
		}

		cells = append(cells, fastest(row, targets))

		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}

	return nil
}

// GenerateJSON writes rows as JSON to w.
func GenerateJSON(w io.Writer, rows []compare.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rows)
}

func formatCell(row compare.Row, target string) string {
	if row.Samples[target] == 0 {
		return "-"
	}

	return formatMean(row.Mean[target], row.Unit)
}

func formatMean(v float64, unit harness.Unit) string {
	if unit == "" {
		return compare.FormatMean(v)
	}

	return compare.FormatMean(v) + " " + string(unit)
}

// fastest names the target with the lowest mean and how many times faster
// it is than the slowest one.
func fastest(row compare.Row, targets []string) string {
	var (
		best, worst string
		measured    int
	)

	for _, t := range targets {
		if row.Samples[t] == 0 {
			continue
		}

		measured++

		if best == "" || row.Mean[t] < row.Mean[best] {
			best = t
		}
		if worst == "" || row.Mean[t] > row.Mean[worst] {
			worst = t
		}
	}

	if measured < 2 || row.Mean[best] <= 0 || row.Mean[best] == row.Mean[worst] {
		return "-"
	}

	return fmt.Sprintf("%s (%.2fx)", best, row.Mean[worst]/row.Mean[best])
}
