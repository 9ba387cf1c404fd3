package compare

import (
	"fmt"
	"strconv"

	"github.com/weiihann/relbench/harness"
)

// Align selects how entries of different runs are matched to each other.
type Align int

const (
	// AlignByName matches entries by ID, or by operation label when a
	// worker emits no IDs.
	AlignByName Align = iota
	// AlignByPosition matches the i-th entry of every run to the i-th
	// reference operation, whatever its label.
	AlignByPosition
)

// ParseAlign maps "name" or "position" to an Align.
func ParseAlign(s string) (Align, error) {
	switch s {
	case "", "name":
		return AlignByName, nil
	case "position":
		return AlignByPosition, nil
	default:
		return 0, fmt.Errorf("unknown alignment %q (want name or position)", s)
	}
}

func (a Align) String() string {
	if a == AlignByPosition {
		return "position"
	}

	return "name"
}

// Options controls aggregation.
type Options struct {
	Align Align
	// Unit is the unit means are reported in. Defaults to milliseconds.
	Unit harness.Unit
}

// Row is the aggregated timing of one operation across targets.
type Row struct {
	Key       string             `json:"key"`
	Operation string             `json:"operation"`
	Unit      harness.Unit       `json:"unit"`
	Mean      map[string]float64 `json:"mean"`
	Samples   map[string]int     `json:"samples"`
}

// Aggregate averages the durations of every reference operation per
// target. The reference operations are those of the first successful run of
// the first target.
func Aggregate(results *Results, opts Options) ([]Row, error) {
	if len(results.Targets) == 0 {
		return nil, fmt.Errorf("%w: no targets", ErrInvalidComparison)
	}

	if results.Successful(results.Targets[0]) == 0 {
		return nil, &InsufficientDataError{Targets: results.Targets[:1]}
	}

	unit := opts.Unit
	if unit == "" {
		unit = harness.Milliseconds
	}

	reference := results.ByTarget[results.Targets[0]][0]
	refKeys := occurrenceKeys(reference, harness.TimingEntry.Key)

	rows := make([]Row, len(reference))
	for i, e := range reference {
		rows[i] = Row{
			Key:       refKeys[i],
			Operation: e.Operation,
			Unit:      unit,
			Mean:      make(map[string]float64, len(results.Targets)),
			Samples:   make(map[string]int, len(results.Targets)),
		}
	}

	for _, target := range results.Targets {
		samples := make([][]float64, len(reference))

		for n, run := range results.ByTarget[target] {
			aligned, err := align(opts.Align, reference, run)
			if err != nil {
				return nil, &AlignmentError{Target: target, Run: n + 1, Reason: err.Error()}
			}

			for i, e := range aligned {
				if e != nil {
					samples[i] = append(samples[i], e.In(unit))
				}
			}
		}

		for i := range rows {
			rows[i].Mean[target] = Mean(samples[i])
			rows[i].Samples[target] = len(samples[i])
		}
	}

	return rows, nil
}

// align returns, for every reference entry, the matching entry of run or
// nil when the run has none. By name, entries match on ID when both carry
// one and on the operation label otherwise, so workers that emit IDs can be
// compared with ones that do not.
func align(mode Align, reference, run harness.RunResult) ([]*harness.TimingEntry, error) {
	out := make([]*harness.TimingEntry, len(reference))

	if mode == AlignByPosition {
		for i := range out {
			if i < len(run) {
				out[i] = &run[i]
			}
		}

		return out, nil
	}

	if len(run) != len(reference) {
		return nil, fmt.Errorf("has %d operations, reference has %d", len(run), len(reference))
	}

	byID := make(map[string]*harness.TimingEntry, len(run))
	for i, key := range occurrenceKeys(run, entryID) {
		if key != "" {
			byID[key] = &run[i]
		}
	}

	byLabel := make(map[string]*harness.TimingEntry, len(run))
	for i, key := range occurrenceKeys(run, entryLabel) {
		byLabel[key] = &run[i]
	}

	refIDs := occurrenceKeys(reference, entryID)
	refLabels := occurrenceKeys(reference, entryLabel)
	used := make(map[*harness.TimingEntry]bool, len(run))

	for i := range reference {
		var e *harness.TimingEntry

		if refIDs[i] != "" {
			e = byID[refIDs[i]]
		}

		if e == nil {
			if c := byLabel[refLabels[i]]; c != nil && (c.ID == "" || refIDs[i] == "") {
				e = c
			}
		}

		if e == nil {
			return nil, fmt.Errorf("missing operation %q", reference[i].Key())
		}

		if used[e] {
			return nil, fmt.Errorf("operation %q matched twice", e.Key())
		}

		used[e] = true
		out[i] = e
	}

	return out, nil
}

func entryID(e harness.TimingEntry) string    { return e.ID }
func entryLabel(e harness.TimingEntry) string { return e.Operation }

// occurrenceKeys returns key(e) for every entry. A key repeated within one
// run gets its occurrence number appended so that, for example, two
// "Bulk Insert of 100 Users" entries stay distinct. Empty keys stay empty.
func occurrenceKeys(run harness.RunResult, key func(harness.TimingEntry) string) []string {
	seen := make(map[string]int, len(run))
	keys := make([]string, len(run))

	for i, e := range run {
		k := key(e)
		if k == "" {
			continue
		}

		seen[k]++

		if n := seen[k]; n > 1 {
			k = fmt.Sprintf("%s#%d", k, n)
		}

		keys[i] = k
	}

	return keys
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// FormatMean renders a mean rounded to two decimal places.
func FormatMean(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
