package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Shape selects the wire layout of an emitted entry.
type Shape int

const (
	// ShapeLegacy writes {"Operation": ..., "Time_ms": <number>}.
	ShapeLegacy Shape = iota
	// ShapeCurrent writes {"Operation": ..., "Time": "<number>", "Unit": ...}.
	ShapeCurrent
)

// wireEntry covers both historical layouts. The presence of Unit selects
// the current layout.
type wireEntry struct {
	ID        string          `json:"ID,omitempty"`
	Operation *string         `json:"Operation"`
	TimeMs    json.RawMessage `json:"Time_ms,omitempty"`
	Time      json.RawMessage `json:"Time,omitempty"`
	Unit      *string         `json:"Unit,omitempty"`
}

// Parse decodes a worker's standard output into a RunResult.
func Parse(raw []byte) (RunResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	var wire []wireEntry
	if err := dec.Decode(&wire); err != nil {
		return nil, &ParseError{Index: -1, Reason: "decode JSON array", Err: err}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Index: -1, Reason: "trailing data after JSON array"}
	}

	if wire == nil {
		return nil, &ParseError{Index: -1, Reason: "expected a JSON array, got null"}
	}

	result := make(RunResult, 0, len(wire))

	for i, w := range wire {
		entry, err := w.normalize()
		if err != nil {
			return nil, &ParseError{Index: i, Reason: err.Error()}
		}

		result = append(result, entry)
	}

	return result, nil
}

func (w wireEntry) normalize() (TimingEntry, error) {
	if w.Operation == nil || strings.TrimSpace(*w.Operation) == "" {
		return TimingEntry{}, fmt.Errorf("missing operation name")
	}

	entry := TimingEntry{ID: w.ID, Operation: *w.Operation, Unit: Milliseconds}

	raw := w.TimeMs
	field := "Time_ms"

	if w.Unit != nil {
		unit, err := ParseUnit(*w.Unit)
		if err != nil {
			return TimingEntry{}, err
		}

		entry.Unit = unit
		raw, field = w.Time, "Time"
	} else if len(raw) == 0 {
		raw, field = w.Time, "Time"
	}

	if len(raw) == 0 {
		return TimingEntry{}, fmt.Errorf("missing duration")
	}

	d, err := parseDuration(raw)
	if err != nil {
		return TimingEntry{}, fmt.Errorf("%s: %w", field, err)
	}

	entry.Duration = d

	return entry, nil
}

// parseDuration accepts a JSON number or a string holding one.
func parseDuration(raw json.RawMessage) (float64, error) {
	var (
		d   float64
		err error
	)

	var s string
	if json.Unmarshal(raw, &s) == nil {
		d, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	} else {
		err = json.Unmarshal(raw, &d)
	}

	switch {
	case err != nil:
		return 0, fmt.Errorf("non-numeric duration %s", raw)
	case math.IsNaN(d) || math.IsInf(d, 0):
		return 0, fmt.Errorf("non-finite duration %s", raw)
	case d < 0:
		return 0, fmt.Errorf("negative duration %s", raw)
	}

	return d, nil
}

// Encode writes entries to w as a single JSON array in the given shape.
// The legacy shape carries no unit, so durations are converted to
// milliseconds.
func Encode(w io.Writer, entries []TimingEntry, shape Shape) error {
	wire := make([]wireEntry, 0, len(entries))

	for _, e := range entries {
		op := e.Operation
		out := wireEntry{ID: e.ID, Operation: &op}

		switch shape {
		case ShapeLegacy:
			ms, err := json.Marshal(e.In(Milliseconds))
			if err != nil {
				return fmt.Errorf("encode %s: %w", e.Operation, err)
			}
			out.TimeMs = ms

		default:
			unit := e.Unit
			if unit == "" {
				unit = Milliseconds
			}

			text, err := json.Marshal(strconv.FormatFloat(e.Duration, 'f', -1, 64))
			if err != nil {
				return fmt.Errorf("encode %s: %w", e.Operation, err)
			}

			label := string(unit)
			out.Time = text
			out.Unit = &label
		}

		wire = append(wire, out)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(wire)
}
