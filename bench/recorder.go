package bench

import (
	"io"
	"time"

	"github.com/weiihann/relbench/harness"
)

// Recorder times operations and keeps the resulting entries in order.
type Recorder struct {
	unit    harness.Unit
	entries []harness.TimingEntry
	since   func(time.Time) time.Duration
}

// NewRecorder returns a Recorder reporting durations in unit.
func NewRecorder(unit harness.Unit) *Recorder {
	return &Recorder{unit: unit, since: time.Since}
}

// Time runs fn and records its duration under id and label. A failed
// operation is not recorded.
func (r *Recorder) Time(id, label string, fn func() error) error {
	start := time.Now()

	if err := fn(); err != nil {
		return err
	}

	elapsed := r.since(start)

	r.entries = append(r.entries, harness.TimingEntry{
		ID:        id,
		Operation: label,
		Duration:  float64(elapsed.Nanoseconds()) / r.unit.Nanos(),
		Unit:      r.unit,
	})

	return nil
}

// Entries returns the recorded entries.
func (r *Recorder) Entries() []harness.TimingEntry {
	return r.entries
}

// Write encodes the recorded entries as the worker's report. Millisecond
// reports keep the historical Time_ms layout.
func (r *Recorder) Write(w io.Writer) error {
	shape := harness.ShapeCurrent
	if r.unit == harness.Milliseconds {
		shape = harness.ShapeLegacy
	}

	return harness.Encode(w, r.entries, shape)
}
