// Package harness runs database benchmark workers and decodes the timing
// entries they print.
package harness

import (
	"fmt"
	"strings"
)

// Unit is the time unit a duration is expressed in.
type Unit string

const (
	Milliseconds Unit = "ms"
	Microseconds Unit = "microseconds"
	Nanoseconds  Unit = "nanoseconds"
)

// ParseUnit maps a unit label to a Unit. An empty label means milliseconds.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ms", "millisecond", "milliseconds":
		return Milliseconds, nil
	case "us", "µs", "microsecond", "microseconds":
		return Microseconds, nil
	case "ns", "nanosecond", "nanoseconds":
		return Nanoseconds, nil
	default:
		return "", fmt.Errorf("unknown time unit %q", s)
	}
}

// Nanos returns how many nanoseconds one u is worth.
func (u Unit) Nanos() float64 {
	switch u {
	case Microseconds:
		return 1e3
	case Nanoseconds:
		return 1
	default:
		return 1e6
	}
}

// Convert expresses v, given in unit from, in unit u.
func (u Unit) Convert(v float64, from Unit) float64 {
	if u == from {
		return v
	}

	return v * from.Nanos() / u.Nanos()
}

// TimingEntry is one measured operation reported by a worker.
type TimingEntry struct {
	// ID is a stable identifier for the operation. Older workers omit it.
	ID        string  `json:"id,omitempty"`
	Operation string  `json:"operation"`
	Duration  float64 `json:"duration"`
	Unit      Unit    `json:"unit"`
}

// Key returns the identity used to align the entry across runs.
func (e TimingEntry) Key() string {
	if e.ID != "" {
		return e.ID
	}

	return e.Operation
}

// In returns the entry's duration expressed in unit u.
func (e TimingEntry) In(u Unit) float64 {
	return u.Convert(e.Duration, e.Unit)
}

// RunResult holds the entries of a single worker invocation, in the order
// the worker performed them.
type RunResult []TimingEntry
