// Package models defines the value types flowing through the curvetrace
// pipeline: parameter records in, diagnostic records and extraction failures
// out of the solver stage, and events merged into a timeline.
//
// No entity is mutated after creation; each pipeline stage produces new
// values from the previous stage's output.
package models

import (
	"encoding/json"
	"fmt"
)

// ParameterRecord is one validated simulation parameter set, produced by the
// upstream convergence study. Parameters is the record's identity; the
// convergence-quality fields are optional and passed through to the solver
// untouched.
type ParameterRecord struct {
	Parameters map[string]float64 `json:"parameters"`
	L2Error    *float64           `json:"L2_error,omitempty"`
	LinfError  *float64           `json:"Linf_error,omitempty"`
	Order      *float64           `json:"order,omitempty"`

	// Index is the record's position in the input sequence. It is assigned
	// by the loader and carried through the pipeline so output order and
	// event tie-breaking follow input order, not completion order.
	Index int `json:"-"`
}

// Validate checks the record satisfies the input contract.
func (r ParameterRecord) Validate() error {
	if len(r.Parameters) == 0 {
		return fmt.Errorf("parameter record has no parameters")
	}
	return nil
}

// ViolationSample is one (time, magnitude) constraint-violation sample.
// On the wire it is a 2-element array [time, magnitude], matching the
// solver contract.
type ViolationSample struct {
	Time      float64
	Magnitude float64
}

// MarshalJSON encodes the sample as [time, magnitude].
func (v ViolationSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{v.Time, v.Magnitude})
}

// UnmarshalJSON decodes a [time, magnitude] pair.
func (v *ViolationSample) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("violation sample must be a [time, magnitude] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("violation sample must have exactly 2 elements, got %d", len(pair))
	}
	v.Time = pair[0]
	v.Magnitude = pair[1]
	return nil
}

// DiagnosticRecord is the structured summary of one successful solver run.
// Violations are ordered by non-decreasing time; the gateway rejects solver
// output that breaks this ordering.
type DiagnosticRecord struct {
	Parameters map[string]float64 `json:"parameters"`
	L2Error    *float64           `json:"L2_error,omitempty"`
	LinfError  *float64           `json:"Linf_error,omitempty"`
	Order      *float64           `json:"order,omitempty"`

	MaxR   float64 `json:"max_R"`
	PeakR2 float64 `json:"peak_R2"`

	// MaxRTime is the timestamp of the peak Ricci scalar, when the solver
	// emits one. The solver contract makes it optional.
	MaxRTime *float64 `json:"max_R_time,omitempty"`

	Violations []ViolationSample `json:"violations"`

	// Index is the originating ParameterRecord's input position.
	Index int `json:"-"`
}

// FailureKind classifies why a record's extraction failed.
type FailureKind string

const (
	// FailureProcess covers non-zero solver exits, timeouts, and spawn errors.
	FailureProcess FailureKind = "process_error"

	// FailureMalformedOutput covers solver stdout that is not valid JSON or
	// does not satisfy the output contract.
	FailureMalformedOutput FailureKind = "malformed_output"
)

// ExtractionFailure records one ParameterRecord the solver stage could not
// process. Failures are first-class output; they are reported, never dropped.
type ExtractionFailure struct {
	Parameters map[string]float64 `json:"parameters"`
	Kind       FailureKind        `json:"kind"`
	Message    string             `json:"message"`

	Index int `json:"-"`
}

// EventKind tags a detected event.
type EventKind string

const (
	EventConstraintViolation EventKind = "constraint_violation"
	EventCurvaturePeak       EventKind = "curvature_peak"
)

// Event is a detected, time-stamped occurrence derived from one
// DiagnosticRecord. Magnitude is the value that triggered the event: the
// violation magnitude for constraint_violation, max_R for curvature_peak.
type Event struct {
	Kind      EventKind          `json:"event"`
	Time      float64            `json:"time"`
	Params    map[string]float64 `json:"params"`
	Magnitude float64            `json:"magnitude"`

	// SourceIndex is the input position of the originating record, used for
	// deterministic ordering of simultaneous events.
	SourceIndex int `json:"-"`
}

// Timeline is the chronologically ordered merge of all events across a
// batch. It is final once assembled; a new Timeline must be built to reflect
// new input.
type Timeline []Event
