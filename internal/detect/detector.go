// Package detect converts a diagnostic record's curvature and constraint
// data into time-stamped events under a configurable threshold policy.
package detect

import "github.com/warp-metrics/curvetrace/internal/models"

// DefaultViolationThreshold sits just above the numerical noise floor of the
// constraint residuals; magnitudes at or below it are treated as noise.
const DefaultViolationThreshold = 1e-6

// DefaultCurvatureThreshold is zero: with the strict-greater rule, any
// positive Ricci-scalar peak emits a curvature_peak event. Raise it to
// restrict the timeline to strong-field runs.
const DefaultCurvatureThreshold = 0.0

// Thresholds is the external threshold configuration. Both comparisons are
// strict: a value exactly equal to its threshold does not trigger an event.
type Thresholds struct {
	Curvature float64
	Violation float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Curvature: DefaultCurvatureThreshold,
		Violation: DefaultViolationThreshold,
	}
}

// Detect scans one diagnostic record and returns zero or more events. It is
// pure: identical inputs and thresholds yield identical event sequences, and
// the diagnostic is never modified.
//
// Rules, independent and non-exclusive:
//   - every violation sample with magnitude > th.Violation emits one
//     constraint_violation event at that sample's time;
//   - max_R > th.Curvature emits one curvature_peak event at PeakTime(diag).
func Detect(diag models.DiagnosticRecord, th Thresholds) []models.Event {
	var events []models.Event

	for _, v := range diag.Violations {
		if v.Magnitude > th.Violation {
			events = append(events, models.Event{
				Kind:        models.EventConstraintViolation,
				Time:        v.Time,
				Params:      diag.Parameters,
				Magnitude:   v.Magnitude,
				SourceIndex: diag.Index,
			})
		}
	}

	if diag.MaxR > th.Curvature {
		events = append(events, models.Event{
			Kind:        models.EventCurvaturePeak,
			Time:        PeakTime(diag),
			Params:      diag.Parameters,
			Magnitude:   diag.MaxR,
			SourceIndex: diag.Index,
		})
	}

	return events
}

// PeakTime is the deterministic convention for the curvature peak's
// timestamp, which the solver contract does not guarantee:
//
//  1. the solver's max_R_time, when emitted;
//  2. otherwise the time of the last sample in the longest
//     non-decreasing-magnitude prefix of the violation series (constraint
//     drift typically grows with curvature until the integrator loses the
//     peak);
//  3. absent any violation series, 0.
func PeakTime(diag models.DiagnosticRecord) float64 {
	if diag.MaxRTime != nil {
		return *diag.MaxRTime
	}
	if len(diag.Violations) == 0 {
		return 0
	}

	t := diag.Violations[0].Time
	for i := 1; i < len(diag.Violations); i++ {
		if diag.Violations[i].Magnitude < diag.Violations[i-1].Magnitude {
			break
		}
		t = diag.Violations[i].Time
	}
	return t
}
