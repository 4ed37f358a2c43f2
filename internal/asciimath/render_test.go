package asciimath

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/warp-metrics/curvetrace/internal/models"
)

func TestRenderDiagnostics(t *testing.T) {
	l2 := 1.2e-05
	order := 2.01
	diags := []models.DiagnosticRecord{
		{
			Parameters: map[string]float64{"grid": 128, "dr": 0.01, "dt": 0.005},
			MaxR:       0.123,
			PeakR2:     0.000456,
			Violations: []models.ViolationSample{{Time: 0.0, Magnitude: 1e-7}},
		},
		{
			Parameters: map[string]float64{"grid": 256, "dr": 0.005},
			L2Error:    &l2,
			Order:      &order,
			MaxR:       1.5,
			PeakR2:     2.25,
		},
	}

	g := goldie.New(t)
	g.Assert(t, "diagnostics", []byte(RenderDiagnostics(diags)))
}

func TestRenderTimeline(t *testing.T) {
	tl := models.Timeline{
		{
			Kind:      models.EventConstraintViolation,
			Time:      0.1,
			Params:    map[string]float64{"grid": 128, "dr": 0.01},
			Magnitude: 2e-6,
		},
		{
			Kind:      models.EventCurvaturePeak,
			Time:      0.25,
			Params:    map[string]float64{"grid": 128, "dr": 0.01},
			Magnitude: 0.123,
		},
	}

	g := goldie.New(t)
	g.Assert(t, "timeline", []byte(RenderTimeline(tl)))
}

func TestRenderTimeline_Empty(t *testing.T) {
	if got := RenderTimeline(nil); got != "timeline:" {
		t.Errorf("empty timeline must still emit the header, got %q", got)
	}
}

func TestSortedParams_Deterministic(t *testing.T) {
	params := map[string]float64{"dt": 0.005, "grid": 128, "dr": 0.01}
	want := "dr=0.01, dt=0.005, grid=128"
	for i := 0; i < 10; i++ {
		if got := sortedParams(params); got != want {
			t.Fatalf("rendering must be order-stable: got %q, want %q", got, want)
		}
	}
}
