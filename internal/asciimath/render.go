// Package asciimath renders the human-inspection companion files that mirror
// the NDJSON outputs. It is pure serialization: nothing downstream parses
// these files for logic-relevant data.
package asciimath

import (
	"sort"
	"strconv"
	"strings"

	"github.com/warp-metrics/curvetrace/internal/models"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// sortedParams renders a parameter mapping as "k=v, ..." with keys sorted,
// so the companion file is byte-stable across runs.
func sortedParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatFloat(params[k])
	}
	return strings.Join(parts, ", ")
}

// RenderDiagnostics writes one "run:" line per diagnostic record.
func RenderDiagnostics(diagnostics []models.DiagnosticRecord) string {
	var b strings.Builder
	for i, d := range diagnostics {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("run: ")
		b.WriteString(sortedParams(d.Parameters))
		if d.L2Error != nil {
			b.WriteString(", L2_error=" + formatFloat(*d.L2Error))
		}
		if d.LinfError != nil {
			b.WriteString(", Linf_error=" + formatFloat(*d.LinfError))
		}
		if d.Order != nil {
			b.WriteString(", order=" + formatFloat(*d.Order))
		}
		b.WriteString(", max_R: " + formatFloat(d.MaxR))
		b.WriteString(", peak_R2: " + formatFloat(d.PeakR2))
	}
	return b.String()
}

// RenderTimeline writes a "timeline:" header followed by one line per event.
func RenderTimeline(tl models.Timeline) string {
	lines := make([]string, 0, len(tl)+1)
	lines = append(lines, "timeline:")
	for _, ev := range tl {
		lines = append(lines, "- at t="+formatFloat(ev.Time)+": "+string(ev.Kind)+
			" for params {"+sortedParams(ev.Params)+"}")
	}
	return strings.Join(lines, "\n")
}
