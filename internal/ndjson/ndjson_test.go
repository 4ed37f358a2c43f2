package ndjson

import (
	"bytes"
	"strings"
	"testing"

	"github.com/warp-metrics/curvetrace/internal/models"
)

func TestReadParameterRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"parameters":{"grid":128,"dr":0.01,"dt":0.005}}`,
		``,
		`{"parameters":{"grid":256,"dr":0.005},"L2_error":1e-5,"order":2.01}`,
	}, "\n")

	records, skipped, err := ReadParameterRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("no lines should be skipped, got %+v", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Parameters["grid"] != 128 || records[1].Parameters["grid"] != 256 {
		t.Errorf("parameters wrong: %+v", records)
	}
	if records[1].L2Error == nil || *records[1].L2Error != 1e-5 {
		t.Errorf("convergence fields must survive: %+v", records[1])
	}
	if records[0].Index != 0 || records[1].Index != 1 {
		t.Errorf("batch indices must follow file order: %d, %d", records[0].Index, records[1].Index)
	}
}

func TestReadParameterRecords_BareMapping(t *testing.T) {
	records, skipped, err := ReadParameterRecords(strings.NewReader(`{"grid":128,"dr":0.01}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skipped) != 0 || len(records) != 1 {
		t.Fatalf("bare numeric mapping must be accepted, got %d records, %d skipped", len(records), len(skipped))
	}
	if records[0].Parameters["dr"] != 0.01 {
		t.Errorf("bare mapping not used as parameters: %+v", records[0])
	}
}

func TestReadParameterRecords_SkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"parameters":{"grid":128}}`,
		`not json at all`,
		`{"parameters":"not a mapping"}`,
		`{"name":"Minkowski"}`,
		`{"parameters":{"grid":256}}`,
	}, "\n")

	records, skipped, err := ReadParameterRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("a bad line must not abort the batch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 good records, got %d", len(records))
	}
	if len(skipped) != 3 {
		t.Fatalf("every bad line must be reported, got %d: %+v", len(skipped), skipped)
	}
	if skipped[0].Line != 2 || skipped[1].Line != 3 || skipped[2].Line != 4 {
		t.Errorf("line numbers wrong: %+v", skipped)
	}
	// Indices must stay consecutive over accepted records.
	if records[1].Index != 1 {
		t.Errorf("expected index 1 for second accepted record, got %d", records[1].Index)
	}
}

func TestDiagnostics_RoundTrip(t *testing.T) {
	diags := []models.DiagnosticRecord{
		{
			Parameters: map[string]float64{"grid": 128},
			MaxR:       0.123,
			PeakR2:     0.000456,
			Violations: []models.ViolationSample{{Time: 0.0, Magnitude: 1e-7}, {Time: 0.1, Magnitude: 2e-7}},
		},
		{
			Parameters: map[string]float64{"grid": 256},
			MaxR:       0.9,
			PeakR2:     0.81,
			Violations: []models.ViolationSample{},
		},
	}

	var buf bytes.Buffer
	if err := WriteDiagnostics(&buf, diags); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected one line per record, got %d lines", got)
	}

	back, skipped, err := ReadDiagnostics(&buf)
	if err != nil || len(skipped) != 0 {
		t.Fatalf("read failed: err=%v skipped=%+v", err, skipped)
	}
	if len(back) != 2 || back[0].MaxR != 0.123 || len(back[0].Violations) != 2 {
		t.Errorf("round trip lost data: %+v", back)
	}
}

func TestReadDiagnostics_SkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"parameters":{"grid":128},"max_R":1,"peak_R2":1,"violations":[]}`,
		`{"max_R":1,"peak_R2":1,"violations":[]}`,
		`garbage`,
	}, "\n")

	records, skipped, err := ReadDiagnostics(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || len(skipped) != 2 {
		t.Errorf("expected 1 record and 2 skips, got %d/%d", len(records), len(skipped))
	}
}

func TestWriteEvents_WireShape(t *testing.T) {
	tl := models.Timeline{
		{
			Kind:      models.EventConstraintViolation,
			Time:      0.1,
			Params:    map[string]float64{"grid": 128},
			Magnitude: 2e-6,
		},
	}

	var buf bytes.Buffer
	if err := WriteEvents(&buf, tl); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	for _, key := range []string{`"event":"constraint_violation"`, `"time":0.1`, `"params"`, `"magnitude"`} {
		if !strings.Contains(line, key) {
			t.Errorf("event line missing %s: %s", key, line)
		}
	}
}

func TestWriteFailures(t *testing.T) {
	failures := []models.ExtractionFailure{
		{
			Parameters: map[string]float64{"grid": 128},
			Kind:       models.FailureProcess,
			Message:    "solver failed: exit status 3",
		},
	}

	var buf bytes.Buffer
	if err := WriteFailures(&buf, failures); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind":"process_error"`) {
		t.Errorf("failure kind missing: %s", buf.String())
	}
}
