// Package ndjson reads and writes the pipeline's newline-delimited JSON
// files. Reading is per-line recoverable: a malformed line is skipped and
// reported, never silently dropped, and never aborts the rest of the file.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/warp-metrics/curvetrace/internal/models"
)

// LineError reports one skipped input line. Line numbers are 1-based.
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Violation series can make lines long
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return scanner
}

// ReadParameterRecords parses one ParameterRecord per line. A line is either
// an object with a "parameters" mapping (plus optional convergence-quality
// fields) or, for compatibility with older convergence files, a bare mapping
// of numeric parameters. Anything else is reported as a LineError and
// skipped. Accepted records get consecutive batch indices in file order.
func ReadParameterRecords(r io.Reader) ([]models.ParameterRecord, []LineError, error) {
	var records []models.ParameterRecord
	var skipped []LineError

	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := parseParameterLine([]byte(line))
		if err != nil {
			skipped = append(skipped, LineError{Line: lineNum, Message: err.Error()})
			continue
		}
		rec.Index = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading input: %w", err)
	}

	return records, skipped, nil
}

func parseParameterLine(line []byte) (models.ParameterRecord, error) {
	var rec models.ParameterRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, fmt.Errorf("not valid JSON: %v", err)
	}
	if rec.Validate() == nil {
		return rec, nil
	}

	// Older convergence files write the parameter mapping directly.
	var bare map[string]float64
	if err := json.Unmarshal(line, &bare); err != nil || len(bare) == 0 {
		return rec, fmt.Errorf("no usable parameters: need a \"parameters\" mapping or a bare numeric mapping")
	}
	return models.ParameterRecord{Parameters: bare}, nil
}

// ReadDiagnostics parses one DiagnosticRecord per line, skipping and
// reporting malformed lines. Accepted records get consecutive batch indices
// in file order.
func ReadDiagnostics(r io.Reader) ([]models.DiagnosticRecord, []LineError, error) {
	var records []models.DiagnosticRecord
	var skipped []LineError

	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec models.DiagnosticRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped = append(skipped, LineError{Line: lineNum, Message: fmt.Sprintf("not a valid diagnostic record: %v", err)})
			continue
		}
		if len(rec.Parameters) == 0 {
			skipped = append(skipped, LineError{Line: lineNum, Message: "diagnostic record has no parameters"})
			continue
		}
		rec.Index = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading diagnostics: %w", err)
	}

	return records, skipped, nil
}

// WriteDiagnostics writes one DiagnosticRecord per line.
func WriteDiagnostics(w io.Writer, diagnostics []models.DiagnosticRecord) error {
	enc := json.NewEncoder(w)
	for i, d := range diagnostics {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("writing diagnostic %d: %w", i, err)
		}
	}
	return nil
}

// WriteEvents writes one Event per line in timeline order.
func WriteEvents(w io.Writer, tl models.Timeline) error {
	enc := json.NewEncoder(w)
	for i, ev := range tl {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("writing event %d: %w", i, err)
		}
	}
	return nil
}

// WriteFailures writes one ExtractionFailure per line.
func WriteFailures(w io.Writer, failures []models.ExtractionFailure) error {
	enc := json.NewEncoder(w)
	for i, f := range failures {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("writing failure %d: %w", i, err)
		}
	}
	return nil
}
