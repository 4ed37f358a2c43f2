// Package solver invokes the external time-integration solver as a child
// process, one fresh process per parameter record. The solver is an opaque,
// replaceable collaborator: curvetrace talks to it only through a JSON
// stdin/stdout contract and never links it in-process.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/warp-metrics/curvetrace/internal/logging"
	"github.com/warp-metrics/curvetrace/internal/models"
)

// DefaultTimeout bounds one solver invocation. A run that exceeds it is
// killed and reported as a process error for that record only.
const DefaultTimeout = 60 * time.Second

// Config configures the gateway.
type Config struct {
	// Command is the solver executable (e.g. "python3").
	Command string

	// Args are passed before the record payload is written to stdin
	// (e.g. ["solver.py"]).
	Args []string

	// Timeout is the maximum duration for one invocation (default: 60s).
	Timeout time.Duration
}

// Gateway runs the solver process. It is safe for concurrent use; every
// invocation gets its own process and its own output buffers.
type Gateway struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway creates a Gateway. A nil logger discards all output.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// solverInput is the single JSON object written to the solver's stdin.
type solverInput struct {
	Parameters map[string]float64 `json:"parameters"`
	L2Error    *float64           `json:"L2_error,omitempty"`
	LinfError  *float64           `json:"Linf_error,omitempty"`
	Order      *float64           `json:"order,omitempty"`
}

// solverOutput is the single JSON object expected on the solver's stdout.
type solverOutput struct {
	MaxR       float64                  `json:"max_R"`
	PeakR2     float64                  `json:"peak_R2"`
	MaxRTime   *float64                 `json:"max_R_time"`
	Violations []models.ViolationSample `json:"violations"`
}

// Invoke runs the solver once for rec and returns exactly one of a
// DiagnosticRecord or an ExtractionFailure. Per-record failures are values,
// never Go errors: a crashing or misbehaving solver degrades this record,
// not the batch.
func (g *Gateway) Invoke(ctx context.Context, rec models.ParameterRecord) (*models.DiagnosticRecord, *models.ExtractionFailure) {
	payload, err := json.Marshal(solverInput{
		Parameters: rec.Parameters,
		L2Error:    rec.L2Error,
		LinfError:  rec.LinfError,
		Order:      rec.Order,
	})
	if err != nil {
		return nil, g.failure(rec, models.FailureProcess, fmt.Sprintf("encoding solver input: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.command, g.args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	g.logger.Log(ctx, logging.LevelTrace, "solver exchange",
		"stdin", string(payload),
		"stdout", stdout.String(),
		"stderr", stderr.String(),
		"duration", time.Since(start))

	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, g.failure(rec, models.FailureProcess,
				fmt.Sprintf("solver timed out after %v", g.timeout))
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, g.failure(rec, models.FailureProcess, "batch cancelled; solver terminated")
		}
		msg := fmt.Sprintf("solver failed: %v", runErr)
		if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
			msg += ": " + errOut
		}
		return nil, g.failure(rec, models.FailureProcess, msg)
	}

	out, parseErr := parseOutput(stdout.Bytes())
	if parseErr != nil {
		return nil, g.failure(rec, models.FailureMalformedOutput, parseErr.Error())
	}

	return &models.DiagnosticRecord{
		Parameters: rec.Parameters,
		L2Error:    rec.L2Error,
		LinfError:  rec.LinfError,
		Order:      rec.Order,
		MaxR:       out.MaxR,
		PeakR2:     out.PeakR2,
		MaxRTime:   out.MaxRTime,
		Violations: out.Violations,
		Index:      rec.Index,
	}, nil
}

func (g *Gateway) failure(rec models.ParameterRecord, kind models.FailureKind, msg string) *models.ExtractionFailure {
	g.logger.Debug("solver invocation failed", "kind", kind, "index", rec.Index, "message", msg)
	return &models.ExtractionFailure{
		Parameters: rec.Parameters,
		Kind:       kind,
		Message:    msg,
		Index:      rec.Index,
	}
}

// parseOutput validates raw solver stdout against the output schema and
// decodes it. Violation samples must arrive in non-decreasing time order.
func parseOutput(raw []byte) (*solverOutput, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("solver output is not valid JSON: %v", err)
	}
	if err := outputSchema.Validate(payload); err != nil {
		return nil, fmt.Errorf("solver output violates contract: %v", err)
	}

	var out solverOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding solver output: %v", err)
	}

	for i := 1; i < len(out.Violations); i++ {
		if out.Violations[i].Time < out.Violations[i-1].Time {
			return nil, fmt.Errorf("violation times must be non-decreasing: sample %d at t=%v follows t=%v",
				i, out.Violations[i].Time, out.Violations[i-1].Time)
		}
	}

	return &out, nil
}
