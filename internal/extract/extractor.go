// Package extract drives the solver gateway over an ordered batch of
// parameter records. Invocations are mutually independent, so they run on a
// bounded worker pool; output order is restored by input index, never by
// completion order.
package extract

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/warp-metrics/curvetrace/internal/models"
)

// DefaultWorkers bounds concurrent solver processes when no limit is
// configured.
const DefaultWorkers = 4

// Invoker is the solver boundary. Exactly one of the two returns is non-nil.
type Invoker interface {
	Invoke(ctx context.Context, rec models.ParameterRecord) (*models.DiagnosticRecord, *models.ExtractionFailure)
}

// Extractor assembles one diagnostic record per input record, independent of
// other records' success or failure.
type Extractor struct {
	invoker Invoker
	workers int
	logger  *slog.Logger
}

// New creates an Extractor running at most workers solver processes at once.
// A nil logger discards all output.
func New(invoker Invoker, workers int, logger *slog.Logger) *Extractor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{invoker: invoker, workers: workers, logger: logger}
}

type outcome struct {
	diag *models.DiagnosticRecord
	fail *models.ExtractionFailure
}

// Extract processes every record in order. A failure on one record never
// halts the rest: the batch always completes, and
// len(diagnostics)+len(failures) == len(records). Both slices preserve the
// input's relative order.
//
// Cancelling ctx terminates in-flight solver processes; their records are
// reported as process-error failures, not silently omitted.
func (e *Extractor) Extract(ctx context.Context, records []models.ParameterRecord) ([]models.DiagnosticRecord, []models.ExtractionFailure) {
	outcomes := make([]outcome, len(records))

	// Plain errgroup as a bounded pool: workers never return errors, so a
	// slow or failing record cannot cancel its siblings. Only the caller's
	// ctx can.
	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, rec := range records {
		i, rec := i, rec
		rec.Index = i
		g.Go(func() error {
			diag, fail := e.invoker.Invoke(ctx, rec)
			outcomes[i] = outcome{diag: diag, fail: fail}
			return nil
		})
	}
	_ = g.Wait()

	diagnostics := make([]models.DiagnosticRecord, 0, len(records))
	failures := make([]models.ExtractionFailure, 0)
	for i, out := range outcomes {
		switch {
		case out.diag != nil:
			diagnostics = append(diagnostics, *out.diag)
		case out.fail != nil:
			e.logger.Warn("record extraction failed",
				"index", i, "kind", out.fail.Kind, "message", out.fail.Message)
			failures = append(failures, *out.fail)
		}
	}

	e.logger.Info("extraction batch complete",
		"records", len(records), "succeeded", len(diagnostics), "failed", len(failures))

	return diagnostics, failures
}
