package extract

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/warp-metrics/curvetrace/internal/models"
)

// stubInvoker fails the indices in failAt and succeeds otherwise. It tracks
// peak concurrency.
type stubInvoker struct {
	failAt map[int]models.FailureKind
	delay  time.Duration

	mu      sync.Mutex
	active  int
	peak    int
	invoked atomic.Int64
}

func (s *stubInvoker) Invoke(ctx context.Context, rec models.ParameterRecord) (*models.DiagnosticRecord, *models.ExtractionFailure) {
	s.invoked.Add(1)

	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if kind, ok := s.failAt[rec.Index]; ok {
		return nil, &models.ExtractionFailure{
			Parameters: rec.Parameters,
			Kind:       kind,
			Message:    fmt.Sprintf("stub failure at %d", rec.Index),
			Index:      rec.Index,
		}
	}
	return &models.DiagnosticRecord{
		Parameters: rec.Parameters,
		MaxR:       float64(rec.Index),
		Index:      rec.Index,
	}, nil
}

func batch(n int) []models.ParameterRecord {
	records := make([]models.ParameterRecord, n)
	for i := range records {
		records[i] = models.ParameterRecord{
			Parameters: map[string]float64{"grid": float64(int(64) << i), "run": float64(i)},
		}
	}
	return records
}

func TestExtract_CountsSumToN(t *testing.T) {
	stub := &stubInvoker{failAt: map[int]models.FailureKind{
		1: models.FailureProcess,
		3: models.FailureMalformedOutput,
	}}
	e := New(stub, 2, nil)

	diags, fails := e.Extract(context.Background(), batch(6))

	if got := len(diags) + len(fails); got != 6 {
		t.Fatalf("success+failure counts must sum to batch size, got %d", got)
	}
	if len(fails) != 2 {
		t.Errorf("expected 2 failures, got %d", len(fails))
	}
}

func TestExtract_PreservesInputOrder(t *testing.T) {
	stub := &stubInvoker{
		failAt: map[int]models.FailureKind{2: models.FailureProcess},
		delay:  5 * time.Millisecond,
	}
	e := New(stub, 4, nil)

	diags, fails := e.Extract(context.Background(), batch(8))

	want := 0
	for _, d := range diags {
		if d.Index == 2 {
			t.Fatal("failed record leaked into diagnostics")
		}
		if d.Index < want {
			t.Fatalf("diagnostics out of input order: index %d after %d", d.Index, want)
		}
		want = d.Index
	}
	if len(fails) != 1 || fails[0].Index != 2 {
		t.Errorf("failures must keep input order, got %+v", fails)
	}
}

func TestExtract_BoundedConcurrency(t *testing.T) {
	stub := &stubInvoker{delay: 10 * time.Millisecond}
	e := New(stub, 3, nil)

	e.Extract(context.Background(), batch(12))

	if stub.peak > 3 {
		t.Errorf("worker limit exceeded: peak concurrency %d", stub.peak)
	}
	if stub.invoked.Load() != 12 {
		t.Errorf("every record must be invoked exactly once, got %d", stub.invoked.Load())
	}
}

func TestExtract_FailureDoesNotHaltBatch(t *testing.T) {
	failAll := map[int]models.FailureKind{}
	for i := 0; i < 5; i++ {
		failAll[i] = models.FailureProcess
	}
	e := New(&stubInvoker{failAt: failAll}, 1, nil)

	diags, fails := e.Extract(context.Background(), batch(5))

	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %d", len(diags))
	}
	if len(fails) != 5 {
		t.Errorf("all records must surface as failures, got %d", len(fails))
	}
}

func TestExtract_EmptyBatch(t *testing.T) {
	e := New(&stubInvoker{}, 2, nil)

	diags, fails := e.Extract(context.Background(), nil)

	if diags == nil || fails == nil {
		t.Error("both output collections must be produced even when empty")
	}
	if len(diags) != 0 || len(fails) != 0 {
		t.Errorf("expected empty outputs, got %d/%d", len(diags), len(fails))
	}
}
