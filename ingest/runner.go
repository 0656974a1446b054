/*
Package ingest drives reconciliation runs: it pulls normalized records
from a supplier and feeds each one to the engine.

PURPOSE:
  One run = one fetch of the full forecast list, reconciled record by
  record. Keys are independent: a conflict or failure on one forecast
  slot never aborts the others, it is counted and reported in the run
  summary.

CONCURRENCY:
  Records fan out over a bounded worker pool. The engine and store are
  safe under arbitrary interleaving, so workers need no coordination
  beyond the summary mutex.

SEE ALSO:
  - scheduler.go: Periodic trigger around Run
  - scd/engine.go: Per-record reconciliation semantics
*/
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/scd"
)

const defaultWorkers = 4

// =============================================================================
// RUN SUMMARY
// =============================================================================

// KeyError records a per-key reconciliation failure.
type KeyError struct {
	Key scd.BusinessKey
	Err error
}

func (e KeyError) Error() string {
	return fmt.Sprintf("key %q: %v", e.Key, e.Err)
}

// Summary reports what one ingestion run did.
type Summary struct {
	Created   int
	Replaced  int
	Unchanged int
	Failed    int

	// Errors holds one entry per failed key. Never silently dropped:
	// conflict exhaustion and storage failures both land here.
	Errors []KeyError
}

func (s Summary) Total() int {
	return s.Created + s.Replaced + s.Unchanged + s.Failed
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes ingestion runs against one supplier and one engine.
type Runner struct {
	supplier forecast.Supplier
	engine   *scd.Engine
	workers  int
}

// NewRunner creates a runner. workers <= 0 selects a small default.
func NewRunner(supplier forecast.Supplier, engine *scd.Engine, workers int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Runner{supplier: supplier, engine: engine, workers: workers}
}

// Run fetches the current forecast list and reconciles every record.
// A supplier failure fails the whole run (there is nothing to
// reconcile); per-key reconciliation failures only mark that key
// failed in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	records, err := r.supplier.Forecasts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch forecasts: %w", err)
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)

	work := make(chan forecast.Record)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				outcome, err := r.engine.Reconcile(ctx, rec.Key(), rec.Payload, rec.ObservedAt)

				mu.Lock()
				if err != nil {
					summary.Failed++
					summary.Errors = append(summary.Errors, KeyError{Key: rec.Key(), Err: err})
					mu.Unlock()
					continue
				}
				switch outcome.Action {
				case scd.ActionCreated:
					summary.Created++
				case scd.ActionReplaced:
					summary.Replaced++
				case scd.ActionUnchanged:
					summary.Unchanged++
				}
				mu.Unlock()
			}
		}()
	}

	for _, rec := range records {
		work <- rec
	}
	close(work)
	wg.Wait()

	log.Printf("ingest: run complete: %d created, %d replaced, %d unchanged, %d failed",
		summary.Created, summary.Replaced, summary.Unchanged, summary.Failed)
	for _, keyErr := range summary.Errors {
		log.Printf("ingest: %v", keyErr)
	}

	return summary, nil
}
