// Package jobs runs the background reconciliation loop that keeps
// knowledge links honest about whether their graph-side documents still
// exist.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/models"
)

const (
	defaultWorkerCount   = 2
	defaultSweepInterval = 10 * time.Minute
	defaultRecheckAfter  = time.Hour
	sweepBatchSize       = 200
)

type ReconcilerOptions struct {
	Workers  int
	Interval time.Duration
	// RecheckAfter is how stale a link's last check may get before the
	// sweep picks it up again.
	RecheckAfter time.Duration
	Logger       *slog.Logger
}

// Reconciler periodically resolves stale knowledge links against the
// graph store and flips their orphaned flag. Links are only ever marked,
// never removed.
type Reconciler struct {
	db           database.DB
	graph        graph.Store
	workers      int
	interval     time.Duration
	recheckAfter time.Duration
	logger       *slog.Logger
	metrics      *sweepMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewReconciler(db database.DB, g graph.Store, opts ReconcilerOptions) *Reconciler {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	recheckAfter := opts.RecheckAfter
	if recheckAfter <= 0 {
		recheckAfter = defaultRecheckAfter
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		db:           db,
		graph:        g,
		workers:      workers,
		interval:     interval,
		recheckAfter: recheckAfter,
		logger:       logger,
		metrics:      getDefaultSweepMetrics(),
	}
}

func (r *Reconciler) Start(parent context.Context) error {
	if r == nil || r.db == nil || r.graph == nil {
		return fmt.Errorf("reconciler is not configured")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.started = true

	go r.run(ctx, done)
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	r.started = false
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		if !sleepOrDone(ctx, r.interval) {
			return
		}
		checked, orphaned, err := r.SweepOnce(ctx)
		if err != nil {
			r.logger.Warn("knowledge sweep failed", "error", err)
			continue
		}
		if checked > 0 {
			r.logger.Info("knowledge sweep done", "checked", checked, "orphaned", orphaned)
		}
	}
}

// SweepOnce processes one batch of stale links and reports how many were
// checked and how many came back orphaned. An unreachable graph store
// aborts the batch; links keep their previous verdict.
func (r *Reconciler) SweepOnce(ctx context.Context) (checked, orphaned int, err error) {
	cutoff := time.Now().UTC().Add(-r.recheckAfter)
	links, err := r.db.ListKnowledgeLinksForSweep(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(links) == 0 {
		r.metrics.record(0, 0)
		return 0, 0, nil
	}

	work := make(chan models.KnowledgeLink)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for link := range work {
				gone, resolveErr := r.resolve(ctx, link)
				if resolveErr != nil {
					r.logger.Warn("link check skipped", "link_id", link.ID, "error", resolveErr)
					continue
				}
				if markErr := r.db.MarkKnowledgeLinkChecked(ctx, link.ID, gone, time.Now().UTC()); markErr != nil {
					r.logger.Error("link check not recorded", "link_id", link.ID, "error", markErr)
					continue
				}
				mu.Lock()
				checked++
				if gone {
					orphaned++
				}
				mu.Unlock()
			}
		}()
	}

	for _, link := range links {
		select {
		case work <- link:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return checked, orphaned, ctx.Err()
		}
	}
	close(work)
	wg.Wait()
	r.metrics.record(checked, orphaned)
	return checked, orphaned, nil
}

func (r *Reconciler) resolve(ctx context.Context, link models.KnowledgeLink) (orphaned bool, err error) {
	_, err = r.graph.GetDocument(ctx, link.KnowledgeType, link.KnowledgeID)
	switch {
	case err == nil:
		return false, nil
	case fault.Is(err, fault.KindNotFound):
		return true, nil
	default:
		return false, err
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
