// Package jobs contains the batch jobs and the shared run envelope that
// records every pass in the job ledger.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/store"
)

// Runner wraps a job's unit of work with ledger bookkeeping: start is
// recorded before the work runs, the end with the error (if any) after.
// The work's error is returned unchanged so the scheduler can apply its
// retry/alerting policy.
type Runner struct {
	db  *store.DB
	bus *bus.Bus
	log *zap.Logger
}

// NewRunner creates the shared job envelope.
func NewRunner(db *store.DB, b *bus.Bus, log *zap.Logger) *Runner {
	return &Runner{db: db, bus: b, log: log}
}

// Run executes fn under the ledger envelope for the named job.
func (r *Runner) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := r.db.MarkJobStart(name); err != nil {
		r.log.Error("failed to record job start", zap.String("job", name), zap.Error(err))
	}

	started := time.Now()
	jobErr := fn(ctx)

	if err := r.db.MarkJobEnd(name, jobErr); err != nil {
		r.log.Error("failed to record job end", zap.String("job", name), zap.Error(err))
	}

	if jobErr != nil {
		r.log.Error("job failed", zap.String("job", name), zap.Duration("took", time.Since(started)), zap.Error(jobErr))
	} else {
		r.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
	}
	r.bus.Publish(bus.Emit(bus.KindJobFinished, map[string]string{"job": name}))
	return jobErr
}
