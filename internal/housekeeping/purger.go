// Package housekeeping removes accounts that never completed email
// verification.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/authflow/internal/metrics"
	"github.com/robfig/cron/v3"
)

const purgeBatchSize = 500

// unverifiedDeleter is the slice of repository.UserRepository the purger uses.
type unverifiedDeleter interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Purger struct {
	users     unverifiedDeleter
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPurger parses cronExpr as a standard five-field expression. A zero
// retention disables purging.
func NewPurger(users unverifiedDeleter, cronExpr string, retention time.Duration, logger *slog.Logger) (*Purger, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", cronExpr, err)
	}
	return &Purger{
		users:     users,
		schedule:  sched,
		retention: retention,
		logger:    logger.With("component", "purger"),
		now:       time.Now,
	}, nil
}

// Start runs a purge at every scheduled time until ctx is cancelled.
func (p *Purger) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("purger disabled", "retention", p.retention)
		return
	}

	next := p.schedule.Next(p.now())
	p.logger.Info("purger started", "retention", p.retention, "next_run", next)

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("purger shut down")
			return
		case <-timer.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "purge unverified accounts", "error", err)
			}
			next = p.schedule.Next(p.now())
			timer.Reset(time.Until(next))
		}
	}
}

// RunOnce deletes unverified accounts older than the retention period in
// batches until a short batch signals there is nothing left.
func (p *Purger) RunOnce(ctx context.Context) (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	start := p.now()
	defer func() { metrics.PurgeCycleDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := start.Add(-p.retention)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := p.users.DeleteUnverifiedBefore(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return total, fmt.Errorf("delete unverified before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += n
		metrics.PurgedAccountsTotal.Add(float64(n))
		if n < purgeBatchSize {
			break
		}
	}

	if total > 0 {
		p.logger.InfoContext(ctx, "purged unverified accounts", "count", total, "cutoff", cutoff)
	}
	return total, nil
}
