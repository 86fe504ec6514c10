// Package schedule runs auto-categorization for every user on a cron
// schedule.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/robfig/cron/v3"
)

// Categorizer categorizes a user's uncategorized backlog.
type Categorizer interface {
	AutoCategorizeUncategorized(ctx context.Context, userID string, limit int, progress func(done, total int)) (model.BatchStats, error)
}

// UserLister enumerates users.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Runner is the periodic job.
type Runner struct {
	categorizer Categorizer
	users       UserLister
	logger      *slog.Logger
	limit       int
	timeout     time.Duration
	mu          sync.Mutex // serializes passes
}

// NewRunner creates a runner handling up to limit transactions per user
// and pass.
func NewRunner(categorizer Categorizer, users UserLister, limit int, logger *slog.Logger) *Runner {
	return &Runner{
		categorizer: categorizer,
		users:       users,
		limit:       limit,
		timeout:     time.Hour,
		logger:      common.LoggerOrDefault(logger).With("component", "schedule"),
	}
}

// Parse validates a standard five-field cron expression.
func Parse(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", common.ErrInvalidConfig, spec, err)
	}
	return sched, nil
}

// RunOnce performs one pass over every user. A failure for one user is
// logged and does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) (model.BatchStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total model.BatchStats
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return total, fmt.Errorf("failed to list users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		stats, err := r.categorizer.AutoCategorizeUncategorized(ctx, u.ID, r.limit, nil)
		if err != nil {
			r.logger.Warn("auto-categorization failed", "user_id", u.ID, "error", err)
			continue
		}
		total.Rule += stats.Rule
		total.Vector += stats.Vector
		total.LLM += stats.LLM
		total.Unresolved += stats.Unresolved
	}

	r.logger.Info("auto-categorization pass complete",
		"users", len(users),
		"rule", total.Rule,
		"vector", total.Vector,
		"llm", total.LLM,
		"unresolved", total.Unresolved)
	return total, nil
}

// Start schedules RunOnce on the cron expression and blocks until ctx is done, then waits
// for a running pass to finish.
func (r *Runner) Start(ctx context.Context, spec string) error {
	if _, err := Parse(spec); err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		passCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if _, err := r.RunOnce(passCtx); err != nil {
			r.logger.Error("auto-categorization pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule auto-categorization: %w", err)
	}

	c.Start()
	r.logger.Info("auto-categorization scheduled", "cron", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
