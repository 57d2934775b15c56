package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/noah-isme/glassworks/internal/lock"
)

// TypeScheduled is the asynq task type for periodic backups.
const TypeScheduled = "backup:scheduled"

const (
	scheduledClaimKey = "lock:backup:scheduled"
	minClaimWindow    = 30 * time.Second
)

// NewScheduledTask builds the periodic backup task.
func NewScheduledTask() *asynq.Task {
	return asynq.NewTask(TypeScheduled, nil, asynq.MaxRetry(3), asynq.Queue("maintenance"))
}

// ClaimWindow is how long one scheduled run holds its claim: half the gap between two
// consecutive ticks of spec, never below 30s. Every worker registers the same schedule,
// so the copies of a tick land well inside the window and the next tick lands after it.
func ClaimWindow(spec string, now time.Time) (time.Duration, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return 0, fmt.Errorf("backup: parse schedule %q: %w", spec, err)
	}
	next := sched.Next(now)
	return max(sched.Next(next).Sub(next)/2, minClaimWindow), nil
}

// OnceLocker runs fn at most once per window. lock.Locker satisfies it.
type OnceLocker interface {
	RunOnce(ctx context.Context, key string, window time.Duration, fn func(context.Context) error) error
}

// ScheduledHandler takes a backup and prunes old ones. With a Locker, the tasks every
// worker's scheduler enqueues for the same tick collapse into one backup.
type ScheduledHandler struct {
	Svc    *Service
	Keep   int
	Locker OnceLocker
	Window time.Duration
}

// ProcessTask implements asynq.Handler.
func (h *ScheduledHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Locker == nil {
		return h.run(ctx)
	}
	err := h.Locker.RunOnce(ctx, scheduledClaimKey, max(h.Window, minClaimWindow), h.run)
	if errors.Is(err, lock.ErrBusy) {
		h.Svc.logger.Info().Msg("scheduled backup already taken for this tick")
		return nil
	}
	return err
}

func (h *ScheduledHandler) run(ctx context.Context) error {
	if _, err := h.Svc.Create(ctx, ReasonScheduled); err != nil {
		return fmt.Errorf("scheduled backup: %w", err)
	}
	if h.Keep > 0 {
		if _, err := h.Svc.Prune(ctx, h.Keep); err != nil {
			return fmt.Errorf("scheduled prune: %w", err)
		}
	}
	return nil
}
