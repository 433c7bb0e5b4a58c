package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/metrics"
)

const lockName = "scheduler"

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Worker polls the schedule table and triggers due schedules. A Redis lock
// keeps concurrent worker replicas from double-executing the same window;
// manual runs do not take the lock.
type Worker struct {
	scheduler Service
	locks     lockStore
	logg      *logger.Logger
	metrics   *metrics.SchedulerMetrics
	interval  time.Duration
	lockTTL   time.Duration
	instance  string
}

type WorkerParams struct {
	Scheduler    Service
	Locks        lockStore
	Logger       *logger.Logger
	Metrics      *metrics.SchedulerMetrics
	PollInterval time.Duration
	LockTTL      time.Duration
}

func NewWorker(p WorkerParams) (*Worker, error) {
	if p.Scheduler == nil || p.Locks == nil || p.Logger == nil {
		return nil, fmt.Errorf("scheduler: missing required worker dependencies")
	}
	interval := p.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	lockTTL := p.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Worker{
		scheduler: p.Scheduler,
		locks:     p.Locks,
		logg:      p.Logger,
		metrics:   p.Metrics,
		interval:  interval,
		lockTTL:   lockTTL,
		instance:  uuid.NewString(),
	}, nil
}

// Run blocks until ctx is cancelled. A cleanup run that has started is
// never interrupted mid-batch; cancellation takes effect between polls.
func (w *Worker) Run(ctx context.Context) {
	w.logg.WithContext(ctx).Info().
		Dur("poll_interval", w.interval).
		Msg("scheduler worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logg.WithContext(ctx).Info().Msg("scheduler worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	start := time.Now()
	key := w.locks.LockKey(lockName)

	acquired, err := w.locks.SetNX(ctx, key, w.instance, w.lockTTL)
	if err != nil {
		w.metrics.ObserveCycle("lock_error", time.Since(start))
		w.logg.WithContext(ctx).Warn().Err(err).Msg("scheduler lock acquisition failed")
		return
	}
	if !acquired {
		w.metrics.ObserveCycle("skipped", time.Since(start))
		return
	}
	defer w.release(ctx, key)

	records, err := w.scheduler.CheckAndExecute(ctx)
	if err != nil {
		w.metrics.ObserveCycle("error", time.Since(start))
		w.logg.WithContext(ctx).Error().Err(err).Msg("scheduler cycle failed")
		return
	}

	w.metrics.ObserveCycle("ok", time.Since(start))
	for range records {
		w.metrics.IncExecuted()
	}
	if len(records) > 0 {
		w.logg.WithContext(ctx).Info().
			Int("executed", len(records)).
			Msg("scheduler cycle executed due schedules")
	}
}

// release frees the lock only when this instance still owns it.
func (w *Worker) release(ctx context.Context, key string) {
	owner, err := w.locks.Get(ctx, key)
	if err != nil || owner != w.instance {
		return
	}
	if err := w.locks.Del(ctx, key); err != nil {
		w.logg.WithContext(ctx).Warn().Err(err).Msg("scheduler lock release failed")
	}
}
