package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"checkoutgo/internal/shared/biztime"
	"checkoutgo/internal/shared/logger"
)

// BatchJob is a periodic maintenance task. Execute returns how many rows
// it touched so runs can be logged with their effect.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// SchedulerManager owns the gocron scheduler and the checkout maintenance
// jobs registered on it.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface
	started   bool
	startedMu sync.Mutex
}

func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(biztime.Location()))
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: s,
		logger:    log,
	}, nil
}

// RegisterCheckoutJobs wires the expiry sweep and the fulfillment retry
// sweep. Both run every five minutes with singleton mode so a slow sweep
// never overlaps itself.
func (m *SchedulerManager) RegisterCheckoutJobs(expirer, retrier BatchJob) error {
	if err := m.registerJob("checkout-expirer", expirer); err != nil {
		return err
	}
	return m.registerJob("fulfillment-retrier", retrier)
}

func (m *SchedulerManager) registerJob(name string, job BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			m.runJob(ctx, name, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("checkout"),
		gocron.WithName(name),
	)
	return err
}

func (m *SchedulerManager) runJob(ctx context.Context, name string, job BatchJob) {
	start := time.Now()

	processed, err := job.Execute(ctx)
	if err != nil {
		m.logger.Errorw("scheduled job failed",
			"job", name,
			"processed", processed,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}

	if processed > 0 {
		m.logger.Infow("scheduled job completed",
			"job", name,
			"processed", processed,
			"duration", time.Since(start),
		)
	}
}

func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	if err := m.scheduler.Shutdown(); err != nil {
		return err
	}

	m.started = false
	m.logger.Infow("scheduler stopped")
	return nil
}

func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	return m.started
}
