package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the batch jobs on cron expressions, each wrapped in the
// ledger envelope. An empty cron expression leaves that job manual-only.
type Scheduler struct {
	s      gocron.Scheduler
	runner *Runner
	log    *zap.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner *Runner, log *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(&gocronLogger{log: log.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{s: s, runner: runner, log: log}, nil
}

// Add schedules a job by cron expression. An empty expression is a no-op.
func (sc *Scheduler) Add(name, cronExpr string, fn func(ctx context.Context) error) error {
	if cronExpr == "" {
		sc.log.Info("job not scheduled", zap.String("job", name))
		return nil
	}
	_, err := sc.s.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			_ = sc.runner.Run(context.Background(), name, fn)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	sc.log.Info("job scheduled", zap.String("job", name), zap.String("cron", cronExpr))
	return nil
}

// Start begins executing scheduled jobs.
func (sc *Scheduler) Start() {
	sc.s.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (sc *Scheduler) Stop() error {
	return sc.s.Shutdown()
}

// gocronLogger adapts zap to gocron's logger interface.
type gocronLogger struct {
	log *zap.SugaredLogger
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.log.Debugw(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.log.Errorw(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.log.Infow(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.log.Warnw(msg, args...) }
