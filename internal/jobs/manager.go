// Package jobs runs periodic housekeeping on a cron schedule.
//
// Jobs are plain functions registered on a Manager:
//
//	m := jobs.NewManager(logger)
//	_ = m.Add("retention", "@every 1m", retention.Run)
//	_ = m.Add("deadline", "@every 5s", deadline.Run)
//	err := m.Run(ctx) // blocks until ctx is done
//
// A job that is still running when its next tick arrives is skipped, and a
// panicking job is recovered and logged.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"courier-dispatch/internal/logx"
)

// Func is a single job run. ctx is cancelled when the manager stops.
type Func func(ctx context.Context) error

// Manager owns the cron scheduler and every registered job.
type Manager struct {
	cron   *cron.Cron
	logger logx.Logger
	ctx    context.Context
	cancel context.CancelFunc
	names  []string
}

// NewManager creates a Manager. Schedules use the standard five-field
// syntax or descriptors like "@every 30s".
func NewManager(logger logx.Logger) *Manager {
	logger = logx.OrNop(logger).With(logx.Component("jobs"))
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under name on spec.
func (m *Manager) Add(name, spec string, fn Func) error {
	log := m.logger.With(logx.String("job", name))
	_, err := m.cron.AddFunc(spec, func() {
		if err := fn(m.ctx); err != nil && m.ctx.Err() == nil {
			log.Error("job failed", logx.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	m.names = append(m.names, name)
	return nil
}

// Jobs returns the names of the registered jobs.
func (m *Manager) Jobs() []string {
	return append([]string(nil), m.names...)
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (m *Manager) Run(ctx context.Context) error {
	m.cron.Start()
	m.logger.Info("jobs started", logx.Int("count", len(m.names)))

	<-ctx.Done()
	m.cancel()
	<-m.cron.Stop().Done()
	m.logger.Info("jobs stopped")
	return nil
}

// cronLogger routes cron's own messages into logx.
type cronLogger struct {
	logger logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(kv(keysAndValues), logx.Err(err))...)
}

func kv(pairs []any) []logx.Field {
	out := make([]logx.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(pairs[i]), pairs[i+1]))
	}
	return out
}
