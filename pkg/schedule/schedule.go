// Package schedule runs periodic maintenance jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Cron runs registered jobs until stopped. Overlapping runs of the same job are skipped.
type Cron struct {
	logger *slog.Logger
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) *Cron {
	return &Cron{
		logger: logger.With("module", "schedule"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		jobs: make(map[string]cron.EntryID),
	}
}

// Validate checks a standard five field cron expression.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	return nil
}

// Add registers job on expr. Jobs added after Start run as well.
func (c *Cron) Add(expr string, job Job) error {
	if err := Validate(expr); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}

	entryID, err := c.cron.AddFunc(expr, func() { c.run(job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name(), err)
	}

	c.mutex.Lock()
	c.jobs[job.Name()] = entryID
	c.mutex.Unlock()

	c.logger.Info("Added cron job", "job", job.Name(), "cron", expr, "entry_id", entryID)

	return nil
}

func (c *Cron) run(job Job) {
	c.mutex.Lock()
	ctx := c.ctx
	c.mutex.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	logger := c.logger.With("job", job.Name())
	started := time.Now()

	err := job.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Cron job failed", "error", err, "duration", time.Since(started))

		return
	}

	logger.DebugContext(ctx, "Cron job finished", "duration", time.Since(started))
}

func (c *Cron) Start(ctx context.Context) {
	c.mutex.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	count := len(c.jobs)
	c.mutex.Unlock()

	c.cron.Start()
	c.logger.InfoContext(ctx, "Cron scheduler started", "jobs", count)
}

// Stop cancels running jobs and waits for them to return.
func (c *Cron) Stop(ctx context.Context) {
	c.mutex.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mutex.Unlock()

	<-c.cron.Stop().Done()
	c.logger.InfoContext(ctx, "Cron scheduler stopped")
}
