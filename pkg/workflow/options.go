package workflow

import (
	"time"

	"github.com/dukex/signflow/pkg/locking"
	"go.opentelemetry.io/otel/trace"
)

const defaultCommitAttempts = 3

type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocker serializes mutations of one workflow through locker.
func WithLocker(locker locking.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithRetention schedules content deletion on completion and rejection.
func WithRetention(scheduler RetentionScheduler) Option {
	return func(e *Engine) {
		e.retention = scheduler
	}
}

// WithReminders generates deadline reminders at creation.
func WithReminders(generator ReminderGenerator) Option {
	return func(e *Engine) {
		e.reminders = generator
	}
}

// WithAutoAdvance toggles the dispatch of the next step after a transition.
func WithAutoAdvance(enabled bool) Option {
	return func(e *Engine) {
		e.autoAdvance = enabled
	}
}

// WithCommitAttempts bounds the retries of a commit that lost a revision race.
func WithCommitAttempts(attempts int) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.commitAttempts = attempts
		}
	}
}
