package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/signflow/pkg/activity"
	"github.com/dukex/signflow/pkg/config"
	"github.com/dukex/signflow/pkg/dispatch"
	"github.com/dukex/signflow/pkg/eventbus"
	"github.com/dukex/signflow/pkg/intake"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/dukex/signflow/pkg/reminders"
	"github.com/dukex/signflow/pkg/retention"
	"github.com/dukex/signflow/pkg/schedule"
	"github.com/dukex/signflow/pkg/workflow"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// RuntimeOptions are the command line inputs shared by the binaries.
type RuntimeOptions struct {
	DatabaseURL  string
	ConfigFile   string
	EventBus     string
	KafkaBrokers string
	Tracer       trace.Tracer
}

// Runtime holds the engine and every collaborator wired around it.
type Runtime struct {
	Settings    *config.Settings
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Redis       redis.UniversalClient
	Engine      *workflow.Engine
	Dispatcher  *dispatch.Dispatcher
	Intake      *intake.Intake
	Sweeper     *retention.Sweeper
	Reminders   *reminders.Runner

	logger *slog.Logger
}

func NewRuntime(ctx context.Context, logger *slog.Logger, options RuntimeOptions) (*Runtime, error) {
	settings, err := config.Load(options.ConfigFile)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Settings: settings, logger: logger}

	rt.Persistence, err = NewPersistence(ctx, logger, options.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	rt.EventBus, err = NewEventBus(options.EventBus, options.KafkaBrokers, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	rt.Redis = NewRedisClient(settings.Redis)

	packages, err := NewStorage(ctx, settings.Storage, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	m, err := NewMailer(settings.Mailer, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	recorder := activity.NewLogger(rt.Persistence.ActivityRepository(), rt.EventBus, logger)

	engineOptions := []workflow.Option{
		workflow.WithLocker(NewLocker(rt.Redis, settings, logger)),
		workflow.WithRetention(retention.NewScheduler(rt.Persistence.RetentionRepository(), recorder, logger,
			retention.WithPeriod(settings.RetentionPeriod()))),
		workflow.WithReminders(reminders.NewGenerator(rt.Persistence.ReminderRepository(), recorder,
			settings.Reminders.LeadDays, logger)),
		workflow.WithAutoAdvance(settings.AutoAdvance()),
	}

	if options.Tracer != nil {
		engineOptions = append(engineOptions, workflow.WithTracer(options.Tracer))
	}

	rt.Engine = workflow.NewEngine(rt.Persistence, recorder, logger, engineOptions...)

	rt.Dispatcher = dispatch.NewDispatcher(rt.Engine, recorder, logger,
		dispatch.WithStorage(packages),
		dispatch.WithMailer(m),
		dispatch.WithTimeout(settings.DispatchTimeout()),
		dispatch.WithTemplates(settings.Dispatch.Subject, settings.Dispatch.Body),
	)
	rt.Engine.SetAdvancer(rt.Dispatcher)

	rt.Intake, err = intake.New(rt.Engine, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	var deleter retention.PackageDeleter
	if packages != nil {
		deleter = packages
	}

	rt.Sweeper = retention.NewSweeper(rt.Persistence, deleter, recorder, logger)
	rt.Reminders = reminders.NewRunner(rt.Persistence, m, recorder, logger)

	logger.InfoContext(ctx, "Runtime ready",
		"hosted_packages", packages != nil,
		"mailer", m != nil,
		"redis", rt.Redis != nil,
		"auto_advance", settings.AutoAdvance(),
	)

	return rt, nil
}

// Cron schedules the retention sweeper and the reminder runner.
func (rt *Runtime) Cron() (*schedule.Cron, error) {
	cron := schedule.New(rt.logger)

	if err := cron.Add(rt.Settings.Retention.Schedule, rt.Sweeper); err != nil {
		return nil, err
	}

	if err := cron.Add(rt.Settings.Reminders.Schedule, rt.Reminders); err != nil {
		return nil, err
	}

	return cron, nil
}

// Queue returns the Redis return queue consumer, or nil without Redis.
func (rt *Runtime) Queue() *intake.Queue {
	if rt.Redis == nil {
		return nil
	}

	return intake.NewQueue(rt.Redis, rt.Settings.Redis.ReturnQueue, rt.Intake, rt.logger)
}

// Close waits for pending dispatches, then releases the bus, Redis and the store.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error

	if rt.Engine != nil {
		rt.Engine.Wait()
	}

	if rt.EventBus != nil {
		if err := rt.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event bus: %w", err))
		}
	}

	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if rt.Persistence != nil {
		if err := rt.Persistence.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close persistence: %w", err))
		}
	}

	return errors.Join(errs...)
}
