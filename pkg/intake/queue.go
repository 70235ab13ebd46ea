package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultQueue = "signflow:returns"

	popTimeout   = time.Second
	errorBackoff = time.Second
)

// Queue consumes return files pushed on a Redis list, one JSON document per element.
type Queue struct {
	client redis.UniversalClient
	name   string
	intake *Intake
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(client redis.UniversalClient, name string, intake *Intake, logger *slog.Logger) *Queue {
	if name == "" {
		name = DefaultQueue
	}

	return &Queue{
		client: client,
		name:   name,
		intake: intake,
		logger: logger.With("module", "return_queue", "queue", name),
	}
}

func (q *Queue) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := q.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(1)

	go q.consume(ctx)

	q.logger.InfoContext(ctx, "Return queue consumer started")

	return nil
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "Return queue consumer stopped")

			return
		default:
			err := q.processMessage(ctx)
			if err != nil && ctx.Err() == nil {
				q.logger.ErrorContext(ctx, "Error processing return", "error", err)
				time.Sleep(errorBackoff)
			}
		}
	}
}

// processMessage pops one return and applies it. Returns that fail on storage are pushed back.
func (q *Queue) processMessage(ctx context.Context) error {
	result, err := q.client.BLPop(ctx, popTimeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop return from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	_, err = q.intake.Import(ctx, []byte(message))

	switch {
	case errors.Is(err, ErrInvalidPayload):
		q.logger.WarnContext(ctx, "Dropping invalid return", "error", err)

		return nil
	case err != nil:
		pushErr := q.client.RPush(context.WithoutCancel(ctx), q.name, message).Err()
		if pushErr != nil {
			return errors.Join(err, fmt.Errorf("failed to requeue return: %w", pushErr))
		}

		return err
	default:
		return nil
	}
}

func (q *Queue) Stop(ctx context.Context) error {
	if q.cancel != nil {
		q.cancel()
	}

	q.wg.Wait()

	q.logger.InfoContext(ctx, "Return queue closed")

	return nil
}
