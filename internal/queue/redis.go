package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// promoteScript moves due retries from the delayed set back onto the stream atomically.
var promoteScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, item in ipairs(items) do
  redis.call('ZREM', KEYS[1], item)
  redis.call('XADD', KEYS[2], '*', 'job', item)
end
return #items
`)

// NewRedisClient connects to Redis from a URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue is a durable at-least-once job queue on a Redis stream with a
// consumer group, a delayed retry set and a dead-letter stream.
type RedisQueue struct {
	client   *redis.Client
	cfg      Config
	logger   *zap.Logger
	observer metrics.JobObserver
	now      func() time.Time
}

// Stats is a snapshot of queue depth.
type Stats struct {
	Stream     int64
	Pending    int64
	Delayed    int64
	DeadLetter int64
}

func NewRedisQueue(client *redis.Client, cfg Config, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client:   client,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		observer: metrics.NoopRecorder{},
		now:      time.Now,
	}
}

// WithObserver reports job outcomes to o.
func (q *RedisQueue) WithObserver(o metrics.JobObserver) *RedisQueue {
	if o != nil {
		q.observer = o
	}
	return q
}

func (q *RedisQueue) delayedKey() string    { return q.cfg.Stream + ":delayed" }
func (q *RedisQueue) deadLetterKey() string { return q.cfg.Stream + ":dead" }

// Enqueue appends a new job to the stream and returns its id.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, event model.ContractEvent) (string, error) {
	if err := event.Validate(); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}
	job := model.Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		EnqueuedAt: q.now().UTC(),
		Event:      event,
	}
	raw, err := encodeJob(job)
	if err != nil {
		return "", err
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]interface{}{jobField: raw},
	}).Err()
	if err != nil {
		return "", &DeliveryError{Op: "enqueue", Err: err}
	}
	return job.ID, nil
}

// Stats returns the current queue depth.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	streamLen := pipe.XLen(ctx, q.cfg.Stream)
	delayed := pipe.ZCard(ctx, q.delayedKey())
	dead := pipe.XLen(ctx, q.deadLetterKey())
	pending := pipe.XPending(ctx, q.cfg.Stream, q.cfg.Group)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) && !isNoGroup(err) {
		return Stats{}, &DeliveryError{Op: "stats", Err: err}
	}

	stats := Stats{Stream: streamLen.Val(), Delayed: delayed.Val(), DeadLetter: dead.Val()}
	if p := pending.Val(); p != nil {
		stats.Pending = p.Count
	}
	return stats, nil
}

// Run consumes jobs until ctx is cancelled. Handlers run with a context that
// is not cancelled by shutdown, so an in-flight pipeline finishes.
func (q *RedisQueue) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is nil")
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	q.logger.Info("queue consumer start",
		zap.String("stream", q.cfg.Stream),
		zap.String("group", q.cfg.Group),
		zap.Int("concurrency", q.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.promoteLoop(gctx) })
	g.Go(func() error { return q.reclaimLoop(gctx, handler) })
	for i := 0; i < q.cfg.Concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.cfg.Consumer, i)
		g.Go(func() error { return q.consumeLoop(gctx, consumer, handler) })
	}
	return g.Wait()
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return &DeliveryError{Op: "create group", Err: err}
	}
	return nil
}

func (q *RedisQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    1,
			Block:    q.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("read group failed", zap.String("consumer", consumer), zap.Error(err))
			if !sleepCtx(ctx, q.cfg.BaseBackoff) {
				return nil
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.process(ctx, consumer, msg, handler)
			}
		}
	}
}

func (q *RedisQueue) reclaimLoop(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(q.cfg.ClaimIdle / 2)
	defer ticker.Stop()

	consumer := q.cfg.Consumer + "-reclaim"
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := "0-0"
		for {
			msgs, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   q.cfg.Stream,
				Group:    q.cfg.Group,
				MinIdle:  q.cfg.ClaimIdle,
				Start:    start,
				Count:    1,
				Consumer: consumer,
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					q.logger.Warn("auto claim failed", zap.Error(err))
				}
				break
			}
			for _, msg := range msgs {
				q.logger.Info("reclaimed stale job", zap.String("message_id", msg.ID))
				q.process(ctx, consumer, msg, handler)
			}
			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
}

func (q *RedisQueue) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
			q.logger.Warn("promote delayed jobs failed", zap.Error(err))
		}
	}
}

func (q *RedisQueue) promoteDue(ctx context.Context) (int64, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	moved, err := promoteScript.Run(ctx, q.client, []string{q.delayedKey(), q.cfg.Stream}, now, q.cfg.BatchSize).Int64()
	if err != nil {
		return 0, &DeliveryError{Op: "promote", Err: err}
	}
	return moved, nil
}

func (q *RedisQueue) process(ctx context.Context, consumer string, msg redis.XMessage, handler Handler) {
	ackCtx := context.WithoutCancel(ctx)
	job, err := decodeJob(msg.Values)
	if err != nil {
		q.logger.Error("drop malformed job", zap.String("message_id", msg.ID), zap.Error(err))
		q.deadLetter(ackCtx, msg, fmt.Sprintf("%v", msg.Values[jobField]), err)
		return
	}

	logger := q.logger.With(
		zap.String("job_id", job.ID),
		zap.String("event", string(job.Event.Name)),
		zap.Int("attempt", job.Attempt),
	)
	stopHeartbeat := q.heartbeat(ackCtx, consumer, msg.ID)
	start := q.now()
	herr := handler(ackCtx, job)
	elapsed := q.now().Sub(start)
	stopHeartbeat()

	if herr == nil {
		if err := q.client.XAck(ackCtx, q.cfg.Stream, q.cfg.Group, msg.ID).Err(); err != nil {
			logger.Error("ack failed", zap.Error(err))
		}
		q.observer.ObserveJob(string(job.Event.Name), "success", elapsed)
		return
	}

	next := job.Attempt + 1
	if next >= q.cfg.MaxAttempts {
		logger.Error("job exhausted retries", zap.Error(herr))
		raw, _ := encodeJob(job)
		q.deadLetter(ackCtx, msg, raw, herr)
		q.observer.ObserveJob(string(job.Event.Name), "dead_letter", elapsed)
		return
	}

	delay := q.cfg.Backoff(next)
	job.Attempt = next
	if err := q.scheduleRetry(ackCtx, msg.ID, job, delay); err != nil {
		logger.Error("schedule retry failed, job left pending", zap.Error(err))
		return
	}
	logger.Warn("job failed, retry scheduled", zap.Error(herr), zap.Duration("delay", delay))
	q.observer.ObserveJob(string(job.Event.Name), "retry", elapsed)
}

// heartbeat re-claims the message for its current owner every Heartbeat,
// resetting its idle time so XAUTOCLAIM leaves it alone while the handler runs.
func (q *RedisQueue) heartbeat(ctx context.Context, consumer, messageID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(q.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := q.client.XClaimJustID(ctx, &redis.XClaimArgs{
				Stream:   q.cfg.Stream,
				Group:    q.cfg.Group,
				Consumer: consumer,
				Messages: []string{messageID},
			}).Err()
			if err != nil && ctx.Err() == nil {
				q.logger.Warn("job heartbeat failed", zap.String("message_id", messageID), zap.Error(err))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, messageID string, job model.Job, delay time.Duration) error {
	raw, err := encodeJob(job)
	if err != nil {
		return err
	}
	readyAt := q.now().Add(delay).UnixMilli()

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(readyAt), Member: raw})
		pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, messageID)
		return nil
	})
	if err != nil {
		return &DeliveryError{Op: "schedule retry", Err: err}
	}
	return nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, msg redis.XMessage, raw string, cause error) {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: q.deadLetterKey(),
			Values: map[string]interface{}{
				jobField:     raw,
				"error":      cause.Error(),
				"message_id": msg.ID,
				"failed_at":  q.now().UTC().Format(time.RFC3339Nano),
			},
		})
		pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, msg.ID)
		return nil
	})
	if err != nil {
		q.logger.Error("dead-letter failed, job left pending", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func isNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
