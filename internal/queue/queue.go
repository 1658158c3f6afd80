package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// DeliveryError reports a broker failure. The job was not acknowledged and
// stays eligible for redelivery.
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Enqueuer accepts jobs from the ingestion side.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, event model.ContractEvent) (string, error)
}

// Handler processes one job. A non-nil error schedules a retry or dead-letters the job.
type Handler func(ctx context.Context, job model.Job) error

// Config holds queue and consumer settings.
type Config struct {
	Stream      string
	Group       string
	Consumer    string
	Concurrency int
	// BatchSize caps the delayed jobs promoted per tick. Consumers read one
	// message at a time so nothing idles in a consumer's pending list.
	BatchSize   int64
	Block       time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	ClaimIdle   time.Duration
	// Heartbeat is how often a running job's idle time is reset so it is not
	// reclaimed while its handler is still working. Defaults to ClaimIdle/3.
	Heartbeat       time.Duration
	PromoteInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = "event-queue"
	}
	if c.Group == "" {
		c.Group = "strategy-workers"
	}
	if c.Consumer == "" {
		c.Consumer = "worker"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Block <= 0 {
		c.Block = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = 10 * time.Minute
	}
	if c.Heartbeat <= 0 || c.Heartbeat >= c.ClaimIdle {
		c.Heartbeat = c.ClaimIdle / 3
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = time.Second
	}
	return c
}

// Backoff returns the delay before the given retry attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if delay > c.MaxBackoff {
		return c.MaxBackoff
	}
	return delay
}

const jobField = "job"

func encodeJob(job model.Job) (string, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	return string(raw), nil
}

func decodeJob(values map[string]interface{}) (model.Job, error) {
	raw, ok := values[jobField].(string)
	if !ok {
		return model.Job{}, fmt.Errorf("message has no %q field", jobField)
	}
	var job model.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return model.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}
