package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// EventHandler processes one decoded contract event.
type EventHandler func(ctx context.Context, event model.ContractEvent) error

// Router binds one handler per event name and routes queue jobs to them.
type Router struct {
	mu       sync.RWMutex
	handlers map[model.EventName]EventHandler
	metrics  metrics.Recorder
	logger   *zap.Logger
}

func NewRouter(recorder metrics.Recorder, logger *zap.Logger) *Router {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[model.EventName]EventHandler),
		metrics:  recorder,
		logger:   logger,
	}
}

// Handle registers h for name, replacing any previous binding.
func (r *Router) Handle(name model.EventName, h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch routes event to its handler. Events without a handler are logged
// and dropped. Handler errors are returned unchanged.
func (r *Router) Dispatch(ctx context.Context, event model.ContractEvent) error {
	r.metrics.WriteContractEvent(event)

	r.mu.RLock()
	h, ok := r.handlers[event.Name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no handler for event, dropped",
			zap.String("contract", event.Contract),
			zap.String("event", string(event.Name)),
			zap.Uint64("block", event.BlockNumber),
			zap.String("tx", event.TxHash),
		)
		return nil
	}
	return h(ctx, event)
}

// HandleJob is the queue consumer entry point.
func (r *Router) HandleJob(ctx context.Context, job model.Job) error {
	if job.Type != model.JobTypeContractEvent {
		r.logger.Warn("unknown job type, dropped", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := job.Event.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	logger := r.logger.With(
		zap.String("job_id", job.ID),
		zap.String("event", string(job.Event.Name)),
		zap.String("correlation_id", job.Event.CorrelationID()),
	)
	logger.Debug("dispatch job", zap.Int("attempt", job.Attempt))

	if err := r.Dispatch(ctx, job.Event); err != nil {
		logger.Warn("job handler failed", zap.Error(err))
		return err
	}
	return nil
}
