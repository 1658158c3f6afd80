package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flakyJournal fails the next completeFailures Complete calls.
type flakyJournal struct {
	*MemoryJournal
	completeFailures int
}

func (j *flakyJournal) Complete(ctx context.Context, key string, result StepResult) error {
	if j.completeFailures > 0 {
		j.completeFailures--
		return errors.New("conn closed")
	}
	return j.MemoryJournal.Complete(ctx, key, result)
}

func TestStepRunnerRetriesJournalComplete(t *testing.T) {
	chain := newFakeChain()
	journal := &flakyJournal{MemoryJournal: NewMemoryJournal(), completeFailures: 1}
	runner := stepRunner{journal: journal, logger: zap.NewNop()}
	rc := runContext(wei(10))

	_, err := runner.run(context.Background(), bridgeStep{bridger: chain}, rc)
	require.NoError(t, err)

	entry, ok := journal.Entry(IdempotencyKey(rc.CorrelationID, StepBridge))
	require.True(t, ok)
	assert.Equal(t, JournalCompleted, entry.Status)
}

func TestStepRunnerReportsUnrecordedSuccess(t *testing.T) {
	chain := newFakeChain()
	journal := &flakyJournal{MemoryJournal: NewMemoryJournal(), completeFailures: 2}
	core, logs := observer.New(zapcore.ErrorLevel)
	runner := stepRunner{journal: journal, logger: zap.New(core)}
	rc := runContext(wei(10))
	key := IdempotencyKey(rc.CorrelationID, StepBridge)

	result, err := runner.run(context.Background(), bridgeStep{bridger: chain}, rc)
	require.NoError(t, err, "the external effect happened, the step succeeded")

	entries := logs.FilterField(zap.String("idempotency_key", key)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, result.ExternalID, entries[0].ContextMap()["external_id"])

	entry, ok := journal.Entry(key)
	require.True(t, ok)
	assert.Equal(t, JournalStarted, entry.Status)
}
