package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

func readOperations(t *testing.T, path string) []model.Operation {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ops []model.Operation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var op model.Operation
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &op))
		ops = append(ops, op)
	}
	require.NoError(t, scanner.Err())
	return ops
}

func TestJSONLOperationLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "operations.jsonl")
	log := NewJSONLOperationLog(path)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, log.RecordOperation(ctx, "stake", map[string]any{"correlation_id": "0x01", "amount": "500"}))
	require.NoError(t, log.RecordOperation(ctx, "unstake", map[string]any{"percent": "5"}))

	ops := readOperations(t, path)
	require.Len(t, ops, 2)
	assert.Equal(t, "stake", ops[0].Kind)
	assert.Equal(t, "0x01", ops[0].CorrelationID)
	assert.Equal(t, "500", ops[0].Payload["amount"])
	assert.True(t, ops[0].RecordedAt.Equal(fixed))
	assert.Empty(t, ops[1].CorrelationID)
}

func TestJSONLOperationLogRejectsEmptyKind(t *testing.T) {
	log := NewJSONLOperationLog(filepath.Join(t.TempDir(), "ops.jsonl"))
	require.Error(t, log.RecordOperation(context.Background(), "", nil))
}

func TestRecoveryLogWritesTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	rec := RecoveryLog{Log: NewJSONLOperationLog(path)}

	task := model.RecoveryTask{
		ID:            uuid.New(),
		CorrelationID: "0xfeed",
		User:          "0x2222222222222222222222222222222222222222",
		Amount:        "100",
		WithdrawalID:  "0xfeed",
		Error:         "bridge back failed",
		Status:        model.RecoveryOpen,
	}
	require.NoError(t, rec.CreateRecoveryTask(context.Background(), task))

	ops := readOperations(t, path)
	require.Len(t, ops, 1)
	assert.Equal(t, "recovery_task", ops[0].Kind)
	assert.Equal(t, "0xfeed", ops[0].CorrelationID)
	assert.Equal(t, task.ID.String(), ops[0].Payload["id"])
	assert.Equal(t, "open", ops[0].Payload["status"])
}
