package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
)

var _ storage.OperationLog = (*Store)(nil)

// RecordOperation appends one entry to the operations table.
func (s *Store) RecordOperation(ctx context.Context, kind string, payload map[string]any) error {
	op := storage.NewOperation(kind, payload, time.Now())
	if op.Payload == nil {
		op.Payload = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO operations (kind, correlation_id, payload, recorded_at)
		VALUES ($1, $2, $3, $4)
	`, op.Kind, op.CorrelationID, op.Payload, op.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert operation %s: %w", kind, err)
	}
	return nil
}

// Operations returns the journal entries recorded for a correlation id, oldest first.
func (s *Store) Operations(ctx context.Context, correlationID string) ([]model.Operation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, correlation_id, payload, recorded_at
		FROM operations WHERE correlation_id = $1 ORDER BY id
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []model.Operation
	for rows.Next() {
		var op model.Operation
		if err := rows.Scan(&op.Kind, &op.CorrelationID, &op.Payload, &op.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
