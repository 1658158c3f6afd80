package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

var _ strategy.RecoveryTaskStore = (*Store)(nil)

// CreateRecoveryTask stores a task. Re-creating an existing id is a no-op.
func (s *Store) CreateRecoveryTask(ctx context.Context, task model.RecoveryTask) error {
	if task.Status == "" {
		task.Status = model.RecoveryOpen
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recovery_tasks (id, correlation_id, user_address, amount, withdrawal_id, error, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, task.ID, task.CorrelationID, task.User, task.Amount, task.WithdrawalID, task.Error, string(task.Status), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recovery task: %w", err)
	}
	return nil
}

// OpenRecoveryTasks lists unresolved tasks, oldest first.
func (s *Store) OpenRecoveryTasks(ctx context.Context, limit int) ([]model.RecoveryTask, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, correlation_id, user_address, amount, withdrawal_id, error, status, created_at
		FROM recovery_tasks WHERE status = $1 ORDER BY created_at LIMIT $2
	`, string(model.RecoveryOpen), limit)
	if err != nil {
		return nil, fmt.Errorf("query recovery tasks: %w", err)
	}
	defer rows.Close()

	var out []model.RecoveryTask
	for rows.Next() {
		var (
			task   model.RecoveryTask
			status string
		)
		if err := rows.Scan(&task.ID, &task.CorrelationID, &task.User, &task.Amount, &task.WithdrawalID, &task.Error, &status, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recovery task: %w", err)
		}
		task.Status = model.RecoveryTaskStatus(status)
		out = append(out, task)
	}
	return out, rows.Err()
}

// ResolveRecoveryTask marks a task resolved. It reports whether an open task was updated.
func (s *Store) ResolveRecoveryTask(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE recovery_tasks SET status = $2, resolved_at = now()
		WHERE id = $1 AND status = $3
	`, id, string(model.RecoveryResolved), string(model.RecoveryOpen))
	if err != nil {
		return false, fmt.Errorf("resolve recovery task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
