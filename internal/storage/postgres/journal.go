package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

var _ strategy.Journal = (*Store)(nil)

// Begin claims key in step_journal. Only a missing or failed entry can be claimed.
func (s *Store) Begin(ctx context.Context, key string) (strategy.JournalEntry, bool, error) {
	if key == "" {
		return strategy.JournalEntry{}, false, fmt.Errorf("journal key required")
	}

	var claimed string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO step_journal (key, status, updated_at)
		VALUES ($1, 'started', now())
		ON CONFLICT (key) DO UPDATE
		SET status = 'started', success = FALSE, external_id = '', details = '{}'::jsonb, error = '', updated_at = now()
		WHERE step_journal.status = 'failed'
		RETURNING key
	`, key).Scan(&claimed)
	if err == nil {
		return strategy.JournalEntry{}, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return strategy.JournalEntry{}, false, fmt.Errorf("claim %s: %w", key, err)
	}

	entry, err := s.journalEntry(ctx, key)
	if err != nil {
		return strategy.JournalEntry{}, false, err
	}
	return entry, false, nil
}

func (s *Store) Complete(ctx context.Context, key string, result strategy.StepResult) error {
	details := result.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE step_journal
		SET status = 'completed', success = $2, external_id = $3, details = $4, error = '', updated_at = now()
		WHERE key = $1
	`, key, result.Success, result.ExternalID, details)
	if err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Fail(ctx context.Context, key string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE step_journal SET status = 'failed', error = $2, updated_at = now() WHERE key = $1
	`, key, msg)
	if err != nil {
		return fmt.Errorf("fail %s: %w", key, err)
	}
	return nil
}

func (s *Store) journalEntry(ctx context.Context, key string) (strategy.JournalEntry, error) {
	var (
		entry   strategy.JournalEntry
		status  string
		details map[string]string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT status, success, external_id, details, error, updated_at
		FROM step_journal WHERE key = $1
	`, key).Scan(&status, &entry.Result.Success, &entry.Result.ExternalID, &details, &entry.Error, &entry.UpdatedAt)
	if err != nil {
		return strategy.JournalEntry{}, fmt.Errorf("load journal %s: %w", key, err)
	}
	entry.Status = strategy.JournalStatus(status)
	if len(details) > 0 {
		entry.Result.Details = details
	}
	return entry, nil
}
