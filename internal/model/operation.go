package model

import (
	"time"

	"github.com/google/uuid"
)

// Operation is one entry of the append-only operation journal.
type Operation struct {
	Kind          string         `json:"kind" bson:"kind"`
	CorrelationID string         `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload" bson:"payload"`
	RecordedAt    time.Time      `json:"recorded_at" bson:"recorded_at"`
}

// RecoveryTaskStatus tracks manual follow-up of a failed withdrawal.
type RecoveryTaskStatus string

const (
	RecoveryOpen     RecoveryTaskStatus = "open"
	RecoveryResolved RecoveryTaskStatus = "resolved"
)

// RecoveryTask records a withdrawal that needs operator attention.
type RecoveryTask struct {
	ID            uuid.UUID          `json:"id"`
	CorrelationID string             `json:"correlation_id"`
	User          string             `json:"user"`
	Amount        string             `json:"amount"`
	WithdrawalID  string             `json:"withdrawal_id"`
	Error         string             `json:"error"`
	Status        RecoveryTaskStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
}
