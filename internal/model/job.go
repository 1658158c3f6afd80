package model

import "time"

// JobTypeContractEvent is the queue job type for decoded contract events.
const JobTypeContractEvent = "contract-event"

// Job is the queue envelope around a contract event.
type Job struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Attempt    int           `json:"attempt"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
	Event      ContractEvent `json:"event"`
}
