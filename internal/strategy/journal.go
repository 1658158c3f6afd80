package strategy

import (
	"context"
	"sync"
	"time"
)

// JournalStatus is the state of an idempotency entry.
type JournalStatus string

const (
	JournalStarted   JournalStatus = "started"
	JournalCompleted JournalStatus = "completed"
	JournalFailed    JournalStatus = "failed"
)

// JournalEntry is the recorded state of one step attempt.
type JournalEntry struct {
	Status    JournalStatus
	Result    StepResult
	Error     string
	UpdatedAt time.Time
}

// Journal is the idempotency store consulted before every external call.
type Journal interface {
	// Begin claims key for a new attempt. It returns acquired=false with the
	// existing entry when the key is started or completed; failed keys may be reclaimed.
	Begin(ctx context.Context, key string) (JournalEntry, bool, error)
	Complete(ctx context.Context, key string, result StepResult) error
	Fail(ctx context.Context, key string, cause error) error
}

// MemoryJournal keeps entries in process memory.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string]JournalEntry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string]JournalEntry)}
}

func (j *MemoryJournal) Begin(_ context.Context, key string) (JournalEntry, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry, ok := j.entries[key]; ok && entry.Status != JournalFailed {
		return entry, false, nil
	}
	j.entries[key] = JournalEntry{Status: JournalStarted, UpdatedAt: time.Now().UTC()}
	return JournalEntry{}, true, nil
}

func (j *MemoryJournal) Complete(_ context.Context, key string, result StepResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[key] = JournalEntry{Status: JournalCompleted, Result: result, UpdatedAt: time.Now().UTC()}
	return nil
}

func (j *MemoryJournal) Fail(_ context.Context, key string, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry := JournalEntry{Status: JournalFailed, UpdatedAt: time.Now().UTC()}
	if cause != nil {
		entry.Error = cause.Error()
	}
	j.entries[key] = entry
	return nil
}

// Entry returns the current entry for key.
func (j *MemoryJournal) Entry(key string) (JournalEntry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[key]
	return entry, ok
}
