package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONLOperationLog appends operations to a JSONL file.
type JSONLOperationLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewJSONLOperationLog(path string) *JSONLOperationLog {
	return &JSONLOperationLog{path: path, now: time.Now}
}

// RecordOperation appends one operation as a JSON line.
func (s *JSONLOperationLog) RecordOperation(_ context.Context, kind string, payload map[string]any) error {
	if kind == "" {
		return fmt.Errorf("operation kind is required")
	}

	line, err := json.Marshal(NewOperation(kind, payload, s.now()))
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}
