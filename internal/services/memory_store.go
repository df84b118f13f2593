package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// FileMemoryStore persists long-term memory for every lead in a single JSON
// document keyed by lead id. Writes go to a temp file that replaces the original.
type FileMemoryStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileMemoryStore creates a store backed by the JSON file at path.
func NewFileMemoryStore(path string) *FileMemoryStore {
	return &FileMemoryStore{path: path, now: time.Now}
}

// Name returns the service name "memory" for registration.
func (s *FileMemoryStore) Name() string {
	return "memory"
}

// Initialize creates the parent directory of the memory file.
func (s *FileMemoryStore) Initialize() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create memory directory: %w", err)
		}
	}
	return nil
}

// Load returns the record for id. Missing files and unknown ids yield an empty record.
func (s *FileMemoryStore) Load(ctx context.Context, id string) (agenttypes.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return agenttypes.MemoryRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return agenttypes.MemoryRecord{}, err
	}
	return all[id], nil
}

// Save merges structured into the stored record for id and replaces its summary.
func (s *FileMemoryStore) Save(ctx context.Context, id string, structured map[string]any, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("memory id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	record := all[id]
	record.Summary = summary
	record.Structured = mergeStructured(record.Structured, structured)
	record.UpdatedAt = s.now()
	all[id] = record

	if err := s.writeAll(all); err != nil {
		return err
	}

	logger.Debug("Long-term memory saved", "lead", id, "path", s.path)
	return nil
}

func (s *FileMemoryStore) readAll() (map[string]agenttypes.MemoryRecord, error) {
	all := make(map[string]agenttypes.MemoryRecord)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}
	if len(data) == 0 {
		return all, nil
	}

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse memory file: %w", err)
	}
	return all, nil
}

func (s *FileMemoryStore) writeAll(all map[string]agenttypes.MemoryRecord) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace memory file: %w", err)
	}
	return nil
}

// mergeStructured overlays update onto base key by key without mutating either.
func mergeStructured(base, update map[string]any) map[string]any {
	if len(base) == 0 && len(update) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
