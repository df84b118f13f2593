package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"salesagent/internal/version"
	"salesagent/pkg/agenttypes"
)

// Snapshot is the serializable form of a State, used for export and post-hoc analysis.
type Snapshot struct {
	Version     string                  `json:"version,omitempty"`
	ID          string                  `json:"id"`
	Lead        agenttypes.Lead         `json:"lead"`
	Company     string                  `json:"company,omitempty"`
	Memory      agenttypes.MemoryRecord `json:"memory"`
	Transcript  []agenttypes.Utterance  `json:"messages"`
	Snippets    []string                `json:"retrieved_docs,omitempty"`
	Guidance    agenttypes.Guidance     `json:"guidance"`
	TurnCounter int                     `json:"turn_counter"`
	Current     []agenttypes.Action     `json:"current_turn_actions,omitempty"`
	History     []agenttypes.Turn       `json:"scratchpad"`
	Terminated  bool                    `json:"end_conversation"`
}

// Snapshot captures a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Version:     version.GetVersion(),
		ID:          s.ID,
		Lead:        s.Lead,
		Company:     s.Company,
		Memory:      s.Memory,
		Transcript:  s.Transcript(),
		Snippets:    s.Snippets(),
		Guidance:    s.Guidance(),
		TurnCounter: s.turnCounter,
		Current:     s.CurrentActions(),
		History:     s.History(),
		Terminated:  s.terminated,
	}
}

// Restore rebuilds a State from a snapshot.
func Restore(snap Snapshot, opts ...Option) *State {
	s := New(snap.ID, snap.Lead, snap.Company, snap.Memory, opts...)
	s.transcript = append([]agenttypes.Utterance(nil), snap.Transcript...)
	s.snippets = append([]string(nil), snap.Snippets...)
	s.guidance = snap.Guidance.Clone()
	s.turnCounter = snap.TurnCounter
	for _, a := range snap.Current {
		s.current = append(s.current, a.Clone())
	}
	for _, t := range snap.History {
		s.history = append(s.history, t.Clone())
	}
	s.terminated = snap.Terminated
	return s
}

// MarshalJSON encodes the state through its snapshot.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// ExportFile writes the snapshot as indented JSON, creating parent directories.
func (s *State) ExportFile(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot written by ExportFile without restoring it.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	return snap, nil
}
