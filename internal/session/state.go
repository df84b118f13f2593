// Package session holds the per-conversation working memory of the sales agent.
// A State owns the transcript, the in-flight action buffer, the finalized turn
// history, retrieved snippets, guidance and the termination flag. It is used by a
// single goroutine and performs no locking.
package session

import (
	"time"

	"github.com/google/uuid"

	"salesagent/pkg/agenttypes"
)

// State is the mutable working memory of one conversation.
type State struct {
	// ID is the lead/session identifier used for persistence and log correlation.
	ID string
	// Lead holds the facts known about the prospect.
	Lead agenttypes.Lead
	// Company is the free-text company profile used in prompts.
	Company string
	// Memory is the long-term memory loaded at session start.
	Memory agenttypes.MemoryRecord

	transcript  []agenttypes.Utterance
	snippets    []string
	guidance    agenttypes.Guidance
	turnCounter int
	current     []agenttypes.Action
	history     []agenttypes.Turn
	terminated  bool

	now   func() time.Time
	newID func() string
}

// Option configures a State.
type Option func(*State)

// WithClock sets the timestamp source for actions, turns and utterances.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the action identifier source.
func WithIDGenerator(newID func() string) Option {
	return func(s *State) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New creates an empty session for the given lead.
func New(id string, lead agenttypes.Lead, company string, memory agenttypes.MemoryRecord, opts ...Option) *State {
	s := &State{
		ID:      id,
		Lead:    lead,
		Company: company,
		Memory:  memory,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendUtterance adds an entry to the transcript. Entries are never edited or removed.
func (s *State) AppendUtterance(speaker agenttypes.Speaker, text string) {
	s.transcript = append(s.transcript, agenttypes.Utterance{
		Speaker:   speaker,
		Text:      text,
		Timestamp: s.now(),
	})
}

// Transcript returns a copy of the transcript.
func (s *State) Transcript() []agenttypes.Utterance {
	return append([]agenttypes.Utterance(nil), s.transcript...)
}

// LastUtterance returns the most recent transcript entry.
func (s *State) LastUtterance() (agenttypes.Utterance, bool) {
	if len(s.transcript) == 0 {
		return agenttypes.Utterance{}, false
	}
	return s.transcript[len(s.transcript)-1], true
}

// LastAgentUtterance returns the text of the most recent agent entry, or "".
func (s *State) LastAgentUtterance() string {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Speaker == agenttypes.SpeakerAgent {
			return s.transcript[i].Text
		}
	}
	return ""
}

// AppendSnippet records a retrieval result for later reasoning steps.
func (s *State) AppendSnippet(snippet string) {
	s.snippets = append(s.snippets, snippet)
}

// Snippets returns a copy of the retrieved snippets.
func (s *State) Snippets() []string {
	return append([]string(nil), s.snippets...)
}

// Guidance returns a copy of the current guidance.
func (s *State) Guidance() agenttypes.Guidance {
	return s.guidance.Clone()
}

// ApplyGuidance replaces the guidance wholesale. Only the periodic guidance step calls it.
func (s *State) ApplyGuidance(g agenttypes.Guidance) {
	s.guidance = g.Clone()
}

// MergeGuidance folds a context update into the guidance: a non-empty stage or
// advice overwrites, scores merge per key, and list entries are appended once.
func (s *State) MergeGuidance(update agenttypes.Guidance) {
	if update.Stage != "" {
		s.guidance.Stage = update.Stage
	}
	if update.Advice != "" {
		s.guidance.Advice = update.Advice
	}
	if len(update.Scores) > 0 {
		if s.guidance.Scores == nil {
			s.guidance.Scores = make(map[string]int, len(update.Scores))
		}
		for k, v := range update.Scores {
			s.guidance.Scores[k] = v
		}
	}
	s.guidance.Signals = appendUnique(s.guidance.Signals, update.Signals...)
	s.guidance.Objections = appendUnique(s.guidance.Objections, update.Objections...)
	s.guidance.Notes = appendUnique(s.guidance.Notes, update.Notes...)
}

// Terminate sets the termination flag. It may only be set once.
func (s *State) Terminate() error {
	if s.terminated {
		return agenttypes.ErrAlreadyTerminated
	}
	s.terminated = true
	return nil
}

// Terminated reports whether the conversation has ended.
func (s *State) Terminated() bool {
	return s.terminated
}

// Now returns a timestamp from the session clock.
func (s *State) Now() time.Time {
	return s.now()
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
