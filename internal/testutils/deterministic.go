// Package testutils provides deterministic generators and utility functions for sales agent testing.
// These utilities keep action logs and transcripts reproducible in test mode while preserving
// the production formats.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// baseTime is the first deterministic timestamp handed out in test mode.
var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator produces IDs and timestamps. In test mode both are deterministic
// and strictly increasing; otherwise they come from uuid and the wall clock.
type Generator struct {
	testMode bool

	mu          sync.Mutex
	idCounter   uint64
	timeCounter int64
}

// NewGenerator creates a generator; testMode selects deterministic output.
func NewGenerator(testMode bool) *Generator {
	return &Generator{testMode: testMode}
}

// IsTestMode reports whether the generator is deterministic.
func (g *Generator) IsTestMode() bool {
	return g.testMode
}

// NewID returns a UUID. In test mode it returns UUIDs in the format
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, etc.
func (g *Generator) NewID() string {
	if !g.testMode {
		return uuid.New().String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", g.idCounter, g.idCounter)
}

// Now returns the current time. In test mode each call returns a time one
// second later than the previous call, starting at 2025-01-01T00:00:01Z.
func (g *Generator) Now() time.Time {
	if !g.testMode {
		return time.Now()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.timeCounter++
	return baseTime.Add(time.Duration(g.timeCounter) * time.Second)
}

// SessionID returns a session identifier: fixed in test mode, time-based otherwise.
func (g *Generator) SessionID() string {
	if g.testMode {
		return "session_1609459200"
	}
	return fmt.Sprintf("session_%d", time.Now().Unix())
}

// Reset rewinds the deterministic counters.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idCounter = 0
	g.timeCounter = 0
}
