package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/policy"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTransition creates a transition with minimal required fields.
func createTestTransition(id string, seq int64, action engine.Action, at time.Time) engine.Transition {
	return engine.Transition{
		ID:         id,
		Seq:        seq,
		Action:     action,
		At:         at,
		Date:       "2024-01-01",
		Day:        1,
		State:      engine.Completed,
		Way:        policy.Way30,
		Units:      []int{},
		RecordHash: "test-hash",
	}
}
