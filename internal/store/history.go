package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/policy"
)

var (
	_ engine.Store        = (*Store)(nil)
	_ engine.HistoryStore = (*Store)(nil)
)

// AppendTransition inserts t into the history.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-appending an ID is
// silently ignored. A different ID reusing a seq is a constraint error.
func (s *Store) AppendTransition(ctx context.Context, t engine.Transition) error {
	units := t.Units
	if units == nil {
		units = []int{}
	}
	unitsJSON, err := json.Marshal(units)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(id, seq, action, at, local_date, day, state, way, unit, units, missed_days, record_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		t.ID,
		t.Seq,
		string(t.Action),
		t.At.UTC().Format(time.RFC3339Nano),
		t.Date.String(),
		t.Day,
		t.State.String(),
		int(t.Way),
		t.Unit,
		string(unitsJSON),
		t.MissedDays,
		t.RecordHash,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// LastSeq returns the highest seq in the history, or 0 when empty.
// Used to resume the logical clock.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM transitions
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// ReadTransitions returns the most recent limit transitions in seq order.
// limit <= 0 returns the whole history.
//
// Returns an empty slice (not nil) if the history is empty.
func (s *Store) ReadTransitions(ctx context.Context, limit int) ([]engine.Transition, error) {
	if limit <= 0 {
		return s.queryTransitions(ctx, `
			SELECT id, seq, action, at, local_date, day, state, way, unit, units, missed_days, record_hash
			FROM transitions
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`)
	}
	return s.queryTransitions(ctx, `
		SELECT id, seq, action, at, local_date, day, state, way, unit, units, missed_days, record_hash
		FROM (
			SELECT * FROM transitions
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, limit)
}

// ReadTransitionsOn returns every transition evaluated on the local date d.
func (s *Store) ReadTransitionsOn(ctx context.Context, d calendar.LocalDate) ([]engine.Transition, error) {
	return s.queryTransitions(ctx, `
		SELECT id, seq, action, at, local_date, day, state, way, unit, units, missed_days, record_hash
		FROM transitions
		WHERE local_date = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, d.String())
}

func (s *Store) queryTransitions(ctx context.Context, query string, args ...any) ([]engine.Transition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []engine.Transition{}
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

func scanTransition(rows *sql.Rows) (engine.Transition, error) {
	var (
		t         engine.Transition
		action    string
		at        string
		date      string
		state     string
		way       int
		unitsJSON string
	)
	err := rows.Scan(
		&t.ID,
		&t.Seq,
		&action,
		&at,
		&date,
		&t.Day,
		&state,
		&way,
		&t.Unit,
		&unitsJSON,
		&t.MissedDays,
		&t.RecordHash,
	)
	if err != nil {
		return engine.Transition{}, fmt.Errorf("scan transition: %w", err)
	}

	t.Action = engine.Action(action)
	t.Date = calendar.LocalDate(date)
	t.Way = policy.Way(way)
	if t.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return engine.Transition{}, fmt.Errorf("scan transition %s: parse at: %w", t.ID, err)
	}
	if t.State, err = engine.ParseState(state); err != nil {
		return engine.Transition{}, fmt.Errorf("scan transition %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(unitsJSON), &t.Units); err != nil {
		return engine.Transition{}, fmt.Errorf("scan transition %s: units: %w", t.ID, err)
	}
	if t.Units == nil {
		t.Units = []int{}
	}
	return t, nil
}
