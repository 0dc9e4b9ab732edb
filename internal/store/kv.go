package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Get returns the value stored under key. found is false when the key has
// never been written.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key. Writing the bytes already stored is a no-op:
// the row (including updated_at) is left untouched.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			hash = excluded.hash,
			updated_at = excluded.updated_at
		WHERE kv.hash != excluded.hash
	`,
		key,
		value,
		contentHash(value),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Entry describes a stored key without its value.
type Entry struct {
	Key       string
	Hash      string
	UpdatedAt time.Time
}

// Stat returns metadata for key.
func (s *Store) Stat(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, hash, updated_at FROM kv WHERE key = ?
	`, key).Scan(&e.Key, &e.Hash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("stat %s: %w", key, err)
	}
	e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("stat %s: parse updated_at: %w", key, err)
	}
	return e, true, nil
}

func contentHash(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}
