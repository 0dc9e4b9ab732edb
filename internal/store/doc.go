// Package store provides SQLite-backed durable storage for brainway.
//
// The store holds two things:
//   - kv: the raw payloads the engine persists (record, label, legacy way)
//   - transitions: an append-only history of applied engine transitions
//
// # Patterns
//
// Content-hash writes:
//   - Every kv row carries the SHA-256 of its value
//   - Set is an upsert that only touches the row when the hash changed
//
// Logical ordering:
//   - Transitions are ordered by seq (engine.Clock), NEVER by timestamps
//   - All history queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Idempotent appends:
//   - Transition IDs are primary keys; re-appending an ID is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements engine.Store and engine.HistoryStore.
package store
