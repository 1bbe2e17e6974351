// Package store provides a persistence layer over the in-memory session
// database, handling timestamps and event logging for every write.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lherron/eotdiff/internal/db"
	"github.com/lherron/eotdiff/internal/events"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")
	// ErrNoResult is returned when a session has not run a compare yet.
	ErrNoResult = errors.New("session has no compare result")
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db *db.DB

	Sessions *SessionStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Sessions = &SessionStore{store: s, locks: make(map[string]*sessionLock)}
	return s
}

// Open creates a Store over a fresh, migrated in-memory database.
func Open() (*Store, error) {
	database, err := db.OpenMemory()
	if err != nil {
		return nil, err
	}
	return New(database), nil
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Close releases the database. Everything the store held is gone afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
//
// The pool holds a single connection, so fn must use tx for every statement.
func (s *Store) withTx(fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}
