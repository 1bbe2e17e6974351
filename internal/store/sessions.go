package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/events"
)

// SessionStore handles review session persistence.
type SessionStore struct {
	store *Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Lock serializes work on one session and returns the matching unlock.
// Compare and attribution read the assignment map, run, then write it back;
// holding the lock across all three keeps concurrent requests from losing
// each other's assignments.
func (ss *SessionStore) Lock(id string) func() {
	ss.mu.Lock()
	l, ok := ss.locks[id]
	if !ok {
		l = &sessionLock{}
		ss.locks[id] = l
	}
	l.refs++
	ss.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ss.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ss.locks, id)
		}
		ss.mu.Unlock()
	}
}

// Create starts a new session and logs a session.created event.
func (ss *SessionStore) Create() (string, error) {
	id := uuid.NewString()
	err := ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		if _, err := tx.Exec(`INSERT INTO sessions (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return ew.LogSessionCreated(tx, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Exists reports whether the session is known.
func (ss *SessionStore) Exists(id string) (bool, error) {
	var n int
	if err := ss.store.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	return n > 0, nil
}

func (ss *SessionStore) mustExist(id string) error {
	ok, err := ss.Exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Assignments returns the session's assignment map. A session that has
// never been compared returns an empty map.
func (ss *SessionStore) Assignments(id string) (domain.AssignmentMap, error) {
	if err := ss.mustExist(id); err != nil {
		return nil, err
	}

	rows, err := ss.store.db.Query(`
		SELECT row_key, cause_tag, reason_code, confirm_low_confidence, override_auto
		FROM session_assignments
		WHERE session_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	amap := domain.AssignmentMap{}
	for rows.Next() {
		var key, cause, reason string
		var a domain.Assignment
		if err := rows.Scan(&key, &cause, &reason, &a.ConfirmLowConfidence, &a.OverrideAuto); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.CauseTag = domain.CauseTag(cause)
		a.ReasonCode = domain.ReasonCode(reason)
		amap[key] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return amap, nil
}

// LastResult returns the most recent result stored for the session.
func (ss *SessionStore) LastResult(id string) (*domain.CompareResult, error) {
	if err := ss.mustExist(id); err != nil {
		return nil, err
	}

	var raw string
	err := ss.store.db.QueryRow(`SELECT result_json FROM session_results WHERE session_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	var result domain.CompareResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}

// SaveCompare stores a compare result with its assignment map and logs a
// compare.completed event.
func (ss *SessionStore) SaveCompare(id string, result *domain.CompareResult, amap domain.AssignmentMap) error {
	if err := ss.mustExist(id); err != nil {
		return err
	}
	return ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		if err := save(tx, id, result, amap); err != nil {
			return err
		}
		return ew.LogCompareCompleted(tx, id, result)
	})
}

// SaveAttribution stores the result of an attribution request and logs an
// attribution.applied event.
func (ss *SessionStore) SaveAttribution(id string, result *domain.CompareResult, amap domain.AssignmentMap, assignments int, bulk bool) error {
	if err := ss.mustExist(id); err != nil {
		return err
	}
	return ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		if err := save(tx, id, result, amap); err != nil {
			return err
		}
		return ew.LogAttributionApplied(tx, id, assignments, bulk, result.FaultAllocation)
	})
}

func save(tx *sql.Tx, id string, result *domain.CompareResult, amap domain.AssignmentMap) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM session_assignments WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}

	keys := make([]string, 0, len(amap))
	for k := range amap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := amap[k]
		cause := a.CauseTag
		if cause == "" {
			cause = domain.CauseUnassigned
		}
		_, err := tx.Exec(`
			INSERT INTO session_assignments (session_id, row_key, cause_tag, reason_code, confirm_low_confidence, override_auto)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, k, string(cause), string(a.ReasonCode), a.ConfirmLowConfidence, a.OverrideAuto)
		if err != nil {
			return fmt.Errorf("failed to save assignment %s: %w", k, err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO session_results (session_id, result_json) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			result_json = excluded.result_json,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
	`, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now') WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Events returns the session's audit log, oldest first.
func (ss *SessionStore) Events(id string) ([]domain.Event, error) {
	return ss.EventsAfter(id, 0, 0)
}

// EventsAfter returns up to limit events with an id greater than afterID,
// oldest first. A limit of zero returns every remaining event.
func (ss *SessionStore) EventsAfter(id string, afterID int64, limit int) ([]domain.Event, error) {
	if err := ss.mustExist(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := ss.store.db.Query(`
		SELECT id, timestamp, session_id, event_type, payload
		FROM event_log
		WHERE session_id = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`, id, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	list := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.SessionID, &e.EventType, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return list, nil
}
