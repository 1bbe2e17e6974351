package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/eotdiff/internal/domain"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (session_id, event_type, payload)
		VALUES (?, ?, ?)
	`

	var payload interface{}
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}

	executor := w.getExecutor(tx)
	_, err := executor.Exec(query, event.SessionID, event.EventType, payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogSessionCreated logs a session creation event
func (w *Writer) LogSessionCreated(tx *sql.Tx, sessionID string) error {
	return w.LogEvent(tx, &domain.Event{
		SessionID: sessionID,
		EventType: domain.EventSessionCreated,
	})
}

// LogCompareCompleted logs the headline counts of a stored compare
func (w *Writer) LogCompareCompleted(tx *sql.Tx, sessionID string, result *domain.CompareResult) error {
	payload, err := json.Marshal(map[string]interface{}{
		"changed_tasks":             result.Summary.ChangedTasks,
		"added_tasks":               result.Summary.AddedTasks,
		"removed_tasks":             result.Summary.RemovedTasks,
		"action_required_tasks":     result.Summary.ActionRequiredTasks,
		"project_finish_delay_days": result.Summary.ProjectFinishDelayDays,
	})
	if err != nil {
		return err
	}

	return w.LogEvent(tx, &domain.Event{
		SessionID: sessionID,
		EventType: domain.EventCompareCompleted,
		Payload:   payload,
	})
}

// LogAttributionApplied logs an attribution request and the resulting split
func (w *Writer) LogAttributionApplied(tx *sql.Tx, sessionID string, assignments int, bulk bool, alloc domain.FaultAllocation) error {
	payload, err := json.Marshal(map[string]interface{}{
		"assignments":                assignments,
		"bulk":                       bulk,
		"project_finish_impact_days": alloc.ProjectFinishImpactDays,
	})
	if err != nil {
		return err
	}

	return w.LogEvent(tx, &domain.Event{
		SessionID: sessionID,
		EventType: domain.EventAttributionApplied,
		Payload:   payload,
	})
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
