// Package cursor encodes opaque pagination tokens for a session's event log.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the last event a client has already seen
type Cursor struct {
	SessionID string `json:"session_id"`
	LastID    int64  `json:"last_id"`
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if c.SessionID == "" {
		return "", fmt.Errorf("cursor missing session id")
	}

	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// Decode deserializes a cursor from an opaque base64 string
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}

	jsonData, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	if c.SessionID == "" {
		return nil, fmt.Errorf("cursor missing session id")
	}
	if c.LastID < 0 {
		return nil, fmt.Errorf("cursor last id must not be negative")
	}

	return &c, nil
}

// After returns the event id to resume after. An empty string starts from
// the beginning; a cursor issued for another session is rejected.
func After(encoded, sessionID string) (int64, error) {
	if encoded == "" {
		return 0, nil
	}
	c, err := Decode(encoded)
	if err != nil {
		return 0, err
	}
	if c.SessionID != sessionID {
		return 0, fmt.Errorf("cursor belongs to a different session")
	}
	return c.LastID, nil
}
