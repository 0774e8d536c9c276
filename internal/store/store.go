package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a call record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for call history.
// Defined at the consumer side per Go conventions.
type Store interface {
	// Calls
	UpsertCall(c *CallRecord) error
	GetCall(id string) (*CallRecord, error)
	ListCalls(f CallFilter) ([]CallRecord, error)

	// Call events
	AddEvent(e *CallEvent) error
	GetEvents(callID string, limit int) ([]CallEvent, error)

	// Analytics
	GetAverageCallDuration(remote string) (time.Duration, int, error)

	// Maintenance
	Cleanup(before time.Time) (int64, error)
	Close() error
}

// CallRecord represents a persisted call.
type CallRecord struct {
	ID               string    `json:"id"`
	Remote           string    `json:"remote"`
	Direction        string    `json:"direction"`
	Status           string    `json:"status"`
	DisconnectReason string    `json:"disconnect_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ConnectedAt      time.Time `json:"connected_at,omitzero"`
	EndedAt          time.Time `json:"ended_at,omitzero"`
}

// CallFilter specifies criteria for listing calls.
type CallFilter struct {
	Status string
	Remote string
	Limit  int
	Since  time.Time
}

// CallEvent represents a timestamped call event for the audit trail.
type CallEvent struct {
	ID        int64     `json:"id"`
	CallID    string    `json:"call_id"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
