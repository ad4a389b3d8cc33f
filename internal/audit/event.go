// Package audit records authentication events as JSON lines
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event
type EventType string

const (
	EventTypeLogin          EventType = "login"
	EventTypeRegister       EventType = "register"
	EventTypeTokenRejected  EventType = "token_rejected"
	EventTypeSystemStartup  EventType = "system_startup"
	EventTypeSystemShutdown EventType = "system_shutdown"
)

// Event is a single audit record
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	EventID    string    `json:"event_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
}

// NewEvent creates an event of type t stamped with an id and the current time
func NewEvent(t EventType) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		EventType: t,
		EventID:   uuid.NewString(),
	}
}
