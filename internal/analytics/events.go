// Package analytics ships deployment and session events to a downstream
// sink. Writes never block the request path.
package analytics

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventDeployed         EventType = "deployed"
	EventUndeployed       EventType = "undeployed"
	EventSessionStarted   EventType = "session_started"
	EventSessionCompleted EventType = "session_completed"
	EventSessionFailed    EventType = "session_failed"
)

// EventWriter is implemented by the ClickHouse writer and the log fallback.
type EventWriter interface {
	Write(event *Event)
	Close()
}

// Event is one row of the tool_events table.
type Event struct {
	EventID    string
	Type       EventType
	ProjectID  string
	Slug       string
	SessionID  string
	SubjectID  string
	Reason     string
	DurationMs uint32
	Timestamp  time.Time
}

// NewEvent stamps an id and the current time.
func NewEvent(t EventType, projectID string) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		Type:      t,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Write(*Event) {}
func (Discard) Close()       {}
