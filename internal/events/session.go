package events

import "time"

// SessionEventType represents session-specific event types.
type SessionEventType string

// Session event type constants.
const (
	SessionEventCreated      SessionEventType = "created"
	SessionEventDeleted      SessionEventType = "deleted"
	SessionEventSwitched     SessionEventType = "switched"
	SessionEventTitleChanged SessionEventType = "title_changed"
	SessionEventMessageAdded SessionEventType = "message_added"
	SessionEventBound        SessionEventType = "bound"
)

// SessionEvent represents a session lifecycle event.
type SessionEvent struct {
	SessionID string
	Title     string
	Type      SessionEventType
	Timestamp time.Time

	// Optional fields
	MessageRole string // For MessageAdded
	MessageText string // For MessageAdded
	BackendID   int64  // For Bound
}

// NewSessionCreatedEvent creates a session created event.
func NewSessionCreatedEvent(id, title string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Title:     title,
		Type:      SessionEventCreated,
		Timestamp: time.Now(),
	}
}

// NewSessionDeletedEvent creates a session deleted event.
func NewSessionDeletedEvent(id string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Type:      SessionEventDeleted,
		Timestamp: time.Now(),
	}
}

// NewSessionSwitchedEvent creates a session switched event.
func NewSessionSwitchedEvent(id string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Type:      SessionEventSwitched,
		Timestamp: time.Now(),
	}
}

// NewSessionTitleChangedEvent creates a title changed event.
func NewSessionTitleChangedEvent(id, title string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Title:     title,
		Type:      SessionEventTitleChanged,
		Timestamp: time.Now(),
	}
}

// NewSessionMessageAddedEvent creates a message added event.
func NewSessionMessageAddedEvent(sessionID, role, text string) SessionEvent {
	return SessionEvent{
		SessionID:   sessionID,
		Type:        SessionEventMessageAdded,
		MessageRole: role,
		MessageText: text,
		Timestamp:   time.Now(),
	}
}

// NewSessionBoundEvent creates a backend-id bound event.
func NewSessionBoundEvent(sessionID string, backendID int64) SessionEvent {
	return SessionEvent{
		SessionID: sessionID,
		Type:      SessionEventBound,
		BackendID: backendID,
		Timestamp: time.Now(),
	}
}
