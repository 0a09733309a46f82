package events

import "time"

// StatusClass identifies which tracker an update belongs to.
type StatusClass string

// Status classes.
const (
	StatusClassDocument  StatusClass = "document"
	StatusClassWorkspace StatusClass = "workspace"
	StatusClassFetch     StatusClass = "fetch"
)

// StatusEvent represents one tracker update. Key is the entity's id
// rendered as a string, regardless of the tracker's native key type.
type StatusEvent struct {
	Class     StatusClass
	Key       string
	Status    string
	Message   string
	Timestamp time.Time
}

// NewStatusEvent creates a tracker update event.
func NewStatusEvent(class StatusClass, key, status, message string) StatusEvent {
	return StatusEvent{
		Class:     class,
		Key:       key,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
