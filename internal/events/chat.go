// Package events defines domain-specific event types for the pub/sub hub.
package events

import (
	"time"
)

// ChatEventType represents chat streaming event types.
type ChatEventType string

// Chat event type constants.
const (
	ChatEventChunk     ChatEventType = "chunk"
	ChatEventComplete  ChatEventType = "complete"
	ChatEventCancelled ChatEventType = "cancelled"
	ChatEventError     ChatEventType = "error"
)

// ChatEvent represents one step of a streaming chat request. ClientID
// is the correlation id of the request the event belongs to.
type ChatEvent struct {
	ClientID  string
	SessionID string
	MessageID string
	Type      ChatEventType
	Timestamp time.Time

	// Payload fields (only one populated per event type)
	Chunk   string // For Chunk
	Content string // For Complete: the authoritative full response
	Status  string // For Cancelled: server-reported status
	Error   string // For Error
}

// NewChunkEvent creates a fragment event.
func NewChunkEvent(clientID, sessionID, messageID, chunk string) ChatEvent {
	return ChatEvent{
		ClientID:  clientID,
		SessionID: sessionID,
		MessageID: messageID,
		Type:      ChatEventChunk,
		Chunk:     chunk,
		Timestamp: time.Now(),
	}
}

// NewCompleteEvent creates a completion event.
func NewCompleteEvent(clientID, sessionID, messageID, content string) ChatEvent {
	return ChatEvent{
		ClientID:  clientID,
		SessionID: sessionID,
		MessageID: messageID,
		Type:      ChatEventComplete,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewCancelledEvent creates a cancellation acknowledgment event.
func NewCancelledEvent(clientID, sessionID, status string) ChatEvent {
	return ChatEvent{
		ClientID:  clientID,
		SessionID: sessionID,
		Type:      ChatEventCancelled,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewChatErrorEvent creates an error event.
func NewChatErrorEvent(clientID, sessionID, errText string) ChatEvent {
	return ChatEvent{
		ClientID:  clientID,
		SessionID: sessionID,
		Type:      ChatEventError,
		Error:     errText,
		Timestamp: time.Now(),
	}
}
