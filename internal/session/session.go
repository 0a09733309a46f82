// Package session provides the client-side conversation model: an
// ordered collection of sessions, an active-session pointer, and
// fail-soft persistence of the whole collection.
package session

import (
	"time"
)

// DefaultTitle is the placeholder given to a session until its title is
// derived from the first user message.
const DefaultTitle = "New Conversation"

// Role represents the role of a message sender.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one conversation. ID is client-generated and immutable;
// BackendID is assigned by the server and bound at most once.
type Session struct {
	ID        string    `json:"id"`
	BackendID *int64    `json:"backendId,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one conversation turn. Content is replaced wholesale on
// each streamed update, never character-diffed.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Context   []Citation `json:"context,omitempty"`
}

// Citation is one retrieval source attached to an assistant message.
type Citation struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Persister is the durable storage contract for the session collection.
// Implementations are fail-soft: Load returns an empty slice on any
// storage or decoding failure, and Save/Clear absorb errors after
// logging them. The store can always operate against storage that
// silently failed.
type Persister interface {
	// Load reads the persisted session collection, newest first.
	Load() []*Session

	// Save writes the full collection. Called on every store mutation.
	Save(sessions []*Session)

	// Clear removes the persisted collection.
	Clear()
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.BackendID != nil {
		id := *s.BackendID
		out.BackendID = &id
	}
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

func (m Message) clone() Message {
	out := m
	if m.Context != nil {
		out.Context = make([]Citation, len(m.Context))
		for i, c := range m.Context {
			out.Context[i] = c
			if c.Metadata != nil {
				md := make(map[string]any, len(c.Metadata))
				for k, v := range c.Metadata {
					md[k] = v
				}
				out.Context[i].Metadata = md
			}
		}
	}
	return out
}
