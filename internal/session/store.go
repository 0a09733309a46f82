package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mstanton/ragline/internal/events"
)

// ErrNotFound is returned when a session is not found.
var ErrNotFound = errors.New("session not found")

// ErrMessageNotFound is returned when a message is not found in its session.
var ErrMessageNotFound = errors.New("message not found")

// Store is the authoritative in-memory model of all sessions, ordered
// newest first, with a nullable active-session pointer. Every mutation
// is written through the Persister and announced via the notify callback.
type Store struct {
	mu        sync.RWMutex
	sessions  []*Session
	activeID  string
	persister Persister
	notifyFn  func(events.SessionEvent)
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets the durable storage for the session collection.
// The store loads the persisted collection at construction time.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithNotify sets a callback invoked for every session lifecycle event.
func WithNotify(fn func(events.SessionEvent)) Option {
	return func(s *Store) { s.notifyFn = fn }
}

// NewStore creates a session store, loading any persisted sessions.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister != nil {
		s.sessions = s.persister.Load()
	}
	return s
}

// Create creates a new session and makes it the active one.
func (s *Store) Create(title string) *Session {
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persistLocked()
	s.mu.Unlock()

	s.notify(events.NewSessionCreatedEvent(sess.ID, sess.Title))
	return sess.Clone()
}

// Get retrieves a copy of a session by ID.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.findLocked(id)
	if sess == nil {
		return nil, false
	}
	return sess.Clone(), true
}

// List returns copies of all sessions, newest first.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Search returns sessions whose title contains the keyword, case-insensitive.
func (s *Store) Search(keyword string) []*Session {
	kw := strings.ToLower(keyword)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for _, sess := range s.sessions {
		if strings.Contains(strings.ToLower(sess.Title), kw) {
			out = append(out, sess.Clone())
		}
	}
	return out
}

// ActiveID returns the active session's id, or "" when none is active.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active session, or nil when none is active.
func (s *Store) Active() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return nil
	}
	return s.findLocked(s.activeID).Clone()
}

// ActiveOrCreate returns the active session, creating one if none exists.
func (s *Store) ActiveOrCreate() *Session {
	s.mu.RLock()
	if s.activeID != "" {
		if sess := s.findLocked(s.activeID); sess != nil {
			out := sess.Clone()
			s.mu.RUnlock()
			return out
		}
	}
	s.mu.RUnlock()

	return s.Create(DefaultTitle)
}

// SetActive switches the active-session pointer.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.activeID = id
	s.mu.Unlock()

	s.notify(events.NewSessionSwitchedEvent(id))
	return nil
}

// AppendMessage adds a message to a session. The first user message
// appended while the title is still the placeholder also derives the
// session's title, synchronously as part of the append.
func (s *Store) AppendMessage(sessionID string, role Role, content string) (*Message, error) {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = msg.Timestamp

	var titled string
	if role == RoleUser && sess.Title == DefaultTitle {
		if t := SynthesizeTitle(content); t != DefaultTitle {
			sess.Title = t
			titled = t
		}
	}

	s.persistLocked()
	s.mu.Unlock()

	s.notify(events.NewSessionMessageAddedEvent(sessionID, string(role), content))
	if titled != "" {
		s.notify(events.NewSessionTitleChangedEvent(sessionID, titled))
	}

	out := msg.clone()
	return &out, nil
}

// SetMessageContent replaces a message's content wholesale.
func (s *Store) SetMessageContent(sessionID, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return ErrNotFound
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			sess.Messages[i].Content = content
			sess.UpdatedAt = time.Now()
			s.persistLocked()
			return nil
		}
	}
	return ErrMessageNotFound
}

// AttachContext attaches retrieval citations to a message.
func (s *Store) AttachContext(sessionID, messageID string, citations []Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return ErrNotFound
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			sess.Messages[i].Context = citations
			sess.UpdatedAt = time.Now()
			s.persistLocked()
			return nil
		}
	}
	return ErrMessageNotFound
}

// BindBackendID records the server-assigned id for a session. The
// binding happens at most once; later calls are ignored so an already
// bound session can never be re-pointed.
func (s *Store) BindBackendID(sessionID string, backendID int64) error {
	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	if sess.BackendID != nil {
		s.mu.Unlock()
		return nil
	}
	sess.BackendID = &backendID
	sess.UpdatedAt = time.Now()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(events.NewSessionBoundEvent(sessionID, backendID))
	return nil
}

// Rename updates a session's title.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	sess := s.findLocked(id)
	if sess == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	sess.Title = title
	sess.UpdatedAt = time.Now()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(events.NewSessionTitleChangedEvent(id, title))
	return nil
}

// Delete removes a session. If it was the active session, the pointer
// moves to the first remaining session, or to none when the store is
// empty.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	s.persistLocked()
	s.mu.Unlock()

	s.notify(events.NewSessionDeletedEvent(id))
	return nil
}

// Clear removes all sessions and clears the persisted collection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.sessions = nil
	s.activeID = ""
	if s.persister != nil {
		s.persister.Clear()
	}
	s.mu.Unlock()
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) findLocked(id string) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// persistLocked writes the full collection through the persister. The
// snapshot is deep-copied so the persister may serialize it outside the
// store's lock.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	snapshot := make([]*Session, len(s.sessions))
	for i, sess := range s.sessions {
		snapshot[i] = sess.Clone()
	}
	s.persister.Save(snapshot)
}

func (s *Store) notify(ev events.SessionEvent) {
	if s.notifyFn != nil {
		s.notifyFn(ev)
	}
}
