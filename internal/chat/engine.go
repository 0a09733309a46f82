// Package chat implements the streaming request engine: it builds
// outgoing chat envelopes, applies the server's fragment stream to the
// session store, and tracks the per-request state machine
// Idle -> Sent -> Streaming -> {Completed | Cancelled | Errored}.
package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mstanton/ragline/internal/debug"
	"github.com/mstanton/ragline/internal/events"
	"github.com/mstanton/ragline/internal/pubsub"
	"github.com/mstanton/ragline/internal/session"
	"github.com/mstanton/ragline/internal/status"
	"github.com/mstanton/ragline/internal/transport"
	"github.com/mstanton/ragline/internal/wire"
)

// ErrEmptyMessage is returned when sending a blank prompt.
var ErrEmptyMessage = errors.New("chat: empty message")

// ErrBusy is returned when a send is issued while a request is in flight.
var ErrBusy = errors.New("chat: request already in flight")

// State is the lifecycle state of one streaming request.
type State string

// Request states.
const (
	StateIdle      State = "idle"
	StateSent      State = "sent"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateErrored   State = "errored"
)

// Transport is the connection surface the engine needs. Satisfied by
// *transport.Client; tests substitute a fake.
type Transport interface {
	Send(event string, payload any) error
	On(event string, handler transport.Handler) error
	Decode(data []byte, v any) error
	IsConnected() bool
}

// request tracks one in-flight chat send. buf accumulates fragment
// concatenation; the completion event discards it in favor of the
// server's full response.
type request struct {
	clientID  string
	sessionID string
	messageID string
	state     State
	buf       strings.Builder
	cancelled bool // cancel requested, acknowledgment pending
}

// Config wires an Engine.
type Config struct {
	Transport   Transport
	Sessions    *session.Store
	Status      *status.Aggregator
	Hub         *pubsub.Hub
	WorkspaceID int64
	RAGType     string
}

// Engine is the client-side chat and status synchronization engine.
type Engine struct {
	transport   Transport
	sessions    *session.Store
	status      *status.Aggregator
	hub         *pubsub.Hub
	workspaceID int64
	ragType     string

	mu       sync.Mutex
	inflight *request
}

// New creates an engine. Call Bind after the transport is connected to
// start receiving events.
func New(cfg Config) *Engine {
	return &Engine{
		transport:   cfg.Transport,
		sessions:    cfg.Sessions,
		status:      cfg.Status,
		hub:         cfg.Hub,
		workspaceID: cfg.WorkspaceID,
		ragType:     cfg.RAGType,
	}
}

// Bind registers the engine's event handlers on the transport. The
// transport requires a live connection, so Bind must follow Connect.
func (e *Engine) Bind() error {
	handlers := map[string]transport.Handler{
		wire.EventChatChunk:            e.onChunk,
		wire.EventChatComplete:         e.onComplete,
		wire.EventChatCancelled:        e.onCancelled,
		wire.EventError:                e.onError,
		wire.EventDocumentStatus:       e.onDocumentStatus,
		wire.EventWorkspaceStatus:      e.onWorkspaceStatus,
		wire.EventWikipediaFetchStatus: e.onFetchStatus,
	}
	for event, handler := range handlers {
		if err := e.transport.On(event, handler); err != nil {
			return err
		}
	}
	return nil
}

// Send issues a chat request against the active session, creating one
// if needed. It returns the request's correlation id; the caller can
// pass it to observers but Cancel already retains it internally.
func (e *Engine) Send(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	e.mu.Lock()
	if e.inflight != nil {
		e.mu.Unlock()
		return "", ErrBusy
	}

	sess := e.sessions.ActiveOrCreate()
	if _, err := e.sessions.AppendMessage(sess.ID, session.RoleUser, text); err != nil {
		e.mu.Unlock()
		return "", err
	}

	clientID := uuid.New().String()
	env := wire.ChatMessage{
		Message:  text,
		RAGType:  e.ragType,
		ClientID: clientID,
	}
	if sess.BackendID != nil {
		id := *sess.BackendID
		env.SessionID = &id
	}
	if e.workspaceID != 0 {
		id := e.workspaceID
		env.WorkspaceID = &id
	}

	req := &request{
		clientID:  clientID,
		sessionID: sess.ID,
		state:     StateSent,
	}
	e.inflight = req
	e.mu.Unlock()

	if err := e.transport.Send(wire.EventChatMessage, env); err != nil {
		e.mu.Lock()
		e.inflight = nil
		e.mu.Unlock()
		return "", err
	}

	debug.Log("chat: sent request %s (session %s)", clientID, sess.ID)
	return clientID, nil
}

// Cancel asks the server to stop the in-flight request. With nothing
// in flight it is a silent no-op: no outbound message is produced.
// Cancellation is cooperative; fragments keep being applied until the
// server acknowledges with chat_cancelled.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	req := e.inflight
	if req == nil || req.cancelled {
		e.mu.Unlock()
		return nil
	}
	req.cancelled = true
	clientID := req.clientID
	e.mu.Unlock()

	debug.Log("chat: cancel requested for %s", clientID)
	return e.transport.Send(wire.EventCancelMessage, wire.CancelMessage{ClientID: clientID})
}

// InFlightID returns the correlation id of the in-flight request.
func (e *Engine) InFlightID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == nil {
		return "", false
	}
	return e.inflight.clientID, true
}

// State returns the in-flight request's state, or StateIdle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == nil {
		return StateIdle
	}
	return e.inflight.state
}

// onChunk appends or grows the assistant message for the in-flight
// request. Fragments are assumed delivered in send order; they are
// concatenated as they arrive, with no reorder buffer.
func (e *Engine) onChunk(payload []byte) {
	var chunk wire.ChatChunk
	if err := e.transport.Decode(payload, &chunk); err != nil {
		debug.Error("chat", err, "decoding chat_chunk")
		return
	}

	e.mu.Lock()
	req := e.inflight
	if req == nil {
		e.mu.Unlock()
		debug.Log("chat: dropping chunk with no request in flight")
		return
	}

	req.buf.WriteString(chunk.Chunk)
	content := req.buf.String()
	req.state = StateStreaming

	if req.messageID == "" {
		msg, err := e.sessions.AppendMessage(req.sessionID, session.RoleAssistant, content)
		if err != nil {
			e.failRequest(req, err, "appending assistant message")
			return
		}
		req.messageID = msg.ID
	} else if err := e.sessions.SetMessageContent(req.sessionID, req.messageID, content); err != nil {
		e.failRequest(req, err, "updating assistant message")
		return
	}

	clientID, sessionID, messageID := req.clientID, req.sessionID, req.messageID
	e.mu.Unlock()

	e.publishChat(pubsub.EventProgress, events.NewChunkEvent(clientID, sessionID, messageID, chunk.Chunk))
}

// onComplete applies the authoritative response: content is replaced
// by full_response regardless of what streaming accumulated, context
// is attached if present, and the session's backend id is bound. A
// completion without any preceding chunk still creates the assistant
// message.
func (e *Engine) onComplete(payload []byte) {
	var complete wire.ChatComplete
	if err := e.transport.Decode(payload, &complete); err != nil {
		debug.Error("chat", err, "decoding chat_complete")
		return
	}

	e.mu.Lock()
	req := e.inflight
	if req == nil {
		e.mu.Unlock()
		debug.Log("chat: dropping completion with no request in flight")
		return
	}

	if req.messageID == "" {
		msg, err := e.sessions.AppendMessage(req.sessionID, session.RoleAssistant, complete.FullResponse)
		if err != nil {
			e.failRequest(req, err, "appending assistant message")
			return
		}
		req.messageID = msg.ID
	} else if err := e.sessions.SetMessageContent(req.sessionID, req.messageID, complete.FullResponse); err != nil {
		e.failRequest(req, err, "overwriting assistant message")
		return
	}

	if len(complete.Context) > 0 {
		citations := make([]session.Citation, len(complete.Context))
		for i, c := range complete.Context {
			citations[i] = session.Citation{Text: c.Text, Score: c.Score, Metadata: c.Metadata}
		}
		if err := e.sessions.AttachContext(req.sessionID, req.messageID, citations); err != nil {
			debug.Error("chat", err, "attaching context")
		}
	}

	e.sessions.BindBackendID(req.sessionID, complete.SessionID)

	req.state = StateCompleted
	clientID, sessionID, messageID := req.clientID, req.sessionID, req.messageID
	e.inflight = nil
	e.mu.Unlock()

	debug.Log("chat: request %s completed", clientID)
	e.publishChat(pubsub.EventCompleted, events.NewCompleteEvent(clientID, sessionID, messageID, complete.FullResponse))
}

// onCancelled terminates the in-flight request on the server's
// acknowledgment. The partially streamed content stays in the session.
func (e *Engine) onCancelled(payload []byte) {
	var cancelled wire.ChatCancelled
	if err := e.transport.Decode(payload, &cancelled); err != nil {
		debug.Error("chat", err, "decoding chat_cancelled")
		return
	}

	e.mu.Lock()
	req := e.inflight
	if req == nil {
		e.mu.Unlock()
		return
	}
	req.state = StateCancelled
	clientID, sessionID := req.clientID, req.sessionID
	e.inflight = nil
	e.mu.Unlock()

	debug.Log("chat: request %s cancelled (%s)", clientID, cancelled.Status)
	e.publishChat(pubsub.EventCancelled, events.NewCancelledEvent(clientID, sessionID, cancelled.Status))
}

// onError terminates the in-flight request without touching the
// partially streamed message; the error is surfaced as data.
func (e *Engine) onError(payload []byte) {
	var errPayload wire.ErrorPayload
	if err := e.transport.Decode(payload, &errPayload); err != nil {
		debug.Error("chat", err, "decoding error event")
		return
	}

	e.mu.Lock()
	req := e.inflight
	var clientID, sessionID string
	if req != nil {
		req.state = StateErrored
		clientID, sessionID = req.clientID, req.sessionID
		e.inflight = nil
	}
	e.mu.Unlock()

	debug.Log("chat: server error: %s", errPayload.Error)
	e.publishChat(pubsub.EventFailed, events.NewChatErrorEvent(clientID, sessionID, errPayload.Error))
}

// failRequest terminates the in-flight request when the session store
// rejects a mutation, e.g. the session was deleted mid-stream. The
// consumed event still ends the request; it is never left in flight.
// Called with e.mu held; releases it.
func (e *Engine) failRequest(req *request, err error, context string) {
	req.state = StateErrored
	clientID, sessionID := req.clientID, req.sessionID
	e.inflight = nil
	e.mu.Unlock()

	debug.Error("chat", err, context)
	e.publishChat(pubsub.EventFailed, events.NewChatErrorEvent(clientID, sessionID, err.Error()))
}

func (e *Engine) onDocumentStatus(payload []byte) {
	var ds wire.DocumentStatus
	if err := e.transport.Decode(payload, &ds); err != nil {
		debug.Error("chat", err, "decoding document_status")
		return
	}
	e.status.SetDocument(status.Document{
		ID:          ds.DocumentID,
		WorkspaceID: ds.WorkspaceID,
		State:       status.DocumentState(ds.Status),
		Filename:    ds.Filename,
		Error:       ds.Error,
		Progress:    ds.Progress,
		ChunkCount:  ds.ChunkCount,
	})
}

func (e *Engine) onWorkspaceStatus(payload []byte) {
	var ws wire.WorkspaceStatus
	if err := e.transport.Decode(payload, &ws); err != nil {
		debug.Error("chat", err, "decoding workspace_status")
		return
	}
	e.status.SetWorkspace(status.Workspace{
		ID:      ws.WorkspaceID,
		State:   status.WorkspaceState(ws.Status),
		Name:    ws.Name,
		Message: ws.Message,
	})
}

func (e *Engine) onFetchStatus(payload []byte) {
	var fs wire.WikipediaFetchStatus
	if err := e.transport.Decode(payload, &fs); err != nil {
		debug.Error("chat", err, "decoding wikipedia_fetch_status")
		return
	}
	f := status.Fetch{
		ID:          fs.FetchID,
		WorkspaceID: fs.WorkspaceID,
		State:       status.FetchState(fs.Status),
		Query:       fs.Query,
		Message:     fs.Message,
	}
	if fs.Timestamp > 0 {
		f.Timestamp = time.UnixMilli(fs.Timestamp)
	}
	e.status.SetFetch(f)
}

func (e *Engine) publishChat(eventType pubsub.EventType, ev events.ChatEvent) {
	if e.hub != nil {
		e.hub.Chat.Publish(eventType, ev)
	}
}
