package chat

import (
	"encoding/json"
	"testing"

	"github.com/mstanton/ragline/internal/session"
	"github.com/mstanton/ragline/internal/status"
	"github.com/mstanton/ragline/internal/transport"
	"github.com/mstanton/ragline/internal/wire"
)

// fakeTransport records outgoing envelopes and lets tests fire server
// events directly at the registered handlers.
type fakeTransport struct {
	sent     []sentEnvelope
	handlers map[string]transport.Handler
	sendErr  error
}

type sentEnvelope struct {
	event   string
	payload any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]transport.Handler)}
}

func (f *fakeTransport) Send(event string, payload any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentEnvelope{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, handler transport.Handler) error {
	f.handlers[event] = handler
	return nil
}

func (f *fakeTransport) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (f *fakeTransport) IsConnected() bool { return true }

// fire encodes the payload as the server would and invokes the handler.
func (f *fakeTransport) fire(t *testing.T, event string, payload any) {
	t.Helper()
	handler, ok := f.handlers[event]
	if !ok {
		t.Fatalf("no handler registered for %q", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling %s payload: %v", event, err)
	}
	handler(data)
}

func newTestEngine(t *testing.T) (*Engine, *fakeTransport, *session.Store) {
	t.Helper()
	tr := newFakeTransport()
	store := session.NewStore()
	eng := New(Config{
		Transport: tr,
		Sessions:  store,
		Status:    status.NewAggregator(),
		RAGType:   "hybrid",
	})
	if err := eng.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return eng, tr, store
}

func TestEngineSend(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	clientID, err := eng.Send("hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if clientID == "" {
		t.Fatal("expected a client id")
	}
	if got := eng.State(); got != StateSent {
		t.Errorf("state = %q, want %q", got, StateSent)
	}

	if len(tr.sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(tr.sent))
	}
	if tr.sent[0].event != wire.EventChatMessage {
		t.Errorf("event = %q, want %q", tr.sent[0].event, wire.EventChatMessage)
	}
	msg := tr.sent[0].payload.(wire.ChatMessage)
	if msg.Message != "hello" || msg.ClientID != clientID {
		t.Errorf("unexpected envelope %+v", msg)
	}
	if msg.SessionID != nil {
		t.Error("fresh session should not carry a backend session id")
	}
	if msg.RAGType != "hybrid" {
		t.Errorf("rag_type = %q, want %q", msg.RAGType, "hybrid")
	}

	sess := store.Active()
	if sess == nil || len(sess.Messages) != 1 {
		t.Fatalf("expected one message in the active session")
	}
	if sess.Messages[0].Role != session.RoleUser || sess.Messages[0].Content != "hello" {
		t.Errorf("unexpected user message %+v", sess.Messages[0])
	}
}

func TestEngineSendRejectsEmpty(t *testing.T) {
	eng, tr, _ := newTestEngine(t)

	if _, err := eng.Send("   "); err != ErrEmptyMessage {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if len(tr.sent) != 0 {
		t.Error("blank message must not reach the transport")
	}
}

func TestEngineSendRejectsConcurrent(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if _, err := eng.Send("first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := eng.Send("second"); err != ErrBusy {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

func TestEngineStreamingLifecycle(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	if _, err := eng.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "Hel"})
	if got := eng.State(); got != StateStreaming {
		t.Errorf("state = %q, want %q", got, StateStreaming)
	}
	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "lo"})

	sess := store.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(sess.Messages))
	}
	if sess.Messages[1].Content != "Hello" {
		t.Errorf("streamed content = %q, want %q", sess.Messages[1].Content, "Hello")
	}

	tr.fire(t, wire.EventChatComplete, wire.ChatComplete{
		SessionID:    42,
		FullResponse: "Hello there",
		Context:      []wire.Context{{Text: "greetings", Score: 0.9}},
	})

	sess = store.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("completion must not add a second assistant message, got %d messages", len(sess.Messages))
	}
	if sess.Messages[1].Content != "Hello there" {
		t.Errorf("final content = %q, want the authoritative %q", sess.Messages[1].Content, "Hello there")
	}
	if len(sess.Messages[1].Context) != 1 || sess.Messages[1].Context[0].Text != "greetings" {
		t.Errorf("context not attached: %+v", sess.Messages[1].Context)
	}
	if sess.BackendID == nil || *sess.BackendID != 42 {
		t.Errorf("backend id not bound: %v", sess.BackendID)
	}
	if got := eng.State(); got != StateIdle {
		t.Errorf("state after completion = %q, want %q", got, StateIdle)
	}

	// The engine is free again.
	if _, err := eng.Send("next"); err != nil {
		t.Errorf("Send after completion: %v", err)
	}
	msg := tr.sent[1].payload.(wire.ChatMessage)
	if msg.SessionID == nil || *msg.SessionID != 42 {
		t.Error("follow-up send should carry the bound backend session id")
	}
}

func TestEngineCompleteWithoutChunks(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	if _, err := eng.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	tr.fire(t, wire.EventChatComplete, wire.ChatComplete{SessionID: 7, FullResponse: "short answer"})

	sess := store.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(sess.Messages))
	}
	if sess.Messages[1].Role != session.RoleAssistant || sess.Messages[1].Content != "short answer" {
		t.Errorf("unexpected assistant message %+v", sess.Messages[1])
	}
}

func TestEngineCancel(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	clientID, err := eng.Send("hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "part"})

	if err := eng.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	cancel := tr.sent[1]
	if cancel.event != wire.EventCancelMessage {
		t.Fatalf("event = %q, want %q", cancel.event, wire.EventCancelMessage)
	}
	if got := cancel.payload.(wire.CancelMessage).ClientID; got != clientID {
		t.Errorf("cancel client_id = %q, want %q", got, clientID)
	}

	// Cancellation is cooperative: fragments that arrive before the
	// acknowledgment are still applied.
	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "ial"})
	if got := store.Active().Messages[1].Content; got != "partial" {
		t.Errorf("content = %q, want %q", got, "partial")
	}

	// A second cancel while the first is pending sends nothing.
	if err := eng.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(tr.sent) != 2 {
		t.Errorf("repeated cancel sent %d envelopes, want 2", len(tr.sent))
	}

	tr.fire(t, wire.EventChatCancelled, wire.ChatCancelled{Status: "cancelled"})
	if got := eng.State(); got != StateIdle {
		t.Errorf("state after ack = %q, want %q", got, StateIdle)
	}
	if got := store.Active().Messages[1].Content; got != "partial" {
		t.Errorf("partial content must survive cancellation, got %q", got)
	}
}

func TestEngineCancelIdleIsNoop(t *testing.T) {
	eng, tr, _ := newTestEngine(t)

	if err := eng.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Error("idle cancel must not send anything")
	}
}

func TestEngineServerError(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	if _, err := eng.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "half an ans"})
	tr.fire(t, wire.EventError, wire.ErrorPayload{Error: "model unavailable"})

	if got := eng.State(); got != StateIdle {
		t.Errorf("state after error = %q, want %q", got, StateIdle)
	}
	if got := store.Active().Messages[1].Content; got != "half an ans" {
		t.Errorf("partial content must survive a server error, got %q", got)
	}
	if _, err := eng.Send("again"); err != nil {
		t.Errorf("Send after error: %v", err)
	}
}

func TestEngineSessionDeletedMidStream(t *testing.T) {
	t.Run("completion for a deleted session frees the engine", func(t *testing.T) {
		eng, tr, store := newTestEngine(t)

		if _, err := eng.Send("hi"); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if err := store.Delete(store.ActiveID()); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		tr.fire(t, wire.EventChatComplete, wire.ChatComplete{SessionID: 42, FullResponse: "Hello there"})

		if got := eng.State(); got != StateIdle {
			t.Errorf("state after completion = %q, want %q", got, StateIdle)
		}
		if _, err := eng.Send("again"); err != nil {
			t.Errorf("Send after completion: %v", err)
		}
	})

	t.Run("fragment for a deleted session frees the engine", func(t *testing.T) {
		eng, tr, store := newTestEngine(t)

		if _, err := eng.Send("hi"); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if err := store.Delete(store.ActiveID()); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "Hel"})

		if got := eng.State(); got != StateIdle {
			t.Errorf("state after failed fragment = %q, want %q", got, StateIdle)
		}
		// Later events for the dead request are now strays.
		tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "lo"})
		tr.fire(t, wire.EventChatComplete, wire.ChatComplete{SessionID: 42, FullResponse: "Hello"})
		if store.Len() != 0 {
			t.Error("dead request events must not create sessions")
		}

		if _, err := eng.Send("again"); err != nil {
			t.Errorf("Send after failed fragment: %v", err)
		}
	})
}

func TestEngineStrayEventsIgnored(t *testing.T) {
	eng, tr, store := newTestEngine(t)

	tr.fire(t, wire.EventChatChunk, wire.ChatChunk{Chunk: "orphan"})
	tr.fire(t, wire.EventChatComplete, wire.ChatComplete{SessionID: 9, FullResponse: "orphan"})
	tr.fire(t, wire.EventChatCancelled, wire.ChatCancelled{Status: "cancelled"})

	if store.Len() != 0 {
		t.Error("stray events must not create sessions")
	}
	if got := eng.State(); got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

func TestEngineStatusEvents(t *testing.T) {
	tr := newFakeTransport()
	agg := status.NewAggregator()
	eng := New(Config{Transport: tr, Sessions: session.NewStore(), Status: agg})
	if err := eng.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	progress := 0.5
	tr.fire(t, wire.EventDocumentStatus, wire.DocumentStatus{
		DocumentID:  3,
		WorkspaceID: 1,
		Status:      "embedding",
		Filename:    "paper.pdf",
		Progress:    &progress,
	})
	doc, ok := agg.Document(3)
	if !ok {
		t.Fatal("document not tracked")
	}
	if doc.State != status.DocumentEmbedding || doc.Filename != "paper.pdf" {
		t.Errorf("unexpected document %+v", doc)
	}

	tr.fire(t, wire.EventWorkspaceStatus, wire.WorkspaceStatus{
		WorkspaceID: 1,
		Status:      "provisioning",
		Name:        "research",
	})
	ws, ok := agg.Workspace(1)
	if !ok || ws.State != status.WorkspaceProvisioning {
		t.Errorf("unexpected workspace %+v (tracked=%v)", ws, ok)
	}

	tr.fire(t, wire.EventWikipediaFetchStatus, wire.WikipediaFetchStatus{
		FetchID:     "f1",
		WorkspaceID: 1,
		Status:      "fetching",
		Query:       "go (language)",
		Timestamp:   1700000000000,
	})
	fetch, ok := agg.Fetch("f1")
	if !ok || fetch.State != status.FetchFetching {
		t.Errorf("unexpected fetch %+v (tracked=%v)", fetch, ok)
	}
	if fetch.Timestamp.IsZero() {
		t.Error("fetch timestamp not decoded")
	}

	if !agg.IsWorkspaceBusy(1) {
		t.Error("workspace with active work should be busy")
	}
}

func TestEngineSendFailureReleasesRequest(t *testing.T) {
	eng, tr, _ := newTestEngine(t)
	tr.sendErr = transport.ErrNotConnected

	if _, err := eng.Send("hi"); err == nil {
		t.Fatal("expected a send error")
	}
	tr.sendErr = nil
	if _, err := eng.Send("hi"); err != nil {
		t.Errorf("engine should be free after a failed send: %v", err)
	}
}
