// Package wire defines the event contract shared with the RAG backend:
// event names, payload shapes, and the envelope codecs used on the
// websocket connection.
package wire

// Client to server events.
const (
	EventChatMessage   = "chat_message"
	EventCancelMessage = "cancel_message"
)

// Server to client events.
const (
	EventChatChunk            = "chat_chunk"
	EventChatComplete         = "chat_complete"
	EventChatCancelled        = "chat_cancelled"
	EventError                = "error"
	EventDocumentStatus       = "document_status"
	EventWorkspaceStatus      = "workspace_status"
	EventWikipediaFetchStatus = "wikipedia_fetch_status"
)

// ChatMessage is the outgoing request envelope for a chat send.
// ClientID is a client-generated correlation id; the caller retains it
// for the lifetime of the request so the request can be cancelled.
type ChatMessage struct {
	Message     string `json:"message"`
	SessionID   *int64 `json:"session_id,omitempty"`
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
	RAGType     string `json:"rag_type,omitempty"`
	ClientID    string `json:"client_id"`
}

// CancelMessage asks the server to stop generating for a request.
type CancelMessage struct {
	ClientID string `json:"client_id"`
}

// ChatChunk carries one incremental fragment of the assistant response.
type ChatChunk struct {
	Chunk string `json:"chunk"`
}

// ChatComplete is the authoritative end of a response. FullResponse
// replaces whatever fragment concatenation the client accumulated.
type ChatComplete struct {
	SessionID    int64     `json:"session_id"`
	FullResponse string    `json:"full_response"`
	Context      []Context `json:"context,omitempty"`
}

// ChatCancelled acknowledges a cancel_message.
type ChatCancelled struct {
	Status string `json:"status"`
}

// ErrorPayload is a transport-reported error, delivered as data.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Context is a single retrieval citation attached to a completed response.
type Context struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentStatus reports ingestion progress for one document.
type DocumentStatus struct {
	DocumentID  int64    `json:"document_id"`
	WorkspaceID int64    `json:"workspace_id"`
	Status      string   `json:"status"`
	Filename    string   `json:"filename,omitempty"`
	Error       string   `json:"error,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
	ChunkCount  *int     `json:"chunk_count,omitempty"`
}

// WorkspaceStatus reports provisioning state for one workspace.
type WorkspaceStatus struct {
	WorkspaceID int64  `json:"workspace_id"`
	Status      string `json:"status"`
	Name        string `json:"name,omitempty"`
	Message     string `json:"message,omitempty"`
}

// WikipediaFetchStatus reports progress of an external-content fetch job.
// FetchID is a caller-supplied synthetic id, typically a composite of
// workspace, query, and timestamp.
type WikipediaFetchStatus struct {
	FetchID     string `json:"fetch_id"`
	WorkspaceID int64  `json:"workspace_id"`
	Status      string `json:"status"`
	Query       string `json:"query,omitempty"`
	Message     string `json:"message,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}
