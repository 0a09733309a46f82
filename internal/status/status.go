// Package status tracks asynchronous backend jobs: document ingestion,
// workspace provisioning, and external-content fetches. Each job class
// is an independent keyed tracker with whole-record replacement on
// every update.
package status

import (
	"time"
)

// DocumentState is the ingestion status vocabulary for documents.
type DocumentState string

// Document states. Ready and Failed are terminal.
const (
	DocumentPending   DocumentState = "pending"
	DocumentParsing   DocumentState = "parsing"
	DocumentChunking  DocumentState = "chunking"
	DocumentEmbedding DocumentState = "embedding"
	DocumentIndexing  DocumentState = "indexing"
	DocumentReady     DocumentState = "ready"
	DocumentFailed    DocumentState = "failed"
)

// Terminal reports whether no further transition is expected.
func (s DocumentState) Terminal() bool {
	return s == DocumentReady || s == DocumentFailed
}

// WorkspaceState is the provisioning status vocabulary for workspaces.
type WorkspaceState string

// Workspace states. Ready and Error are terminal; Deleting marks an
// in-flight destructive operation and counts as busy.
const (
	WorkspaceProvisioning WorkspaceState = "provisioning"
	WorkspaceReady        WorkspaceState = "ready"
	WorkspaceError        WorkspaceState = "error"
	WorkspaceDeleting     WorkspaceState = "deleting"
)

// Terminal reports whether no further transition is expected.
func (s WorkspaceState) Terminal() bool {
	return s == WorkspaceReady || s == WorkspaceError
}

// FetchState is the status vocabulary for external-content fetch jobs.
type FetchState string

// Fetch states. Ready and Failed are terminal.
const (
	FetchPending    FetchState = "pending"
	FetchFetching   FetchState = "fetching"
	FetchProcessing FetchState = "processing"
	FetchReady      FetchState = "ready"
	FetchFailed     FetchState = "failed"
)

// Terminal reports whether no further transition is expected.
func (s FetchState) Terminal() bool {
	return s == FetchReady || s == FetchFailed
}

// Document is the tracked state of one document, keyed by document id.
type Document struct {
	ID          int64
	WorkspaceID int64
	State       DocumentState
	Filename    string
	Error       string
	Progress    *float64
	ChunkCount  *int
}

// Workspace is the tracked state of one workspace, keyed by workspace id.
type Workspace struct {
	ID      int64
	State   WorkspaceState
	Name    string
	Message string
}

// Fetch is the tracked state of one external-content fetch job, keyed
// by a caller-supplied synthetic string id.
type Fetch struct {
	ID          string
	WorkspaceID int64
	State       FetchState
	Query       string
	Message     string
	Timestamp   time.Time
}
