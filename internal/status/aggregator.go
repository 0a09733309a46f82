package status

import (
	"sort"
	"strconv"
	"sync"

	"github.com/mstanton/ragline/internal/events"
)

// Aggregator holds the three job trackers. Updates replace the whole
// record for a key; within a key the last-arriving update wins, in
// arrival order on the connection. The server is trusted to emit
// per-entity transitions in real time order, so no sequence numbers
// are kept.
type Aggregator struct {
	mu         sync.RWMutex
	documents  map[int64]Document
	workspaces map[int64]Workspace
	fetches    map[string]Fetch
	notifyFn   func(events.StatusEvent)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNotify sets a callback invoked for every tracker update.
func WithNotify(fn func(events.StatusEvent)) Option {
	return func(a *Aggregator) { a.notifyFn = fn }
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		documents:  make(map[int64]Document),
		workspaces: make(map[int64]Workspace),
		fetches:    make(map[string]Fetch),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetDocument replaces the tracked record for a document.
func (a *Aggregator) SetDocument(d Document) {
	a.mu.Lock()
	a.documents[d.ID] = d
	a.mu.Unlock()

	a.notify(events.StatusClassDocument, strconv.FormatInt(d.ID, 10), string(d.State), d.Error)
}

// RemoveDocument drops a document from the tracker.
func (a *Aggregator) RemoveDocument(id int64) {
	a.mu.Lock()
	delete(a.documents, id)
	a.mu.Unlock()
}

// ClearDocuments drops all tracked documents.
func (a *Aggregator) ClearDocuments() {
	a.mu.Lock()
	a.documents = make(map[int64]Document)
	a.mu.Unlock()
}

// Document returns the tracked record for a document.
func (a *Aggregator) Document(id int64) (Document, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.documents[id]
	return d, ok
}

// Documents returns all tracked documents, ordered by id.
func (a *Aggregator) Documents() []Document {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Document, 0, len(a.documents))
	for _, d := range a.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetWorkspace replaces the tracked record for a workspace.
func (a *Aggregator) SetWorkspace(w Workspace) {
	a.mu.Lock()
	a.workspaces[w.ID] = w
	a.mu.Unlock()

	a.notify(events.StatusClassWorkspace, strconv.FormatInt(w.ID, 10), string(w.State), w.Message)
}

// RemoveWorkspace drops a workspace from the tracker.
func (a *Aggregator) RemoveWorkspace(id int64) {
	a.mu.Lock()
	delete(a.workspaces, id)
	a.mu.Unlock()
}

// ClearWorkspaces drops all tracked workspaces.
func (a *Aggregator) ClearWorkspaces() {
	a.mu.Lock()
	a.workspaces = make(map[int64]Workspace)
	a.mu.Unlock()
}

// Workspace returns the tracked record for a workspace.
func (a *Aggregator) Workspace(id int64) (Workspace, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	w, ok := a.workspaces[id]
	return w, ok
}

// Workspaces returns all tracked workspaces, ordered by id.
func (a *Aggregator) Workspaces() []Workspace {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Workspace, 0, len(a.workspaces))
	for _, w := range a.workspaces {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetFetch replaces the tracked record for a fetch job.
func (a *Aggregator) SetFetch(f Fetch) {
	a.mu.Lock()
	a.fetches[f.ID] = f
	a.mu.Unlock()

	a.notify(events.StatusClassFetch, f.ID, string(f.State), f.Message)
}

// RemoveFetch drops a fetch job from the tracker.
func (a *Aggregator) RemoveFetch(id string) {
	a.mu.Lock()
	delete(a.fetches, id)
	a.mu.Unlock()
}

// ClearFetches drops all tracked fetch jobs.
func (a *Aggregator) ClearFetches() {
	a.mu.Lock()
	a.fetches = make(map[string]Fetch)
	a.mu.Unlock()
}

// Fetch returns the tracked record for a fetch job.
func (a *Aggregator) Fetch(id string) (Fetch, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.fetches[id]
	return f, ok
}

// Fetches returns all tracked fetch jobs, ordered by id.
func (a *Aggregator) Fetches() []Fetch {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Fetch, 0, len(a.fetches))
	for _, f := range a.fetches {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsWorkspaceBusy reports whether the workspace itself, any of its
// documents, or any of its fetch jobs is still in a non-terminal state.
// This is a plain scan over all three trackers; map sizes are bounded
// by a single user's active entities.
func (a *Aggregator) IsWorkspaceBusy(workspaceID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if w, ok := a.workspaces[workspaceID]; ok && !w.State.Terminal() {
		return true
	}
	for _, d := range a.documents {
		if d.WorkspaceID == workspaceID && !d.State.Terminal() {
			return true
		}
	}
	for _, f := range a.fetches {
		if f.WorkspaceID == workspaceID && !f.State.Terminal() {
			return true
		}
	}
	return false
}

func (a *Aggregator) notify(class events.StatusClass, key, state, message string) {
	if a.notifyFn != nil {
		a.notifyFn(events.NewStatusEvent(class, key, state, message))
	}
}
