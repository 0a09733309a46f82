package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mstanton/ragline/internal/session"
)

func sampleSessions() []*session.Session {
	backendID := int64(42)
	now := time.Now().Truncate(time.Millisecond).UTC()
	return []*session.Session{
		{
			ID:        "s2",
			BackendID: &backendID,
			Title:     "what is rag...",
			Messages: []session.Message{
				{ID: "m1", Role: session.RoleUser, Content: "what is rag", Timestamp: now},
				{
					ID: "m2", Role: session.RoleAssistant, Content: "Hello there", Timestamp: now,
					Context: []session.Citation{
						{Text: "snippet", Score: 0.92, Metadata: map[string]any{"source": "doc.pdf"}},
					},
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        "s1",
			Title:     session.DefaultTitle,
			Messages:  []session.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	want := sampleSessions()

	store.Save(want)
	got := store.Load()

	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestFileStoreFailSoft(t *testing.T) {
	t.Run("missing file loads empty", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
		got := store.Load()
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty slice, got %v", got)
		}
	})

	t.Run("malformed blob loads empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		if err := os.WriteFile(path, []byte("{corrupt"), 0o600); err != nil {
			t.Fatal(err)
		}
		store := NewFileStore(path)
		if got := store.Load(); len(got) != 0 {
			t.Errorf("expected empty slice, got %v", got)
		}
	})

	t.Run("clear removes blob and is idempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		store := NewFileStore(path)
		store.Save(sampleSessions())
		store.Clear()
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected blob removed")
		}
		store.Clear() // second clear must not panic or error
	})
}
