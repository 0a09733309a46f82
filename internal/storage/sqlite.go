package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mstanton/ragline/internal/db"
	"github.com/mstanton/ragline/internal/debug"
	"github.com/mstanton/ragline/internal/session"
)

// SQLiteStore persists the session collection in SQLite. Save replaces
// the full collection in one transaction so its semantics match the
// blob store's: what you save is exactly what you load.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a SQLite-backed persister over an open database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Load reads all persisted sessions, newest first. Any query or
// decoding failure yields an empty collection.
func (s *SQLiteStore) Load() []*session.Session {
	ctx := context.Background()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, backend_id, title, created_at, updated_at FROM sessions ORDER BY position")
	if err != nil {
		debug.Error("storage", err, "querying sessions")
		return []*session.Session{}
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		var (
			sess      session.Session
			backendID sql.NullInt64
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&sess.ID, &backendID, &sess.Title, &createdAt, &updatedAt); err != nil {
			debug.Error("storage", err, "scanning session row")
			return []*session.Session{}
		}
		if backendID.Valid {
			id := backendID.Int64
			sess.BackendID = &id
		}
		sess.CreatedAt = time.UnixMilli(createdAt)
		sess.UpdatedAt = time.UnixMilli(updatedAt)
		sess.Messages = []session.Message{}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		debug.Error("storage", err, "iterating session rows")
		return []*session.Session{}
	}

	for _, sess := range sessions {
		if !s.loadMessages(ctx, sess) {
			return []*session.Session{}
		}
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	return sessions
}

func (s *SQLiteStore) loadMessages(ctx context.Context, sess *session.Session) bool {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, context, created_at FROM messages WHERE session_id = ? ORDER BY position",
		sess.ID)
	if err != nil {
		debug.Error("storage", err, "querying messages")
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       session.Message
			contextJS sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &contextJS, &createdAt); err != nil {
			debug.Error("storage", err, "scanning message row")
			return false
		}
		msg.Timestamp = time.UnixMilli(createdAt)
		if contextJS.Valid && contextJS.String != "" {
			if err := json.Unmarshal([]byte(contextJS.String), &msg.Context); err != nil {
				debug.Error("storage", err, "decoding message context")
				msg.Context = nil
			}
		}
		sess.Messages = append(sess.Messages, msg)
	}
	return rows.Err() == nil
}

// Save replaces the persisted collection with the given one.
func (s *SQLiteStore) Save(sessions []*session.Session) {
	ctx := context.Background()

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
			return err
		}

		for pos, sess := range sessions {
			var backendID sql.NullInt64
			if sess.BackendID != nil {
				backendID = sql.NullInt64{Int64: *sess.BackendID, Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO sessions (id, backend_id, title, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
				sess.ID, backendID, sess.Title, pos,
				sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli()); err != nil {
				return err
			}

			for mpos, msg := range sess.Messages {
				var contextJS sql.NullString
				if len(msg.Context) > 0 {
					data, err := json.Marshal(msg.Context)
					if err != nil {
						return err
					}
					contextJS = sql.NullString{String: string(data), Valid: true}
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO messages (id, session_id, role, content, context, position, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
					msg.ID, sess.ID, string(msg.Role), msg.Content, contextJS, mpos,
					msg.Timestamp.UnixMilli()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		debug.Error("storage", err, "saving sessions")
	}
}

// Clear removes all persisted sessions.
func (s *SQLiteStore) Clear() {
	ctx := context.Background()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM sessions")
		return err
	})
	if err != nil {
		debug.Error("storage", err, "clearing sessions")
	}
}
