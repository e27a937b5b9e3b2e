// Package store persists conversations in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"zeta/pkg/message"
)

// DefaultTitle names conversations created without a title.
const DefaultTitle = "Yeni Sohbet"

// ErrNotFound reports an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// Conversation is a stored chat with its full transcript.
type Conversation struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []message.Message `json:"messages"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Summary is the list view of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Update holds optional changes. A nil field is left unchanged; a non-nil Messages
// replaces the whole transcript.
type Update struct {
	Title    *string
	Messages []message.Message
}

// Store is a SQLite-backed conversation repository, safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// Open creates the parent directory when needed, opens path and applies the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: slog.Default().With("component", "store"),
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// List returns every conversation, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			summary            Summary
			created, updatedAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &created, &updatedAt, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summary.CreatedAt = fromMillis(created)
		summary.UpdatedAt = fromMillis(updatedAt)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Get returns the conversation with its messages in insertion order.
func (s *Store) Get(ctx context.Context, id string) (Conversation, error) {
	conv := Conversation{ID: id}
	var created, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.Title, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	conv.CreatedAt = fromMillis(created)
	conv.UpdatedAt = fromMillis(updatedAt)

	conv.Messages, err = s.messages(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (s *Store) messages(ctx context.Context, id string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	out := []message.Message{}
	for rows.Next() {
		var (
			msg message.Message
			at  int64
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp = fromMillis(at)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return out, nil
}

// Create stores a new conversation with a fresh conv_ id. An empty title uses DefaultTitle.
func (s *Store) Create(ctx context.Context, title string, messages []message.Message) (Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	now := s.now()
	conv := Conversation{
		ID:        "conv_" + uuid.NewString(),
		Title:     title,
		CreatedAt: now.Truncate(time.Millisecond),
		UpdatedAt: now.Truncate(time.Millisecond),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			conv.ID, conv.Title, toMillis(now), toMillis(now),
		); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		stored, err := insertMessages(ctx, tx, conv.ID, messages, now)
		conv.Messages = stored
		return err
	})
	if err != nil {
		return Conversation{}, err
	}

	s.log.Info("Conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Update applies upd to conversation id and returns the stored result.
func (s *Store) Update(ctx context.Context, id string, upd Update) (Conversation, error) {
	now := s.now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, id, now); err != nil {
			return err
		}
		if upd.Title != nil {
			title := strings.TrimSpace(*upd.Title)
			if title == "" {
				title = DefaultTitle
			}
			if _, err := tx.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id); err != nil {
				return fmt.Errorf("update title: %w", err)
			}
		}
		if upd.Messages != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
				return fmt.Errorf("clear messages: %w", err)
			}
			if _, err := insertMessages(ctx, tx, id, upd.Messages, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Conversation{}, err
	}
	return s.Get(ctx, id)
}

// Append adds messages to the end of conversation id.
func (s *Store) Append(ctx context.Context, id string, messages ...message.Message) error {
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, id, now); err != nil {
			return err
		}
		_, err := insertMessages(ctx, tx, id, messages, now)
		return err
	})
}

// Delete removes conversation id and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func touch(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, id string, messages []message.Message, now time.Time) ([]message.Message, error) {
	stored := make([]message.Message, 0, len(messages))
	for _, msg := range messages {
		at := msg.Timestamp
		if at.IsZero() {
			at = now
		}
		msg.Role = message.NormalizeRole(msg.Role)
		msg.Timestamp = at.UTC().Truncate(time.Millisecond)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			id, msg.Role, msg.Content, toMillis(at),
		); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		stored = append(stored, msg)
	}
	return stored, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
