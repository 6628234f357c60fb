// Package sqlitestore implements provider.ReplyStore on a single SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/spetr/tobedo/internal/checklist"
	"github.com/spetr/tobedo/pkg/types"
)

// timestampLayout matches what CURRENT_TIMESTAMP writes, so stored values
// sort correctly as text.
const timestampLayout = "2006-01-02 15:04:05"

const schema = `
	CREATE TABLE IF NOT EXISTS Replies (
		message_and_chat_id VARCHAR(255) NOT NULL,
		reply_and_chat_id VARCHAR(255) NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		state TEXT,
		PRIMARY KEY (message_and_chat_id),
		UNIQUE (reply_and_chat_id)
	)
`

const selectColumns = `SELECT message_and_chat_id, reply_and_chat_id, created_at, state FROM Replies`

// Store is a SQLite reply store. It holds no connection between calls:
// every operation opens the database, uses it and closes it again.
type Store struct {
	path string
	dsn  string
}

// New creates a store backed by the database file at path.
func New(path string) *Store {
	return &Store{
		path: path,
		// WAL for concurrent readers, busy_timeout to wait for locks instead of failing immediately
		dsn: path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000",
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return "sqlite"
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Init creates the database directory and the Replies table.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %w", types.ErrStoreUnavailable, err)
	}

	return s.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("%w: failed to create schema: %w", types.ErrStoreUnavailable, err)
		}
		return nil
	})
}

// withDB runs fn on a connection scoped to this call.
func (s *Store) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", types.ErrStoreUnavailable, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: failed to open database %s: %w", types.ErrStoreUnavailable, s.path, err)
	}

	return fn(db)
}

// Upsert writes rec, replacing the reply key and state of an existing record.
func (s *Store) Upsert(ctx context.Context, rec *types.TodoRecord) error {
	if _, _, err := types.SplitKey(rec.MessageAndChatID); err != nil {
		return err
	}
	if _, _, err := types.SplitKey(rec.ReplyAndChatID); err != nil {
		return err
	}
	state, err := checklist.Decode(rec.State)
	if err == nil {
		err = state.Validate()
	}
	if err != nil {
		return fmt.Errorf("refusing to store %s: %w", rec.MessageAndChatID, err)
	}

	var createdAt sql.NullString
	if !rec.CreatedAt.IsZero() {
		createdAt.String = rec.CreatedAt.UTC().Format(timestampLayout)
		createdAt.Valid = true
	}

	return s.withDB(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO Replies (message_and_chat_id, reply_and_chat_id, created_at, state)
			VALUES (?, ?, COALESCE(?, CURRENT_TIMESTAMP), ?)
			ON CONFLICT (message_and_chat_id) DO UPDATE SET
				reply_and_chat_id = excluded.reply_and_chat_id,
				state = excluded.state
		`, rec.MessageAndChatID, rec.ReplyAndChatID, createdAt, string(rec.State))
		if err != nil {
			return classifyWriteError(rec, err)
		}
		return nil
	})
}

func classifyWriteError(rec *types.TodoRecord, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: reply %s already belongs to another checklist", types.ErrInvalidInput, rec.ReplyAndChatID)
	}
	return fmt.Errorf("%w: failed to store %s: %w", types.ErrStoreUnavailable, rec.MessageAndChatID, err)
}

// Get returns the record for an originating message.
func (s *Store) Get(ctx context.Context, chatID, messageID string) (*types.TodoRecord, error) {
	return s.getOne(ctx, selectColumns+` WHERE message_and_chat_id = ?`, types.ComposeKey(chatID, messageID))
}

// GetByReply returns the record whose checklist reply is replyID.
func (s *Store) GetByReply(ctx context.Context, chatID, replyID string) (*types.TodoRecord, error) {
	return s.getOne(ctx, selectColumns+` WHERE reply_and_chat_id = ?`, types.ComposeKey(chatID, replyID))
}

func (s *Store) getOne(ctx context.Context, query, key string) (*types.TodoRecord, error) {
	var rec *types.TodoRecord
	err := s.withDB(ctx, func(db *sql.DB) error {
		var err error
		rec, err = scanRecord(db.QueryRowContext(ctx, query, key))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: record %s", types.ErrNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read %s: %w", types.ErrStoreUnavailable, key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAllTodos returns every item stored for chatID, newest record first.
func (s *Store) GetAllTodos(ctx context.Context, chatID string) ([]types.TodoItem, error) {
	var records []*types.TodoRecord
	err := s.withDB(ctx, func(db *sql.DB) error {
		prefix := chatID + types.KeySeparator
		rows, err := db.QueryContext(ctx, selectColumns+`
			WHERE substr(message_and_chat_id, 1, length(?)) = ?
			ORDER BY created_at DESC, message_and_chat_id ASC
		`, prefix, prefix)
		if err != nil {
			return fmt.Errorf("%w: failed to query chat %s: %w", types.ErrStoreUnavailable, chatID, err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return fmt.Errorf("%w: failed to scan chat %s: %w", types.ErrStoreUnavailable, chatID, err)
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: failed to read chat %s: %w", types.ErrStoreUnavailable, chatID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return flatten(records)
}

// flatten decodes every record and emits one item per checklist entry.
// A single undecodable record fails the whole read.
func flatten(records []*types.TodoRecord) ([]types.TodoItem, error) {
	items := []types.TodoItem{}
	for _, rec := range records {
		chatID, messageID, err := types.SplitKey(rec.MessageAndChatID)
		if err != nil {
			return nil, err
		}
		state, err := checklist.Decode(rec.State)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.MessageAndChatID, err)
		}
		for _, item := range state.Items() {
			items = append(items, types.TodoItem{
				ChatID:    chatID,
				MessageID: messageID,
				Text:      item.Text,
				Completed: item.Completed,
				CreatedAt: rec.CreatedAt,
			})
		}
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.TodoRecord, error) {
	var rec types.TodoRecord
	var createdAt sql.NullTime
	var state sql.NullString

	if err := row.Scan(&rec.MessageAndChatID, &rec.ReplyAndChatID, &createdAt, &state); err != nil {
		return nil, err
	}

	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if state.Valid {
		rec.State = []byte(state.String)
	}
	return &rec, nil
}
