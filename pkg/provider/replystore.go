package provider

import (
	"context"

	"github.com/spetr/tobedo/pkg/types"
)

// ReplyStore persists checklist replies keyed by their originating message.
type ReplyStore interface {
	// Name returns the store name.
	Name() string

	// Init prepares the backing storage (directories, schema).
	Init(ctx context.Context) error

	// Upsert writes or replaces the record keyed by MessageAndChatID.
	// The creation time of an existing record is kept.
	Upsert(ctx context.Context, rec *types.TodoRecord) error

	// Get returns the record for an originating message.
	Get(ctx context.Context, chatID, messageID string) (*types.TodoRecord, error)

	// GetByReply returns the record whose checklist reply is replyID.
	GetByReply(ctx context.Context, chatID, replyID string) (*types.TodoRecord, error)

	// GetAllTodos flattens every record of a chat into individual items.
	// A chat without records yields an empty slice and no error.
	GetAllTodos(ctx context.Context, chatID string) ([]types.TodoItem, error)
}

// ReplyStoreConfig contains configuration for reply stores.
type ReplyStoreConfig struct {
	Provider string // "sqlite"
	Path     string // Path to database file
}
