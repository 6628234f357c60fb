// Package types contains shared data types used across the tobedo project.
package types

import (
	"fmt"
	"strings"
	"time"
)

// KeySeparator joins a chat identifier and a message identifier.
const KeySeparator = "_"

// TodoRecord is a single row of the Replies table.
type TodoRecord struct {
	MessageAndChatID string    // {chat}_{message} of the originating message
	ReplyAndChatID   string    // {chat}_{message} of the bot's checklist reply
	CreatedAt        time.Time // zero means "now" on first insert
	State            []byte    // JSON object of item text -> completed
}

// TodoItem is one checklist entry flattened out of a TodoRecord.
type TodoItem struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// ComposeKey builds a composite key from a chat and a message identifier.
func ComposeKey(chatID, messageID string) string {
	return chatID + KeySeparator + messageID
}

// SplitKey splits a composite key into its chat and message parts.
// The split happens on the last separator.
func SplitKey(key string) (chatID, messageID string, err error) {
	i := strings.LastIndex(key, KeySeparator)
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("%w: malformed key %q", ErrDataFormat, key)
	}
	return key[:i], key[i+1:], nil
}
