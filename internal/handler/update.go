package handler

import (
	"context"
	"strings"

	"github.com/spetr/tobedo/internal/checklist"
)

// Update is an inbound chat event as seen by the handler.
type Update struct {
	ID        string // request id used in logs
	ChatID    string
	MessageID string // for callbacks: the checklist reply carrying the keyboard
	Text      string

	CallbackID   string
	CallbackData string
}

// Messenger delivers outgoing messages to a chat.
type Messenger interface {
	// Reply sends a plain text message to chatID.
	Reply(ctx context.Context, chatID, text string) error

	// SendChecklist replies to replyToID with a toggleable checklist and
	// returns the id of the sent message.
	SendChecklist(ctx context.Context, chatID, replyToID string, items []checklist.Item) (string, error)

	// UpdateChecklist redraws the checklist attached to messageID.
	UpdateChecklist(ctx context.Context, chatID, messageID string, items []checklist.Item) error

	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Predicate reports whether an update should be handled by a route.
type Predicate func(Update) bool

// IsCallback matches button presses.
func IsCallback(u Update) bool {
	return u.CallbackID != ""
}

// IsCommand matches text messages starting with a slash.
func IsCommand(u Update) bool {
	return !IsCallback(u) && strings.HasPrefix(u.Text, "/")
}

// HasText matches messages with non-blank text.
func HasText(u Update) bool {
	return !IsCallback(u) && strings.TrimSpace(u.Text) != ""
}

// HasCommand matches "/name", "/name args" and "/name@bot".
func HasCommand(name string) Predicate {
	return func(u Update) bool {
		return IsCommand(u) && commandName(u.Text) == name
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(u Update) bool { return !p(u) }
}

// And matches when every predicate matches.
func And(ps ...Predicate) Predicate {
	return func(u Update) bool {
		for _, p := range ps {
			if !p(u) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(ps ...Predicate) Predicate {
	return func(u Update) bool {
		for _, p := range ps {
			if p(u) {
				return true
			}
		}
		return false
	}
}

func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
