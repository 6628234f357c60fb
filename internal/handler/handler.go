// Package handler turns inbound chat updates into checklist replies.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spetr/tobedo/internal/checklist"
	"github.com/spetr/tobedo/pkg/provider"
	"github.com/spetr/tobedo/pkg/types"
)

// Reply texts.
const (
	EmptyMessage   = "No todo items found"
	FailureMessage = "Sorry, your todo items could not be loaded right now. Please try again later."
	HelpMessage    = "Send me a list, one item per line, and I will turn it into a checklist.\n\n" +
		"/todos - show all items\n" +
		"/done - show completed items\n" +
		"/pending - show pending items"
	GoneMessage = "This checklist is no longer available"
)

// Completion selects items by their completed flag.
type Completion int

const (
	AnyState  Completion = iota // all items
	Completed                   // completed only
	Pending                     // not completed only
)

// Matches reports whether an item with the given flag passes the filter.
func (c Completion) Matches(completed bool) bool {
	switch c {
	case Completed:
		return completed
	case Pending:
		return !completed
	default:
		return true
	}
}

func (c Completion) String() string {
	switch c {
	case Completed:
		return "completed"
	case Pending:
		return "pending"
	default:
		return "all"
	}
}

// Config wires a Handler to its collaborators.
type Config struct {
	Store     provider.ReplyStore
	Messenger Messenger
	Logger    *slog.Logger // defaults to slog.Default()
}

// Handler answers chat updates. It keeps no state between calls.
type Handler struct {
	store     provider.ReplyStore
	messenger Messenger
	logger    *slog.Logger
	routes    []route
}

type route struct {
	name   string
	match  Predicate
	handle func(ctx context.Context, u Update) error
}

// New creates a handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: handler needs a store", types.ErrInvalidConfig)
	}
	if cfg.Messenger == nil {
		return nil, fmt.Errorf("%w: handler needs a messenger", types.ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store:     cfg.Store,
		messenger: cfg.Messenger,
		logger:    logger,
	}
	h.routes = []route{
		{"toggle", IsCallback, h.ToggleItem},
		{"todos", HasCommand("todos"), h.ShowAllTodos},
		{"done", HasCommand("done"), h.ShowCompletedTodos},
		{"pending", HasCommand("pending"), h.ShowPendingTodos},
		{"help", Or(HasCommand("start"), HasCommand("help")), h.showHelp},
		{"checklist", And(Not(IsCommand), HasText), h.CreateChecklist},
	}
	return h, nil
}

// Handle runs the first route matching u. Unmatched updates are ignored.
func (h *Handler) Handle(ctx context.Context, u Update) error {
	for _, r := range h.routes {
		if r.match(u) {
			h.logger.Debug("handling update", "update_id", u.ID, "chat_id", u.ChatID, "route", r.name)
			return r.handle(ctx, u)
		}
	}
	h.logger.Debug("ignoring update", "update_id", u.ID, "chat_id", u.ChatID)
	return nil
}

// ShowTodos replies with the chat's items that pass filter. It sends exactly
// one message: the checklist, the empty-state text, or a generic failure.
func (h *Handler) ShowTodos(ctx context.Context, u Update, filter Completion) error {
	todos, err := h.store.GetAllTodos(ctx, u.ChatID)
	if err != nil {
		h.logger.Error("failed to load todos",
			"update_id", u.ID, "chat_id", u.ChatID, "filter", filter.String(), "error", err)
		loadErr := fmt.Errorf("failed to load todos for chat %s: %w", u.ChatID, err)
		if replyErr := h.messenger.Reply(ctx, u.ChatID, FailureMessage); replyErr != nil {
			return errors.Join(loadErr, fmt.Errorf("failed to send failure reply: %w", replyErr))
		}
		return loadErr
	}

	items := make([]checklist.Item, 0, len(todos))
	for _, todo := range todos {
		if filter.Matches(todo.Completed) {
			items = append(items, checklist.Item{Text: todo.Text, Completed: todo.Completed})
		}
	}

	text := EmptyMessage
	if len(items) > 0 {
		text = checklist.Render(items)
	}

	if err := h.messenger.Reply(ctx, u.ChatID, text); err != nil {
		return fmt.Errorf("failed to send todos: %w", err)
	}
	return nil
}

// ShowAllTodos replies with every item of the chat.
func (h *Handler) ShowAllTodos(ctx context.Context, u Update) error {
	return h.ShowTodos(ctx, u, AnyState)
}

// ShowCompletedTodos replies with completed items only.
func (h *Handler) ShowCompletedTodos(ctx context.Context, u Update) error {
	return h.ShowTodos(ctx, u, Completed)
}

// ShowPendingTodos replies with pending items only.
func (h *Handler) ShowPendingTodos(ctx context.Context, u Update) error {
	return h.ShowTodos(ctx, u, Pending)
}

func (h *Handler) showHelp(ctx context.Context, u Update) error {
	return h.messenger.Reply(ctx, u.ChatID, HelpMessage)
}

// CreateChecklist parses the message text, replies with a checklist and
// stores its state. Messages without items are ignored.
func (h *Handler) CreateChecklist(ctx context.Context, u Update) error {
	state := checklist.Parse(u.Text)
	if state.Len() == 0 {
		return nil
	}

	data, err := checklist.Encode(state)
	if err != nil {
		return err
	}

	replyID, err := h.messenger.SendChecklist(ctx, u.ChatID, u.MessageID, state.Items())
	if err != nil {
		return fmt.Errorf("failed to send checklist: %w", err)
	}

	rec := &types.TodoRecord{
		MessageAndChatID: types.ComposeKey(u.ChatID, u.MessageID),
		ReplyAndChatID:   types.ComposeKey(u.ChatID, replyID),
		State:            data,
	}
	if err := h.store.Upsert(ctx, rec); err != nil {
		h.logger.Error("failed to store checklist",
			"update_id", u.ID, "key", rec.MessageAndChatID, "error", err)
		return fmt.Errorf("failed to store checklist: %w", err)
	}

	h.logger.Info("checklist created",
		"update_id", u.ID, "key", rec.MessageAndChatID, "reply", rec.ReplyAndChatID, "items", state.Len())
	return nil
}

// ToggleItem flips the item selected by a button press on a checklist reply.
func (h *Handler) ToggleItem(ctx context.Context, u Update) error {
	index, err := strconv.Atoi(u.CallbackData)
	if err != nil {
		h.answer(ctx, u, "")
		return fmt.Errorf("%w: callback data %q is not an item index", types.ErrInvalidInput, u.CallbackData)
	}

	rec, err := h.store.GetByReply(ctx, u.ChatID, u.MessageID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.answer(ctx, u, GoneMessage)
		} else {
			h.answer(ctx, u, FailureMessage)
		}
		return fmt.Errorf("failed to load checklist: %w", err)
	}

	state, err := checklist.Decode(rec.State)
	if err != nil {
		h.logger.Error("stored checklist is corrupt",
			"update_id", u.ID, "key", rec.MessageAndChatID, "error", err)
		h.answer(ctx, u, FailureMessage)
		return fmt.Errorf("record %s: %w", rec.MessageAndChatID, err)
	}

	completed, err := state.Toggle(index)
	if err != nil {
		h.answer(ctx, u, "")
		return err
	}

	if rec.State, err = checklist.Encode(state); err != nil {
		h.answer(ctx, u, FailureMessage)
		return err
	}
	if err := h.store.Upsert(ctx, rec); err != nil {
		h.answer(ctx, u, FailureMessage)
		return fmt.Errorf("failed to store checklist: %w", err)
	}

	if err := h.messenger.UpdateChecklist(ctx, u.ChatID, u.MessageID, state.Items()); err != nil {
		h.answer(ctx, u, FailureMessage)
		return fmt.Errorf("failed to redraw checklist: %w", err)
	}
	h.answer(ctx, u, "")

	h.logger.Debug("item toggled",
		"update_id", u.ID, "key", rec.MessageAndChatID, "index", index, "completed", completed)
	return nil
}

func (h *Handler) answer(ctx context.Context, u Update, text string) {
	if err := h.messenger.AnswerCallback(ctx, u.CallbackID, text); err != nil {
		h.logger.Warn("failed to answer callback", "update_id", u.ID, "error", err)
	}
}
