// Package telegram connects the handler to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/rs/xid"
	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/spetr/tobedo/internal/checklist"
	"github.com/spetr/tobedo/internal/handler"
	"github.com/spetr/tobedo/pkg/types"
)

const (
	checklistTitle = "Checklist"
	doneMark       = "✅ "
	openMark       = "⬜ "
)

var _ handler.Messenger = (*Bot)(nil)

// sender is the part of the Bot API used to talk back to chats.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
}

// UpdateHandler consumes converted updates.
type UpdateHandler interface {
	Handle(ctx context.Context, u handler.Update) error
}

// Config contains bot configuration.
type Config struct {
	Token       string
	Debug       bool
	PollTimeout time.Duration
	Logger      hclog.Logger
}

// Bot receives updates by long polling and implements handler.Messenger.
type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	pollTimeout time.Duration
	logger      hclog.Logger
}

// New authorizes against the Bot API.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: empty bot token", types.ErrInvalidConfig)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	api.Debug = cfg.Debug

	b := newBot(api, cfg.PollTimeout, cfg.Logger)
	b.api = api
	b.logger.Info("authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(s sender, pollTimeout time.Duration, logger hclog.Logger) *Bot {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Bot{
		sender:      s,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run polls for updates and hands them to h one at a time until ctx is done.
func (b *Bot) Run(ctx context.Context, h UpdateHandler) error {
	if b.api == nil {
		return fmt.Errorf("bot is not connected")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(b.pollTimeout / time.Second)

	updates, err := b.api.GetUpdatesChan(cfg)
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	b.logger.Info("polling for updates", "timeout", b.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("stopped polling")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, h, upd)
		}
	}
}

// dispatch handles a single update. Failures are logged, never fatal.
func (b *Bot) dispatch(ctx context.Context, h UpdateHandler, upd tgbotapi.Update) {
	u, ok := ToUpdate(upd)
	if !ok {
		b.logger.Trace("skipping update", "update_id", upd.UpdateID)
		return
	}

	log := b.logger.With("request_id", u.ID, "update_id", upd.UpdateID, "chat_id", u.ChatID)
	log.Debug("update received", "callback", u.CallbackID != "")

	start := time.Now()
	if err := h.Handle(ctx, u); err != nil {
		log.Error("update failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Debug("update handled", "duration", time.Since(start))
}

// ToUpdate converts a Bot API update. Updates without a message or a
// callback on a message are reported as not ok.
func ToUpdate(upd tgbotapi.Update) (handler.Update, bool) {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		q := upd.CallbackQuery
		return handler.Update{
			ID:           xid.New().String(),
			ChatID:       strconv.FormatInt(q.Message.Chat.ID, 10),
			MessageID:    strconv.Itoa(q.Message.MessageID),
			CallbackID:   q.ID,
			CallbackData: q.Data,
		}, true
	case upd.Message != nil && upd.Message.Chat != nil:
		m := upd.Message
		return handler.Update{
			ID:        xid.New().String(),
			ChatID:    strconv.FormatInt(m.Chat.ID, 10),
			MessageID: strconv.Itoa(m.MessageID),
			Text:      m.Text,
		}, true
	default:
		return handler.Update{}, false
	}
}

// Reply sends a plain text message.
func (b *Bot) Reply(_ context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	return nil
}

// SendChecklist replies to a message with one toggle button per item.
func (b *Bot) SendChecklist(_ context.Context, chatID, replyToID string, items []checklist.Item) (string, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}
	replyTo, err := strconv.Atoi(replyToID)
	if err != nil {
		return "", fmt.Errorf("%w: message id %q", types.ErrInvalidInput, replyToID)
	}

	msg := tgbotapi.NewMessage(id, checklistTitle)
	msg.ReplyToMessageID = replyTo
	msg.ReplyMarkup = Keyboard(items)

	sent, err := b.sender.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send checklist to %s: %w", chatID, err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// UpdateChecklist replaces the keyboard of a checklist reply.
func (b *Bot) UpdateChecklist(_ context.Context, chatID, messageID string, items []checklist.Item) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	mid, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("%w: message id %q", types.ErrInvalidInput, messageID)
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(id, mid, Keyboard(items))
	if _, err := b.sender.Send(edit); err != nil {
		return fmt.Errorf("failed to update checklist %s_%s: %w", chatID, messageID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (b *Bot) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := b.sender.AnswerCallbackQuery(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback %s: %w", callbackID, err)
	}
	return nil
}

// Keyboard builds one button row per item. Button data is the item index.
func Keyboard(items []checklist.Item) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items))
	for i, item := range items {
		label := openMark + item.Text
		if item.Completed {
			label = doneMark + item.Text
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, strconv.Itoa(i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chat id %q", types.ErrInvalidInput, chatID)
	}
	return id, nil
}
