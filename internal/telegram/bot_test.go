package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/spetr/tobedo/internal/checklist"
	"github.com/spetr/tobedo/internal/handler"
	"github.com/spetr/tobedo/pkg/types"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	answered []tgbotapi.CallbackConfig
	err      error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 700 + len(f.sent)}, nil
}

func (f *fakeSender) AnswerCallbackQuery(c tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error) {
	f.answered = append(f.answered, c)
	return tgbotapi.APIResponse{Ok: true}, f.err
}

type recordingHandler struct {
	got []handler.Update
	err error
}

func (h *recordingHandler) Handle(_ context.Context, u handler.Update) error {
	h.got = append(h.got, u)
	return h.err
}

func TestToUpdate(t *testing.T) {
	chat := &tgbotapi.Chat{ID: -100123}

	t.Run("message", func(t *testing.T) {
		u, ok := ToUpdate(tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 42, Chat: chat, Text: "/todos"}})
		if !ok {
			t.Fatal("ToUpdate ok = false")
		}
		if u.ID == "" {
			t.Error("missing request id")
		}
		u.ID = ""
		want := handler.Update{ChatID: "-100123", MessageID: "42", Text: "/todos"}
		if diff := cmp.Diff(want, u); diff != "" {
			t.Errorf("ToUpdate mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("callback", func(t *testing.T) {
		u, ok := ToUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			Data:    "2",
			Message: &tgbotapi.Message{MessageID: 501, Chat: chat, Text: checklistTitle},
		}})
		if !ok {
			t.Fatal("ToUpdate ok = false")
		}
		u.ID = ""
		want := handler.Update{ChatID: "-100123", MessageID: "501", CallbackID: "cb-1", CallbackData: "2"}
		if diff := cmp.Diff(want, u); diff != "" {
			t.Errorf("ToUpdate mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, ok := ToUpdate(tgbotapi.Update{}); ok {
			t.Error("empty update accepted")
		}
		if _, ok := ToUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "inline"}}); ok {
			t.Error("callback without message accepted")
		}
	})
}

func TestReply(t *testing.T) {
	f := &fakeSender{}
	b := newBot(f, 0, nil)

	if err := b.Reply(context.Background(), "123", "No todo items found"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	msg, ok := f.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", f.sent[0])
	}
	if msg.ChatID != 123 || msg.Text != "No todo items found" {
		t.Errorf("message = chat %d text %q", msg.ChatID, msg.Text)
	}

	if err := b.Reply(context.Background(), "abc", "x"); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Reply(bad chat) err = %v, want ErrInvalidInput", err)
	}
}

func TestSendChecklist(t *testing.T) {
	f := &fakeSender{}
	b := newBot(f, 0, nil)
	items := []checklist.Item{{Text: "Buy milk", Completed: true}, {Text: "Buy eggs"}}

	replyID, err := b.SendChecklist(context.Background(), "123", "101", items)
	if err != nil {
		t.Fatalf("SendChecklist failed: %v", err)
	}
	if replyID != "701" {
		t.Errorf("replyID = %q, want 701", replyID)
	}

	msg := f.sent[0].(tgbotapi.MessageConfig)
	if msg.ReplyToMessageID != 101 {
		t.Errorf("ReplyToMessageID = %d, want 101", msg.ReplyToMessageID)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("ReplyMarkup is %T", msg.ReplyMarkup)
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("keyboard has %d rows, want 2", len(kb.InlineKeyboard))
	}
	first := kb.InlineKeyboard[0][0]
	if first.Text != "✅ Buy milk" || first.CallbackData == nil || *first.CallbackData != "0" {
		t.Errorf("first button = %q / %v", first.Text, first.CallbackData)
	}
	second := kb.InlineKeyboard[1][0]
	if second.Text != "⬜ Buy eggs" || *second.CallbackData != "1" {
		t.Errorf("second button = %q / %v", second.Text, *second.CallbackData)
	}
}

func TestUpdateChecklistAndAnswer(t *testing.T) {
	f := &fakeSender{}
	b := newBot(f, 0, nil)
	ctx := context.Background()

	if err := b.UpdateChecklist(ctx, "123", "701", []checklist.Item{{Text: "a", Completed: true}}); err != nil {
		t.Fatalf("UpdateChecklist failed: %v", err)
	}
	edit, ok := f.sent[0].(tgbotapi.EditMessageReplyMarkupConfig)
	if !ok {
		t.Fatalf("sent %T, want EditMessageReplyMarkupConfig", f.sent[0])
	}
	if edit.ChatID != 123 || edit.MessageID != 701 {
		t.Errorf("edit target = %d/%d", edit.ChatID, edit.MessageID)
	}

	if err := b.AnswerCallback(ctx, "cb-1", "gone"); err != nil {
		t.Fatalf("AnswerCallback failed: %v", err)
	}
	if len(f.answered) != 1 || f.answered[0].CallbackQueryID != "cb-1" || f.answered[0].Text != "gone" {
		t.Errorf("answered = %+v", f.answered)
	}
}

func TestSendFailure(t *testing.T) {
	sendErr := errors.New("network down")
	b := newBot(&fakeSender{err: sendErr}, 0, nil)

	if err := b.Reply(context.Background(), "1", "x"); !errors.Is(err, sendErr) {
		t.Errorf("Reply err = %v, want %v", err, sendErr)
	}
	if _, err := b.SendChecklist(context.Background(), "1", "2", nil); !errors.Is(err, sendErr) {
		t.Errorf("SendChecklist err = %v, want %v", err, sendErr)
	}
}

func TestDispatch(t *testing.T) {
	b := newBot(&fakeSender{}, 0, nil)
	h := &recordingHandler{err: errors.New("boom")}
	chat := &tgbotapi.Chat{ID: 5}

	b.dispatch(context.Background(), h, tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{MessageID: 1, Chat: chat, Text: "a"}})
	b.dispatch(context.Background(), h, tgbotapi.Update{UpdateID: 2})
	b.dispatch(context.Background(), h, tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{MessageID: 2, Chat: chat, Text: "b"}})

	if len(h.got) != 2 {
		t.Fatalf("handled %d updates, want 2", len(h.got))
	}
	if h.got[0].Text != "a" || h.got[1].Text != "b" {
		t.Errorf("updates handled out of order: %+v", h.got)
	}
}

func TestRunRequiresConnection(t *testing.T) {
	b := newBot(&fakeSender{}, 0, nil)
	if err := b.Run(context.Background(), &recordingHandler{}); err == nil {
		t.Error("Run without API succeeded")
	}
}

// apiTransport answers Bot API calls without a network round trip.
type apiTransport struct {
	polls atomic.Int64
}

func (a *apiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := `{"ok":true,"result":{"id":1,"first_name":"tobedo","username":"tobedo_bot"}}`
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		a.polls.Add(1)
		time.Sleep(5 * time.Millisecond)
		body = `{"ok":true,"result":[]}`
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func TestRunStopsPollingOnCancel(t *testing.T) {
	transport := &apiTransport{}
	api, err := tgbotapi.NewBotAPIWithClient("test-token", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("NewBotAPIWithClient failed: %v", err)
	}
	b := newBot(api, 0, nil)
	b.api = api

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx, &recordingHandler{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One request may still be in flight when Run returns.
	time.Sleep(50 * time.Millisecond)
	settled := transport.polls.Load()
	time.Sleep(200 * time.Millisecond)
	if got := transport.polls.Load(); got != settled {
		t.Errorf("polling continued after Run returned: %d -> %d requests", settled, got)
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("New err = %v, want ErrInvalidConfig", err)
	}
}
