package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spetr/tobedo/internal/checklist"
)

// consoleMessenger prints replies instead of sending them to a chat.
type consoleMessenger struct {
	w io.Writer
}

func newConsoleMessenger(w io.Writer) *consoleMessenger {
	return &consoleMessenger{w: w}
}

func (m *consoleMessenger) Reply(_ context.Context, _ string, text string) error {
	_, err := fmt.Fprintln(m.w, text)
	return err
}

func (m *consoleMessenger) SendChecklist(_ context.Context, _, replyToID string, items []checklist.Item) (string, error) {
	_, err := fmt.Fprintln(m.w, checklist.Render(items))
	return replyToID, err
}

func (m *consoleMessenger) UpdateChecklist(_ context.Context, _, _ string, items []checklist.Item) error {
	_, err := fmt.Fprintln(m.w, checklist.Render(items))
	return err
}

func (m *consoleMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}
