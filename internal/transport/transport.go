// ABOUTME: Outbound messaging abstraction over the WhatsApp provider
// ABOUTME: Defines Sender, rich-message types and the retry/degradation helpers

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrUnsupported signals that a provider cannot render a message shape.
// FallbackSender catches it and degrades to the next simpler format.
var ErrUnsupported = errors.New("message format not supported by provider")

// Button is one reply button on an interactive message.
type Button struct {
	ID   string
	Text string
}

// ListRow is a selectable row inside a list-message section.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under a heading.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Sender delivers outbound messages to a WhatsApp number or group.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, text, title string, buttons []Button) error
	SendList(ctx context.Context, to, text, buttonLabel string, sections []ListSection) error
	SendImage(ctx context.Context, to, fileOrURL, caption string) error
}

// retryAttempts is how many times a send is tried before giving up.
const retryAttempts = 3

// SendWithRetry retries fn with a short linear backoff. ErrUnsupported is
// returned immediately since retrying cannot fix the format.
func SendWithRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil || errors.Is(err, ErrUnsupported) {
			return err
		}
		if attempt < retryAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("send failed after %d attempts: %w", retryAttempts, err)
}

// FallbackSender wraps a Sender and degrades rich messages when the
// provider rejects them: buttons fall back to a list, the list falls back
// to plain enumerated text. Plain text is always the last resort.
type FallbackSender struct {
	sender Sender
	logger *slog.Logger
}

// NewFallbackSender wraps s. Pass nil logger for default.
func NewFallbackSender(s Sender, logger *slog.Logger) *FallbackSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSender{sender: s, logger: logger.With("component", "transport")}
}

// Text sends plain text with retries.
func (f *FallbackSender) Text(ctx context.Context, to, text string) error {
	return SendWithRetry(ctx, func() error {
		return f.sender.SendText(ctx, to, text)
	})
}

// Buttons sends an interactive button message, degrading to a list and then
// to enumerated plain text when the provider refuses the richer shape.
func (f *FallbackSender) Buttons(ctx context.Context, to, text, title string, buttons []Button) error {
	err := SendWithRetry(ctx, func() error {
		return f.sender.SendButtons(ctx, to, text, title, buttons)
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnsupported) {
		f.logger.Warn("button send failed, degrading to list", "to", to, "error", err)
	}

	rows := make([]ListRow, len(buttons))
	for i, b := range buttons {
		rows[i] = ListRow{ID: b.ID, Title: b.Text}
	}
	return f.List(ctx, to, text, "Opções", []ListSection{{Title: title, Rows: rows}})
}

// List sends a list message, degrading to enumerated plain text on failure.
func (f *FallbackSender) List(ctx context.Context, to, text, buttonLabel string, sections []ListSection) error {
	err := SendWithRetry(ctx, func() error {
		return f.sender.SendList(ctx, to, text, buttonLabel, sections)
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnsupported) {
		f.logger.Warn("list send failed, degrading to text", "to", to, "error", err)
	}
	return f.Text(ctx, to, enumerate(text, sections))
}

// Image sends an image with retries.
func (f *FallbackSender) Image(ctx context.Context, to, fileOrURL, caption string) error {
	return SendWithRetry(ctx, func() error {
		return f.sender.SendImage(ctx, to, fileOrURL, caption)
	})
}

// enumerate renders list sections as numbered plain text so the user can
// answer with a digit.
func enumerate(text string, sections []ListSection) string {
	var b strings.Builder
	b.WriteString(text)
	n := 0
	for _, sec := range sections {
		if sec.Title != "" {
			b.WriteString("\n\n*" + sec.Title + "*")
		}
		for _, row := range sec.Rows {
			n++
			b.WriteString(fmt.Sprintf("\n%d - %s", n, row.Title))
			if row.Description != "" {
				b.WriteString(" (" + row.Description + ")")
			}
		}
	}
	return b.String()
}
