// ABOUTME: HTTP Sender implementation for a WPPConnect-style provider API
// ABOUTME: Posts JSON to the provider's send endpoints with a bearer token

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender talks to a WPPConnect-compatible REST API.
type HTTPSender struct {
	baseURL string
	session string
	token   string
	client  *http.Client
}

// NewHTTPSender creates a sender for the given provider base URL and session.
func NewHTTPSender(baseURL, session, token string) *HTTPSender {
	return &HTTPSender{
		baseURL: baseURL,
		session: session,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HTTPSender) SendText(ctx context.Context, to, text string) error {
	return h.post(ctx, "send-message", map[string]any{
		"phone":   to,
		"message": text,
	})
}

func (h *HTTPSender) SendButtons(ctx context.Context, to, text, title string, buttons []Button) error {
	payload := make([]map[string]string, len(buttons))
	for i, b := range buttons {
		payload[i] = map[string]string{"id": b.ID, "text": b.Text}
	}
	return h.post(ctx, "send-buttons", map[string]any{
		"phone":   to,
		"message": text,
		"title":   title,
		"buttons": payload,
	})
}

func (h *HTTPSender) SendList(ctx context.Context, to, text, buttonLabel string, sections []ListSection) error {
	secs := make([]map[string]any, len(sections))
	for i, s := range sections {
		rows := make([]map[string]string, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = map[string]string{"rowId": r.ID, "title": r.Title, "description": r.Description}
		}
		secs[i] = map[string]any{"title": s.Title, "rows": rows}
	}
	return h.post(ctx, "send-list-message", map[string]any{
		"phone":       to,
		"description": text,
		"buttonText":  buttonLabel,
		"sections":    secs,
	})
}

func (h *HTTPSender) SendImage(ctx context.Context, to, fileOrURL, caption string) error {
	return h.post(ctx, "send-image", map[string]any{
		"phone":   to,
		"path":    fileOrURL,
		"caption": caption,
	})
}

func (h *HTTPSender) post(ctx context.Context, endpoint string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", endpoint, err)
	}

	url := fmt.Sprintf("%s/api/%s/%s", h.baseURL, h.session, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusNotImplemented {
		// Provider rejects the message shape for this recipient.
		return ErrUnsupported
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, string(raw))
	}
	return nil
}
