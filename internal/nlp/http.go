// ABOUTME: HTTP-backed intent provider for external classification services
// ABOUTME: Posts the utterance plus history and expects {"intent": "..."} back

package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider calls an external intent-classification endpoint.
type HTTPProvider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint. The name only
// shows up in logs.
func NewHTTPProvider(name, endpoint, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type intentRequest struct {
	Text    string   `json:"text"`
	History []string `json:"history,omitempty"`
}

type intentResponse struct {
	Intent string `json:"intent"`
}

func (p *HTTPProvider) DetectIntent(ctx context.Context, text string, history []string) (string, error) {
	body, err := json.Marshal(intentRequest{Text: text, History: history})
	if err != nil {
		return "", fmt.Errorf("%s: encoding request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: building request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%s returned %d: %s", p.name, resp.StatusCode, string(raw))
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", p.name, err)
	}
	if out.Intent == "" {
		return "", ErrNoIntent
	}
	return out.Intent, nil
}
