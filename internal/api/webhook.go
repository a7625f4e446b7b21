// ABOUTME: Inbound WPPConnect webhook: decodes provider payloads into messages
// ABOUTME: Groups, status broadcasts and non-message events are acknowledged and dropped

package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/inauguralar/atende-gateway/internal/flow"
)

// webhookPayload mirrors the fields we consume from the provider's
// onmessage callback.
type webhookPayload struct {
	Event      string `json:"event"`
	ID         string `json:"id"`
	From       string `json:"from"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	IsGroupMsg bool   `json:"isGroupMsg"`
	IsMedia    bool   `json:"isMedia"`
	MimeType   string `json:"mimetype"`
	Filename   string `json:"filename"`
	MediaData  string `json:"mediaData"` // base64
	FromMe     bool   `json:"fromMe"`

	// Interactive replies. Depending on the provider version the chosen
	// option arrives flat or nested under listResponse.
	SelectedButtonID string        `json:"selectedButtonId"`
	SelectedRowID    string        `json:"selectedRowId"`
	ListResponse     *listResponse `json:"listResponse"`
}

type listResponse struct {
	SingleSelectReply struct {
		SelectedRowID string `json:"selectedRowId"`
	} `json:"singleSelectReply"`
}

// selectedReply returns the option ID of a button or list reply, or "".
func (p *webhookPayload) selectedReply() string {
	switch {
	case p.SelectedButtonID != "":
		return p.SelectedButtonID
	case p.SelectedRowID != "":
		return p.SelectedRowID
	case p.ListResponse != nil:
		return p.ListResponse.SingleSelectReply.SelectedRowID
	}
	return ""
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Only customer messages reach the pipeline. Everything else (acks,
	// group chatter, our own outbound echoes) is acknowledged so the
	// provider stops retrying.
	if payload.Event != "" && payload.Event != "onmessage" {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if payload.FromMe || payload.IsGroupMsg || payload.From == "" || strings.HasSuffix(payload.From, "@broadcast") {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// Button and list replies carry the selection as an ID, not body text.
	// The step handlers match on body, so the selection wins.
	if id := payload.selectedReply(); id != "" {
		payload.Body = id
	}

	msg := flow.Message{
		ID:        payload.ID,
		From:      payload.From,
		Body:      payload.Body,
		Type:      payload.Type,
		HasMedia:  payload.IsMedia || payload.Type == "audio" || payload.Type == "image" || payload.Type == "document",
		MediaMIME: payload.MimeType,
		MediaName: payload.Filename,
	}
	if payload.MediaData != "" {
		data, err := base64.StdEncoding.DecodeString(payload.MediaData)
		if err != nil {
			s.logger.Warn("media payload not decodable", "id", payload.ID, "error", err)
		} else {
			msg.MediaData = data
		}
	}

	if err := s.processor.Handle(r.Context(), msg); err != nil {
		s.logger.Error("message processing failed", "id", payload.ID, "user", payload.From, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
