// ABOUTME: Dashboard request handlers: queue management, conversation state,
// ABOUTME: operator claim/release, audit listing and attendance metrics

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/operator"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/store"
)

// QueueEntry is one waiting user in the dashboard queue view.
type QueueEntry struct {
	Position      int    `json:"position"`
	UserID        string `json:"userId"`
	Name          string `json:"name,omitempty"`
	Step          string `json:"step,omitempty"`
	Waiting       string `json:"waiting,omitempty"`
	EstimatedWait string `json:"estimatedWait,omitempty"`
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.queue.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("queue snapshot failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	entries := make([]QueueEntry, 0, len(ids))
	for i, id := range ids {
		entry := QueueEntry{Position: i + 1, UserID: id}
		if wait, ok, err := queue.EstimatedWait(r.Context(), s.queue, id, s.avgHandle); err == nil && ok {
			entry.EstimatedWait = wait.String()
		}
		if st, err := s.sessions.Peek(r.Context(), id); err == nil {
			entry.Name = st.Data.Name
			entry.Step = st.Step
			if m := st.Data.Metrics; m != nil && !m.QueueEnteredAt.IsZero() {
				entry.Waiting = time.Since(m.QueueEnteredAt).Round(time.Second).String()
			}
		}
		entries = append(entries, entry)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"queue": entries})
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	pos, err := s.queue.Position(r.Context(), userID)
	if err != nil {
		s.logger.Error("queue position failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pos == 0 {
		s.writeError(w, http.StatusNotFound, "user not in queue")
		return
	}
	if err := s.queue.Dequeue(r.Context(), userID); err != nil {
		s.logger.Error("dequeue failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if s.broadcaster != nil {
		s.broadcaster.Publish(events.NewQueueLeave(userID, events.ReasonRemoved))
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ConversationSummary is the list view of one conversation.
type ConversationSummary struct {
	UserID          string    `json:"userId"`
	Name            string    `json:"name,omitempty"`
	Step            string    `json:"step"`
	Mode            string    `json:"mode"`
	Attendant       string    `json:"attendant,omitempty"`
	LastInteraction time.Time `json:"lastInteraction"`
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListStates(r.Context())
	if err != nil {
		s.logger.Error("listing conversations failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summaries := make([]ConversationSummary, 0, len(ids))
	for _, id := range ids {
		st, err := s.sessions.Peek(r.Context(), id)
		if err != nil {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			UserID:          id,
			Name:            st.Data.Name,
			Step:            st.Step,
			Mode:            string(st.Mode),
			Attendant:       st.Attendant,
			LastInteraction: st.LastInteraction,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Peek(r.Context(), r.PathValue("user"))
	if err != nil {
		s.logger.Error("loading conversation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleConversationSetStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step string `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Step == "" {
		s.writeError(w, http.StatusBadRequest, "body must be {\"step\": \"...\"}")
		return
	}

	userID := r.PathValue("user")
	var err error
	if req.Step == string(flow.StepStart) {
		// Back to start means a clean slate; stale flow data would confuse
		// the onboarding handler.
		err = s.sessions.Reset(r.Context(), userID)
	} else {
		err = s.sessions.Update(r.Context(), userID, func(st *store.ConversationState) error {
			st.Step = req.Step
			return nil
		})
	}
	if err != nil {
		s.logger.Error("setting step failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	// Forcing a conversation out of the handoff flow also pulls it from the
	// waiting queue.
	if req.Step != string(flow.StepTransferToHuman) {
		if err := s.queue.Dequeue(r.Context(), userID); err != nil {
			s.logger.Warn("dequeue on step override failed", "user", userID, "error", err)
		}
	}
	s.logger.Info("step overridden", "user", userID, "step", req.Step)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "step": req.Step})
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if err := s.store.DeleteState(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("deleting conversation failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := s.queue.Dequeue(r.Context(), userID); err != nil {
		s.logger.Warn("dequeue on delete failed", "user", userID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type attendantRequest struct {
	Attendant string `json:"attendant"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req attendantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Attendant == "" {
		s.writeError(w, http.StatusBadRequest, "body must be {\"attendant\": \"...\"}")
		return
	}

	userID := r.PathValue("user")
	switch err := s.operators.Claim(r.Context(), userID, req.Attendant); {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "claimed", "attendant": req.Attendant})
	case errors.Is(err, operator.ErrClaimedByOther), errors.Is(err, operator.ErrLockBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("claim failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req attendantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Attendant == "" {
		s.writeError(w, http.StatusBadRequest, "body must be {\"attendant\": \"...\"}")
		return
	}

	userID := r.PathValue("user")
	switch err := s.operators.Release(r.Context(), userID, req.Attendant); {
	case err == nil:
		if s.outbound != nil {
			if sendErr := s.outbound.Text(r.Context(), userID, flow.SatisfactionPrompt); sendErr != nil {
				s.logger.Warn("satisfaction prompt failed", "user", userID, "error", sendErr)
			}
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
	case errors.Is(err, operator.ErrNotAttendant):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, operator.ErrNotClaimed):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("release failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.store.ListAudit(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing audit failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

// MetricsResponse aggregates live attendance numbers for the dashboard.
type MetricsResponse struct {
	QueueLength        int            `json:"queueLength"`
	TotalConversations int            `json:"totalConversations"`
	InHumanChat        int            `json:"inHumanChat"`
	ClaimsByAttendant  map[string]int `json:"claimsByAttendant"`
	TotalClaims        int            `json:"totalClaims"`
	TotalReleases      int            `json:"totalReleases"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{ClaimsByAttendant: make(map[string]int)}

	if n, err := s.queue.Len(r.Context()); err == nil {
		resp.QueueLength = n
	}

	ids, err := s.store.ListStates(r.Context())
	if err != nil {
		s.logger.Error("listing conversations failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp.TotalConversations = len(ids)
	for _, id := range ids {
		if st, err := s.sessions.Peek(r.Context(), id); err == nil && st.Mode == store.ModeHuman {
			resp.InHumanChat++
		}
	}

	entries, err := s.store.ListAudit(r.Context(), 1000)
	if err != nil {
		s.logger.Error("listing audit failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	for _, entry := range entries {
		switch entry.Action {
		case store.AuditClaim:
			resp.TotalClaims++
			resp.ClaimsByAttendant[entry.Attendant]++
		case store.AuditRelease:
			resp.TotalReleases++
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// SendRequest is the dashboard "message the customer" body. Attendant is
// optional; when set the event stream attributes the message to them.
type SendRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Attendant string `json:"attendant,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "body must be {\"to\": \"...\", \"message\": \"...\"}")
		return
	}
	if s.outbound == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no outbound transport configured")
		return
	}
	if err := s.outbound.Text(r.Context(), req.To, req.Message); err != nil {
		s.logger.Error("dashboard send failed", "to", req.To, "error", err)
		s.writeError(w, http.StatusBadGateway, "delivery failed")
		return
	}
	// An attended conversation is not idle; keep the reaper away.
	if err := s.store.TouchState(r.Context(), req.To); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("touching conversation failed", "user", req.To, "error", err)
	}
	if s.broadcaster != nil {
		name := events.MessageAdmin
		payload := map[string]any{"chatId": req.To, "text": req.Message}
		if req.Attendant != "" {
			name = events.MessageAttendant
			payload["attendant"] = req.Attendant
		}
		s.broadcaster.Publish(events.New(name, payload))
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
