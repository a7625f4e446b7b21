// ABOUTME: Background reaper expiring conversations idle past the timeout
// ABOUTME: Expired users are reset, pulled from the queue and announced to the dashboard

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

const (
	DefaultReapInterval   = 5 * time.Minute
	DefaultSessionTimeout = 30 * time.Minute
)

// timeoutNotice is sent to the user when their idle session is closed.
const timeoutNotice = "⏰ *Sessão encerrada por inatividade.*\n\nSua conversa foi finalizada automaticamente. Quando quiser falar conosco novamente, é só mandar uma mensagem! 👋"

// Reaper periodically expires sessions whose last interaction is older than
// the timeout.
type Reaper struct {
	manager     *Manager
	queue       queue.Queue
	broadcaster *events.Broadcaster
	sender      transport.Sender
	interval    time.Duration
	timeout     time.Duration
	logger      *slog.Logger
}

// NewReaper builds a reaper. The sender may be nil; timeout notices are then
// skipped. Zero interval or timeout fall back to the defaults.
func NewReaper(m *Manager, q queue.Queue, b *events.Broadcaster, sender transport.Sender, interval, timeout time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		manager:     m,
		queue:       q,
		broadcaster: b,
		sender:      sender,
		interval:    interval,
		timeout:     timeout,
		logger:      logger.With("component", "reaper"),
	}
}

// Run sweeps until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("session reaper started", "interval", r.interval, "timeout", r.timeout)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires every session idle past the timeout. Each user is checked
// and reset under their session lock so an in-flight message cannot race the
// expiry.
func (r *Reaper) Sweep(ctx context.Context) {
	userIDs, err := r.manager.store.ListStates(ctx)
	if err != nil {
		r.logger.Error("listing sessions failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-r.timeout)
	for _, userID := range userIDs {
		// Cheap pre-check outside the expensive reset path. The real decision
		// repeats under the session lock so a message arriving between the
		// peek and the update wins.
		st, err := r.manager.Peek(ctx, userID)
		if err != nil {
			r.logger.Error("loading session failed", "user", userID, "error", err)
			continue
		}
		if st.LastInteraction.After(cutoff) {
			continue
		}

		expired := false
		err = r.manager.Update(ctx, userID, func(st *store.ConversationState) error {
			if st.LastInteraction.After(cutoff) {
				return ErrAbort
			}
			if st.Step == string(flow.StepStart) {
				return ErrAbort // already at the start step, nothing to reclaim
			}
			expired = true
			*st = *store.Fresh(string(flow.StepStart))
			return nil
		})
		if err != nil {
			r.logger.Error("expiring session failed", "user", userID, "error", err)
			continue
		}
		if !expired {
			continue
		}

		r.logger.Info("session expired", "user", userID)
		if err := r.queue.Dequeue(ctx, userID); err != nil {
			r.logger.Warn("dequeue on expiry failed", "user", userID, "error", err)
		}
		if r.broadcaster != nil {
			r.broadcaster.Publish(events.NewQueueLeave(userID, events.ReasonTimeout))
		}
		if r.sender != nil {
			if err := r.sender.SendText(ctx, userID, timeoutNotice); err != nil {
				r.logger.Warn("timeout notice failed", "user", userID, "error", err)
			}
		}
	}
}
