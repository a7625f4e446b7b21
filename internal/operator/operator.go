// ABOUTME: Operator claim/release service guarded by a per-conversation lock
// ABOUTME: Every takeover and handback lands in the audit trail and on the dashboard

package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/lock"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
)

var (
	// ErrLockBusy means another operator is mid-claim; retry shortly.
	ErrLockBusy = errors.New("operator: conversation is being claimed, try again")

	// ErrClaimedByOther means the conversation already belongs to a
	// different attendant.
	ErrClaimedByOther = errors.New("operator: conversation claimed by another attendant")

	// ErrNotAttendant means the releasing operator does not own the
	// conversation.
	ErrNotAttendant = errors.New("operator: conversation belongs to another attendant")

	// ErrNotClaimed means release was called on a bot-mode conversation.
	ErrNotClaimed = errors.New("operator: conversation is not claimed")
)

// Service coordinates operators taking over and handing back conversations.
type Service struct {
	sessions    *session.Manager
	store       store.Store
	locker      lock.Locker
	queue       queue.Queue
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

func NewService(sessions *session.Manager, s store.Store, l lock.Locker, q queue.Queue, b *events.Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:    sessions,
		store:       s,
		locker:      l,
		queue:       q,
		broadcaster: b,
		logger:      logger.With("component", "operator"),
	}
}

// Claim marks the conversation as owned by attendant. Re-claiming your own
// conversation succeeds idempotently; claiming someone else's returns
// ErrClaimedByOther. The advisory lock guards the transition itself against
// a simultaneous rival claim or release.
func (s *Service) Claim(ctx context.Context, conversation, attendant string) error {
	ok, err := s.locker.Acquire(ctx, conversation)
	if err != nil {
		return fmt.Errorf("acquiring claim lock: %w", err)
	}
	if !ok {
		return ErrLockBusy
	}
	defer func() {
		if err := s.locker.Release(ctx, conversation); err != nil {
			s.logger.Warn("releasing claim lock failed", "conversation", conversation, "error", err)
		}
	}()

	claimed := false
	err = s.sessions.Update(ctx, conversation, func(st *store.ConversationState) error {
		if st.Mode == store.ModeHuman {
			if st.Attendant == attendant {
				return session.ErrAbort // already ours
			}
			return ErrClaimedByOther
		}
		st.Mode = store.ModeHuman
		st.Attendant = attendant
		st.Step = string(flow.StepInHumanChat)
		claimed = true
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := s.store.AppendAudit(ctx, store.NewAuditEntry(store.AuditClaim, conversation, attendant)); err != nil {
		s.logger.Error("audit append failed", "action", store.AuditClaim, "error", err)
	}
	if err := s.queue.Dequeue(ctx, conversation); err != nil {
		s.logger.Warn("dequeue on claim failed", "conversation", conversation, "error", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.Publish(events.NewQueueLeave(conversation, events.ReasonClaimed))
	}
	s.logger.Info("conversation claimed", "conversation", conversation, "attendant", attendant)
	return nil
}

// Release hands the conversation back to the bot at the satisfaction survey.
// Only the owning attendant may release, and the same advisory lock that
// serializes claims serializes the handback.
func (s *Service) Release(ctx context.Context, conversation, attendant string) error {
	ok, err := s.locker.Acquire(ctx, conversation)
	if err != nil {
		return fmt.Errorf("acquiring claim lock: %w", err)
	}
	if !ok {
		return ErrLockBusy
	}
	defer func() {
		if err := s.locker.Release(ctx, conversation); err != nil {
			s.logger.Warn("releasing claim lock failed", "conversation", conversation, "error", err)
		}
	}()

	released := false
	err = s.sessions.Update(ctx, conversation, func(st *store.ConversationState) error {
		if st.Mode != store.ModeHuman {
			return ErrNotClaimed
		}
		if st.Attendant != attendant {
			return ErrNotAttendant
		}
		st.Mode = store.ModeBot
		st.Attendant = ""
		st.Step = string(flow.StepSatisfactionRating)
		released = true
		return nil
	})
	if err != nil {
		return err
	}
	if !released {
		return nil
	}

	if err := s.store.AppendAudit(ctx, store.NewAuditEntry(store.AuditRelease, conversation, attendant)); err != nil {
		s.logger.Error("audit append failed", "action", store.AuditRelease, "error", err)
	}
	s.logger.Info("conversation released", "conversation", conversation, "attendant", attendant)
	return nil
}
