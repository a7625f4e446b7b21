// ABOUTME: Audit trail types for operator claim/release actions
// ABOUTME: Entries are append-only and queryable newest-first for the dashboard

package store

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies what an operator did to a conversation.
type AuditAction string

const (
	// AuditClaim is recorded when an operator takes over a conversation.
	AuditClaim AuditAction = "assumir"
	// AuditRelease is recorded when an operator hands a conversation back to the bot.
	AuditRelease AuditAction = "encerrar"
)

// AuditEntry is one operator action against a conversation.
type AuditEntry struct {
	ID           string      `json:"id"`
	Action       AuditAction `json:"action"`
	Conversation string      `json:"conversation"`
	Attendant    string      `json:"attendant"`
	Timestamp    time.Time   `json:"timestamp"`
}

// NewAuditEntry fills in the ID and timestamp.
func NewAuditEntry(action AuditAction, conversation, attendant string) *AuditEntry {
	return &AuditEntry{
		ID:           uuid.New().String(),
		Action:       action,
		Conversation: conversation,
		Attendant:    attendant,
		Timestamp:    time.Now().UTC(),
	}
}
