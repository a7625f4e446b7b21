// ABOUTME: Store interface and data types for atende-gateway persistence
// ABOUTME: Defines ConversationState, typed flow data records and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Mode says who is currently answering a conversation.
type Mode string

const (
	// ModeBot means the state machine produces the replies.
	ModeBot Mode = "bot"
	// ModeHuman means an operator claimed the conversation and the bot stays quiet.
	ModeHuman Mode = "human"
)

// ConversationState is the per-user session record. Exactly one exists per
// WhatsApp number; a missing row is equivalent to a fresh state at the start
// step with empty data.
type ConversationState struct {
	Step            string    `json:"step"`
	Data            StateData `json:"data"`
	Mode            Mode      `json:"mode,omitempty"`
	Attendant       string    `json:"attendant,omitempty"`
	LastInteraction time.Time `json:"lastInteraction"`
}

// StateData carries everything a flow step may have collected so far. Each
// flow family owns its own sub-record; a nil pointer means that family never
// ran for this conversation.
type StateData struct {
	Name            string `json:"name,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	Address         string `json:"address,omitempty"`
	LastBotResponse string `json:"lastBotResponse,omitempty"`
	QueuePosition   int    `json:"queuePosition,omitempty"`
	AudioTranscript string `json:"audioTranscript,omitempty"`

	Purchase     *PurchaseData     `json:"purchase,omitempty"`
	CatalogOrder *CatalogOrderData `json:"catalogOrder,omitempty"`
	Cart         *CartData         `json:"cart,omitempty"`
	Resume       *ResumeData       `json:"resume,omitempty"`
	Issue        *IssueData        `json:"issue,omitempty"`
	Satisfaction *SatisfactionData `json:"satisfaction,omitempty"`
	Metrics      *Metrics          `json:"metrics,omitempty"`
}

// PurchaseData backs both the guided purchase flow and the short
// link-and-photo variant.
type PurchaseData struct {
	City           string    `json:"city,omitempty"`
	ProductName    string    `json:"productName,omitempty"`
	ProductLink    string    `json:"productLink,omitempty"`
	ProductPhoto   string    `json:"productPhoto,omitempty"`
	Quantity       int       `json:"quantity,omitempty"`
	Questions      string    `json:"questions,omitempty"`
	CustomerName   string    `json:"customerName,omitempty"`
	Address        string    `json:"address,omitempty"`
	PaymentMethod  string    `json:"paymentMethod,omitempty"`
	PIXProofSent   bool      `json:"pixProofSent,omitempty"`
	PIXProofSentAt time.Time `json:"pixProofSentAt,omitzero"`
}

// CatalogOrderData backs orders that arrive pre-filled from the web catalog.
type CatalogOrderData struct {
	Payload        string    `json:"payload,omitempty"`
	CustomerName   string    `json:"customerName,omitempty"`
	Address        string    `json:"address,omitempty"`
	PIXProofSent   bool      `json:"pixProofSent,omitempty"`
	PIXProofSentAt time.Time `json:"pixProofSentAt,omitzero"`
}

// CartData is the multi-item shopping cart.
type CartData struct {
	Items        []CartItem `json:"items,omitempty"`
	DraftProduct string     `json:"draftProduct,omitempty"`
	EditIndex    int        `json:"editIndex,omitempty"`
	CustomerName string     `json:"customerName,omitempty"`
	Address      string     `json:"address,omitempty"`
}

// CartItem is one line of the cart.
type CartItem struct {
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt,omitzero"`
}

// ResumeData tracks a job application conversation.
type ResumeData struct {
	Channel  string `json:"channel,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

// IssueData collects the evidence for a product problem report.
type IssueData struct {
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	InvoicePhoto  string `json:"invoicePhoto,omitempty"`
	ProductPhoto  string `json:"productPhoto,omitempty"`
	BoxPhoto      string `json:"boxPhoto,omitempty"`
	LabelPhoto    string `json:"labelPhoto,omitempty"`
	Description   string `json:"description,omitempty"`
	Address       string `json:"address,omitempty"`
}

// SatisfactionData is the post-service rating.
type SatisfactionData struct {
	Rating   int    `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// Metrics tracks per-conversation attendance timings.
type Metrics struct {
	QueueEnteredAt   time.Time `json:"queueEnteredAt,omitzero"`
	HumanChatStartAt time.Time `json:"humanChatStartAt,omitzero"`
	ChatEndedAt      time.Time `json:"chatEndedAt,omitzero"`
	MessagesFromUser int       `json:"messagesFromUser,omitempty"`
	MessagesToUser   int       `json:"messagesToUser,omitempty"`
}

// Fresh returns a brand-new state positioned at the given start step.
func Fresh(startStep string) *ConversationState {
	return &ConversationState{
		Step:            startStep,
		Mode:            ModeBot,
		LastInteraction: time.Now().UTC(),
	}
}

// Store is the persistence interface for conversation state and the
// operator audit trail.
type Store interface {
	// LoadState returns the state for a user, or a fresh state at startStep
	// when the user has never talked to the bot.
	LoadState(ctx context.Context, userID, startStep string) (*ConversationState, error)

	// SaveState persists the state, stamping LastInteraction with now.
	SaveState(ctx context.Context, userID string, state *ConversationState) error

	// TouchState refreshes LastInteraction without changing anything else.
	// It is a no-op for unknown users.
	TouchState(ctx context.Context, userID string) error

	// ListStates returns the IDs of every user with a stored state.
	ListStates(ctx context.Context) ([]string, error)

	// ResetState replaces the state with a fresh one at startStep.
	ResetState(ctx context.Context, userID, startStep string) error

	// DeleteState removes the state entirely. Missing users return ErrNotFound.
	DeleteState(ctx context.Context, userID string) error

	// AppendAudit records an operator action.
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// ListAudit returns the most recent audit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error)

	Close() error
}
