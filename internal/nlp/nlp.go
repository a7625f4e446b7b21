// ABOUTME: Intent detection for free-text messages that match no menu option
// ABOUTME: Defines the detector interface, known intents and the provider chain

package nlp

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Intents a detector may return. Empty string means "no opinion".
const (
	IntentPurchase     = "purchase"
	IntentProductIssue = "product_issue"
	IntentInvoice      = "invoice"
	IntentHuman        = "human_support"
	IntentFAQHours     = "faq_hours"
	IntentFAQAddress   = "faq_address"
	IntentFAQPayment   = "faq_payment"
	IntentFAQDelivery  = "faq_delivery"
	IntentFAQExchange  = "faq_exchange"
	IntentEnd          = "end_conversation"
)

// ErrNoIntent is returned when a detector confidently finds nothing.
var ErrNoIntent = errors.New("no intent detected")

// Detector maps a user utterance (plus recent history) to one of the known
// intents.
type Detector interface {
	DetectIntent(ctx context.Context, text string, history []string) (string, error)
}

// defaultProviderTimeout bounds each provider call inside a Chain.
const defaultProviderTimeout = 5 * time.Second

// Chain tries detectors in order. A provider advances the chain only by
// failing or timing out; any successful answer, including "nothing here",
// is final.
type Chain struct {
	detectors []Detector
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain builds a chain over the given detectors, in priority order.
func NewChain(logger *slog.Logger, timeout time.Duration, detectors ...Detector) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Chain{
		detectors: detectors,
		timeout:   timeout,
		logger:    logger.With("component", "nlp"),
	}
}

func (c *Chain) DetectIntent(ctx context.Context, text string, history []string) (string, error) {
	for i, d := range c.detectors {
		provCtx, cancel := context.WithTimeout(ctx, c.timeout)
		intent, err := d.DetectIntent(provCtx, text, history)
		cancel()

		if err == nil {
			return intent, nil
		}
		if errors.Is(err, ErrNoIntent) {
			// An explicit miss is an answer, not a failure.
			return "", ErrNoIntent
		}
		c.logger.Warn("intent provider failed, trying next", "provider", i, "error", err)
	}
	return "", ErrNoIntent
}
