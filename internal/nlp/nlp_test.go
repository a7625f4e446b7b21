// ABOUTME: Tests for the intent provider chain and keyword classifier
// ABOUTME: Verifies fall-through on failure and halting on any definitive answer

package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDetector struct {
	intent string
	err    error
	calls  int
}

func (s *scriptedDetector) DetectIntent(context.Context, string, []string) (string, error) {
	s.calls++
	return s.intent, s.err
}

func TestChainFallsThroughOnFailure(t *testing.T) {
	broken := &scriptedDetector{err: errors.New("provider down")}
	working := &scriptedDetector{intent: IntentPurchase}
	c := NewChain(nil, 0, broken, working)

	intent, err := c.DetectIntent(t.Context(), "quero comprar uma furadeira", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentPurchase, intent)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
}

func TestChainStopsOnExplicitMiss(t *testing.T) {
	miss := &scriptedDetector{err: ErrNoIntent}
	never := &scriptedDetector{intent: IntentHuman}
	c := NewChain(nil, 0, miss, never)

	_, err := c.DetectIntent(t.Context(), "blablabla", nil)
	assert.ErrorIs(t, err, ErrNoIntent)
	assert.Zero(t, never.calls, "a definitive miss must not advance the chain")
}

func TestChainAllFail(t *testing.T) {
	a := &scriptedDetector{err: errors.New("down")}
	b := &scriptedDetector{err: errors.New("also down")}
	c := NewChain(nil, 0, a, b)

	_, err := c.DetectIntent(t.Context(), "oi", nil)
	assert.ErrorIs(t, err, ErrNoIntent)
}

func TestKeywordClassifier(t *testing.T) {
	var k KeywordClassifier
	ctx := t.Context()

	cases := map[string]string{
		"meu produto veio com defeito": IntentProductIssue,
		"preciso da nota fiscal":       IntentInvoice,
		"quero comprar um martelo":     IntentPurchase,
		"quero falar com um atendente": IntentHuman,
		"qual o horario de voces":      IntentFAQHours,
		"aceita pagamento no pix":      IntentFAQPayment,
	}
	for text, want := range cases {
		intent, err := k.DetectIntent(ctx, text, nil)
		require.NoError(t, err, text)
		assert.Equal(t, want, intent, text)
	}

	_, err := k.DetectIntent(ctx, "xyzzy", nil)
	assert.ErrorIs(t, err, ErrNoIntent)
}
