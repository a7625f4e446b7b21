// ABOUTME: Tests for retry and graceful degradation of rich messages
// ABOUTME: Uses a scripted fake Sender to observe the fallback chain

package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records calls and fails per-shape as configured.
type fakeSender struct {
	mu          sync.Mutex
	textErr     error
	buttonsErr  error
	listErr     error
	texts       []string
	buttonCalls int
	listCalls   int
}

func (f *fakeSender) SendText(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, _, _, _ string, _ []Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buttonCalls++
	return f.buttonsErr
}

func (f *fakeSender) SendList(_ context.Context, _, _, _ string, _ []ListSection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.listErr
}

func (f *fakeSender) SendImage(_ context.Context, _, _, _ string) error { return nil }

func TestButtonsDegradeToListThenText(t *testing.T) {
	fake := &fakeSender{buttonsErr: ErrUnsupported, listErr: ErrUnsupported}
	fb := NewFallbackSender(fake, nil)

	err := fb.Buttons(t.Context(), "5511999990000", "Escolha:", "Menu", []Button{
		{ID: "1", Text: "Horários"},
		{ID: "2", Text: "Endereço"},
	})
	require.NoError(t, err)

	// Unsupported shapes are not retried.
	assert.Equal(t, 1, fake.buttonCalls)
	assert.Equal(t, 1, fake.listCalls)
	require.Len(t, fake.texts, 1)
	assert.Contains(t, fake.texts[0], "1 - Horários")
	assert.Contains(t, fake.texts[0], "2 - Endereço")
}

func TestButtonsSucceedWithoutFallback(t *testing.T) {
	fake := &fakeSender{}
	fb := NewFallbackSender(fake, nil)

	require.NoError(t, fb.Buttons(t.Context(), "x", "oi", "t", []Button{{ID: "1", Text: "a"}}))
	assert.Equal(t, 1, fake.buttonCalls)
	assert.Zero(t, fake.listCalls)
	assert.Empty(t, fake.texts)
}

func TestSendWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := SendWithRetry(t.Context(), func() error {
		calls++
		return errors.New("provider down")
	})
	require.Error(t, err)
	assert.Equal(t, retryAttempts, calls)
}

func TestSendWithRetryStopsOnUnsupported(t *testing.T) {
	calls := 0
	err := SendWithRetry(t.Context(), func() error {
		calls++
		return ErrUnsupported
	})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, 1, calls)
}
