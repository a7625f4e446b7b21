// ABOUTME: Pipeline tests: dedupe, rate limiting, delivery, panic recovery
// ABOUTME: Uses a recording sender so every outbound message can be asserted

package bot

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inauguralar/atende-gateway/internal/dedupe"
	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/lock"
	"github.com/inauguralar/atende-gateway/internal/operator"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

const customer = "5511988887777@c.us"

// recordingSender captures every outbound message keyed by recipient.
type recordingSender struct {
	mu    sync.Mutex
	texts map[string][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{texts: make(map[string][]string)}
}

func (r *recordingSender) record(to, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[to] = append(r.texts[to], text)
}

func (r *recordingSender) SendText(_ context.Context, to, text string) error {
	r.record(to, text)
	return nil
}

func (r *recordingSender) SendButtons(_ context.Context, to, text, _ string, _ []transport.Button) error {
	r.record(to, text)
	return nil
}

func (r *recordingSender) SendList(_ context.Context, to, text, _ string, _ []transport.ListSection) error {
	r.record(to, text)
	return nil
}

func (r *recordingSender) SendImage(_ context.Context, to, file, _ string) error {
	r.record(to, "[image] "+file)
	return nil
}

func (r *recordingSender) sent(to string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts[to]...)
}

type fixture struct {
	processor *Processor
	sessions  *session.Manager
	sender    *recordingSender
	queue     queue.Queue
	backing   store.Store
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	backing := store.NewMemoryStore()
	sessions := session.NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	t.Cleanup(b.Close)

	engine := flow.NewEngine(flow.Config{CompanyName: "Loja Teste", CityAllowed: "São Paulo"}, q, nil, nil, nil, slog.Default())
	ops := operator.NewService(sessions, backing, lock.NewMemoryLocker(0), q, b, slog.Default())

	sender := newRecordingSender()
	dd := dedupe.New(time.Minute, 100)
	t.Cleanup(dd.Close)

	p := NewProcessor(cfg, engine, sessions, dd, transport.NewFallbackSender(sender, slog.Default()), b, ops, slog.Default())
	return &fixture{processor: p, sessions: sessions, sender: sender, queue: q, backing: backing}
}

func inbound(id, body string) flow.Message {
	return flow.Message{ID: id, From: customer, Body: body, Type: "chat"}
}

func TestHandleRunsConversationTurn(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.processor.Handle(t.Context(), inbound("m1", "oi")))

	sent := f.sender.sent(customer)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Nome completo")

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepName), st.Step)
	assert.Equal(t, sent[0], st.Data.LastBotResponse)
}

func TestHandleDropsDuplicates(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.processor.Handle(t.Context(), inbound("same-id", "oi")))
	require.NoError(t, f.processor.Handle(t.Context(), inbound("same-id", "oi")))

	assert.Len(t, f.sender.sent(customer), 1, "redelivery must not produce a second reply")
}

func TestHandleRateLimits(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2, RateWindow: time.Minute})

	require.NoError(t, f.processor.Handle(t.Context(), inbound("m1", "oi")))
	require.NoError(t, f.processor.Handle(t.Context(), inbound("m2", "Maria Silva")))
	require.NoError(t, f.processor.Handle(t.Context(), inbound("m3", "4")))
	require.NoError(t, f.processor.Handle(t.Context(), inbound("m4", "4")))

	sent := f.sender.sent(customer)
	require.Len(t, sent, 3, "over-limit messages are dropped after one warning")
	assert.Equal(t, rateLimitWarning, sent[2])

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepMainMenu), st.Step, "dropped messages must not advance the conversation")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	f := newFixture(t, Config{})
	// A nil queue makes the handoff path panic inside the handler.
	f.processor.engine = flow.NewEngine(flow.Config{}, nil, nil, nil, nil, slog.Default())

	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepMainMenu)
		st.Data.Name = "Maria Silva"
		return nil
	}))

	require.NoError(t, f.processor.Handle(t.Context(), inbound("m1", "atendente")))

	sent := f.sender.sent(customer)
	require.Len(t, sent, 1)
	assert.Equal(t, errorApology, sent[0])

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepMainMenu), st.Step, "state must survive a handler failure")
}

func TestFinalizeResetsAndRequestsFeedback(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.queue.Enqueue(t.Context(), customer))
	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepInHumanChat)
		st.Mode = store.ModeHuman
		st.Data.Name = "Maria Silva"
		return nil
	}))

	require.NoError(t, f.processor.Handle(t.Context(), inbound("m1", "obrigado")))

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepSatisfactionRating), st.Step)
	assert.Empty(t, st.Data.Name, "finalize resets the collected data")

	sent := f.sender.sent(customer)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1], "Como você avalia")
}

func TestOperatorForwarding(t *testing.T) {
	f := newFixture(t, Config{OperatorGroup: "group@g.us"})
	require.NoError(t, f.queue.Enqueue(t.Context(), customer))
	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepInHumanChat)
		st.Mode = store.ModeHuman
		st.Data.Name = "Maria Silva"
		return nil
	}))

	require.NoError(t, f.processor.Handle(t.Context(), inbound("m1", "qual o prazo?")))

	forwarded := f.sender.sent("group@g.us")
	require.Len(t, forwarded, 1)
	assert.Contains(t, forwarded[0], "Maria Silva")
	assert.Contains(t, forwarded[0], "qual o prazo?")
}

func TestOperatorCommandClaim(t *testing.T) {
	const opNumber = "5511900000001@c.us"
	f := newFixture(t, Config{OperatorNumbers: []string{opNumber}})
	require.NoError(t, f.queue.Enqueue(t.Context(), customer))

	cmd := flow.Message{ID: "op1", From: opNumber, Body: "/assumir " + customer, Type: "chat"}
	require.NoError(t, f.processor.Handle(t.Context(), cmd))

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, store.ModeHuman, st.Mode)
	assert.Equal(t, opNumber, st.Attendant)

	replies := f.sender.sent(opNumber)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "assumiu")
}

func TestOperatorCommandRelease(t *testing.T) {
	const opNumber = "5511900000001@c.us"
	f := newFixture(t, Config{OperatorNumbers: []string{opNumber}})
	require.NoError(t, f.processor.Handle(t.Context(), flow.Message{ID: "op1", From: opNumber, Body: "/assumir " + customer, Type: "chat"}))
	require.NoError(t, f.processor.Handle(t.Context(), flow.Message{ID: "op2", From: opNumber, Body: "/encerrar " + customer, Type: "chat"}))

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, store.ModeBot, st.Mode)
	assert.Equal(t, string(flow.StepSatisfactionRating), st.Step)

	customerMsgs := f.sender.sent(customer)
	require.Len(t, customerMsgs, 1)
	assert.Contains(t, customerMsgs[0], "Como você avalia")
}
