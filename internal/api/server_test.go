// ABOUTME: HTTP API tests covering queue, claim/release, webhook and SSE
// ABOUTME: Drives the real route table against in-memory collaborators

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inauguralar/atende-gateway/internal/bot"
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

type nullSender struct {
	mu    sync.Mutex
	texts map[string][]string
}

func (n *nullSender) SendText(_ context.Context, to, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.texts == nil {
		n.texts = make(map[string][]string)
	}
	n.texts[to] = append(n.texts[to], text)
	return nil
}

func (n *nullSender) SendButtons(ctx context.Context, to, text, _ string, _ []transport.Button) error {
	return n.SendText(ctx, to, text)
}

func (n *nullSender) SendList(ctx context.Context, to, text, _ string, _ []transport.ListSection) error {
	return n.SendText(ctx, to, text)
}

func (n *nullSender) SendImage(_ context.Context, _, _, _ string) error { return nil }

func (n *nullSender) sent(to string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts[to]...)
}

type apiFixture struct {
	server   *Server
	handler  http.Handler
	sessions *session.Manager
	queue    queue.Queue
	sender   *nullSender
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	backing := store.NewMemoryStore()
	t.Cleanup(func() { _ = backing.Close() })
	sessions := session.NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	t.Cleanup(b.Close)

	sender := &nullSender{}
	outbound := transport.NewFallbackSender(sender, slog.Default())
	engine := flow.NewEngine(flow.Config{CompanyName: "Loja Teste"}, q, nil, nil, nil, slog.Default())
	ops := operator.NewService(sessions, backing, lock.NewMemoryLocker(0), q, b, slog.Default())
	dd := dedupe.New(time.Minute, 100)
	t.Cleanup(dd.Close)
	processor := bot.NewProcessor(bot.Config{}, engine, sessions, dd, outbound, b, ops, slog.Default())

	srv := NewServer(":0", Deps{
		Sessions:    sessions,
		Store:       backing,
		Queue:       q,
		Operators:   ops,
		Broadcaster: b,
		Processor:   processor,
		Outbound:    outbound,
	}, slog.Default())

	return &apiFixture{server: srv, handler: srv.Routes(), sessions: sessions, queue: q, sender: sender}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedQueued(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepTransferToHuman)
		st.Data.Name = "Ana Souza"
		return nil
	}))
	require.NoError(t, f.queue.Enqueue(t.Context(), customer))
}

func TestQueueListAndRemove(t *testing.T) {
	f := newAPIFixture(t)
	f.seedQueued(t)

	rec := f.do(t, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Queue []QueueEntry `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Queue, 1)
	assert.Equal(t, 1, listed.Queue[0].Position)
	assert.Equal(t, customer, listed.Queue[0].UserID)
	assert.Equal(t, "Ana Souza", listed.Queue[0].Name)
	assert.Equal(t, "3m0s", listed.Queue[0].EstimatedWait, "position 1 waits one average handling time")

	rec = f.do(t, http.MethodDelete, "/api/queue/"+customer, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/queue/"+customer, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimConflictReturns409(t *testing.T) {
	f := newAPIFixture(t)
	f.seedQueued(t)

	rec := f.do(t, http.MethodPost, "/api/conversations/"+customer+"/claim", `{"attendant":"carlos"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/conversations/"+customer+"/claim", `{"attendant":"daniela"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Idempotent re-claim by the owner still succeeds.
	rec = f.do(t, http.MethodPost, "/api/conversations/"+customer+"/claim", `{"attendant":"carlos"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReleaseByWrongAttendantForbidden(t *testing.T) {
	f := newAPIFixture(t)
	f.seedQueued(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/conversations/"+customer+"/claim", `{"attendant":"carlos"}`).Code)

	rec := f.do(t, http.MethodPost, "/api/conversations/"+customer+"/release", `{"attendant":"daniela"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/conversations/"+customer+"/release", `{"attendant":"carlos"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The customer gets the satisfaction survey on release.
	msgs := f.sender.sent(customer)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "Como você avalia")
}

func TestSetStepAndGetConversation(t *testing.T) {
	f := newAPIFixture(t)
	f.seedQueued(t)

	rec := f.do(t, http.MethodPut, "/api/conversations/"+customer+"/step", `{"step":"awaiting_main_option"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/conversations/"+customer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st store.ConversationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "awaiting_main_option", st.Step)
}

func TestMetricsAggregation(t *testing.T) {
	f := newAPIFixture(t)
	f.seedQueued(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/conversations/"+customer+"/claim", `{"attendant":"carlos"}`).Code)

	rec := f.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 1, m.TotalConversations)
	assert.Equal(t, 1, m.InHumanChat)
	assert.Equal(t, 1, m.TotalClaims)
	assert.Equal(t, 1, m.ClaimsByAttendant["carlos"])
	assert.Zero(t, m.QueueLength, "claim dequeues the user")
}

func TestWebhookDrivesConversation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/webhook", `{"event":"onmessage","id":"m1","from":"`+customer+`","body":"oi","type":"chat"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepName), st.Step)

	sent := f.sender.sent(customer)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Nome completo")
}

func TestWebhookButtonReplySelectsMenuOption(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepMainMenu)
		st.Data.Name = "Ana Souza"
		st.Data.FirstName = "Ana"
		return nil
	}))

	rec := f.do(t, http.MethodPost, "/webhook",
		`{"event":"onmessage","id":"b1","from":"`+customer+`","body":"","type":"chat","selectedButtonId":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepPurchaseAskCatalog), st.Step, "button ID must stand in for the empty body")
}

func TestWebhookListReplySelectsMenuOption(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.sessions.Update(t.Context(), customer, func(st *store.ConversationState) error {
		st.Step = string(flow.StepMainMenu)
		st.Data.Name = "Ana Souza"
		st.Data.FirstName = "Ana"
		return nil
	}))

	rec := f.do(t, http.MethodPost, "/webhook",
		`{"event":"onmessage","id":"l1","from":"`+customer+`","body":"","type":"list_response","listResponse":{"singleSelectReply":{"selectedRowId":"4"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	st, err := f.sessions.Peek(t.Context(), customer)
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepFAQMenu), st.Step)
}

func TestWebhookIgnoresGroupsAndEchoes(t *testing.T) {
	f := newAPIFixture(t)

	for _, body := range []string{
		`{"event":"onmessage","id":"g1","from":"group@g.us","body":"oi","type":"chat","isGroupMsg":true}`,
		`{"event":"onmessage","id":"e1","from":"` + customer + `","body":"oi","type":"chat","fromMe":true}`,
		`{"event":"onack","id":"a1","from":"` + customer + `"}`,
	} {
		rec := f.do(t, http.MethodPost, "/webhook", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, f.sender.sent(customer))
}

func TestEventStreamDeliversEvents(t *testing.T) {
	f := newAPIFixture(t)

	ctx, cancel := context.WithCancel(t.Context())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.ServeHTTP(rec, req)
	}()

	// Give the handler a moment to subscribe, then publish and close.
	time.Sleep(50 * time.Millisecond)
	f.server.broadcaster.Publish(events.NewQueueJoin(customer, "Ana Souza", 1))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: queue:join")
	assert.Contains(t, body, customer)
}
