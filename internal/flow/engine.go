// ABOUTME: Conversation engine: inbound message model, result model and dispatch
// ABOUTME: Handles global interrupts (repeat-last, audio, catalog payload) before step dispatch

package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/media"
	"github.com/inauguralar/atende-gateway/internal/nlp"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// catalogPayloadPrefix marks orders arriving pre-filled from the web catalog.
const catalogPayloadPrefix = "pedido via site:"

// Message is one inbound WhatsApp message, already downloaded and decoded by
// the webhook layer.
type Message struct {
	ID        string
	From      string
	Body      string
	Type      string // "chat", "audio", "image", "document"
	HasMedia  bool
	MediaMIME string
	MediaName string
	MediaData []byte
}

// MediaAttachment is an image the bot wants sent alongside its reply.
type MediaAttachment struct {
	File    string
	Caption string
}

// Result is what a handler decides: the reply, the next step, and side
// effects for the pipeline to perform after the state is saved.
type Result struct {
	Response string
	Buttons  []transport.Button
	Next     Step

	// Finalize tells the caller to reset the conversation to a fresh start
	// state instead of trusting the mutated data.
	Finalize bool

	// SendMedia is an optional image to send after the reply.
	SendMedia *MediaAttachment

	// RequestFeedback asks the pipeline to start the satisfaction survey
	// after the reply is delivered.
	RequestFeedback bool

	// ForwardToOperators is a message to relay to the operators group.
	ForwardToOperators string

	// Events are dashboard notifications to publish after the save.
	Events []events.Event
}

// Config carries the business texts and knobs the handlers interpolate into
// their prompts.
type Config struct {
	CompanyName     string
	BusinessHours   string
	BusinessDays    string
	StoreAddress    string
	StoreLatitude   string
	StoreLongitude  string
	PaymentInPerson string
	PaymentOnline   string
	DeliveryInfo    string
	ExchangePolicy  string
	ContactInfo     string

	CatalogURL      string
	CityAllowed     string
	OnlineStores    []string
	InstagramURL    string
	PIXKey          string
	MercadoLivreURL string

	CatalogCardImage    string
	OrderSummaryImage   string
	OrderConfirmedImage string

	AvgHandleTime time.Duration
}

// Engine dispatches messages to step handlers. It owns no conversation
// state: the caller loads, passes and saves the ConversationState around
// each Process call.
type Engine struct {
	cfg         Config
	queue       queue.Queue
	intents     nlp.Detector
	transcriber Transcriber
	uploads     *media.Store
	logger      *slog.Logger
}

// NewEngine builds an engine. The intent detector may be nil, in which case
// unresolved menu input simply re-prompts. A nil transcriber leaves voice
// notes on the placeholder reply.
func NewEngine(cfg Config, q queue.Queue, intents nlp.Detector, transcriber Transcriber, uploads *media.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AvgHandleTime <= 0 {
		cfg.AvgHandleTime = 3 * time.Minute
	}
	return &Engine{
		cfg:         cfg,
		queue:       q,
		intents:     intents,
		transcriber: transcriber,
		uploads:     uploads,
		logger:      logger.With("component", "flow"),
	}
}

// confusionTerms trigger a replay of the last bot response.
var confusionTerms = map[string]bool{
	"?":                true,
	"nao entendi":      true,
	"nao entendi nada": true,
	"nao entendo":      true,
	"nao entendeu":     true,
}

// Process runs one message through the interrupts and the step handler for
// the current state. It mutates st.Data in place; the caller persists st
// with Step set to Result.Next (or resets it when Finalize is set).
func (e *Engine) Process(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	current := Step(st.Step)
	normalized := Normalize(msg.Body)

	// Replay interrupt: a confused user gets the previous answer again,
	// without moving the machine.
	if (strings.TrimSpace(msg.Body) == "?" || confusionTerms[normalized]) && st.Data.LastBotResponse != "" {
		e.logger.Info("repeating last response", "user", msg.From)
		return Result{Response: st.Data.LastBotResponse, Next: current}, nil
	}

	// Audio interrupt: everywhere except the human passthrough, voice notes
	// go through transcription before normal dispatch.
	if msg.HasMedia && msg.Type == "audio" && current != StepInHumanChat {
		return e.handleAudio(ctx, msg, st)
	}

	// Orders handed over from the web catalog start their own family no
	// matter where the conversation was.
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(msg.Body)), catalogPayloadPrefix) {
		payload := strings.TrimSpace(msg.Body[len(catalogPayloadPrefix):])
		st.Data.CatalogOrder = &store.CatalogOrderData{Payload: payload}
		return Result{
			Response: "🛒 Recebemos seu pedido do site! Para finalizar, por favor informe seu *nome completo*:",
			Next:     StepCatalogName,
		}, nil
	}

	e.logger.Debug("dispatching", "user", msg.From, "step", current)
	return handlerFor(current)(e, ctx, msg, st)
}

// Normalize lowercases, strips accents via NFD decomposition and removes
// everything that is not a letter, digit or space. Keyword matching runs on
// this form so emoji-decorated button titles still resolve.
func Normalize(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining accent marks
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '\n':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// firstWord returns the first space-separated token of a normalized string.
func firstWord(s string) string {
	word, _, _ := strings.Cut(s, " ")
	return word
}

func isYes(normalized string) bool {
	switch normalized {
	case "1", "s", "si", "sim", "sim tenho outra duvida":
		return true
	}
	return false
}

func isNo(normalized string) bool {
	switch normalized {
	case "2", "n", "nao", "nao obrigadoa", "nao obrigado", "nao obrigada":
		return true
	}
	return false
}

// goodbye is the shared end-of-conversation reply.
func goodbye() Result {
	return Result{
		Response: "🙏 *Obrigado por conversar conosco!*\n\nFoi um prazer ajudar você hoje. Se precisar de algo no futuro, estaremos sempre aqui!\n\n✨ Até mais! 👋",
		Next:     StepStart,
		Finalize: true,
	}
}

// enqueueForHuman idempotently places the user in the waiting queue, stamps
// the queue-entry metric and returns the 1-based position plus any events to
// publish.
func (e *Engine) enqueueForHuman(ctx context.Context, msg Message, st *store.ConversationState) (int, []events.Event, error) {
	pos, err := e.queue.Position(ctx, msg.From)
	if err != nil {
		return 0, nil, fmt.Errorf("checking queue position: %w", err)
	}

	var evs []events.Event
	if pos == 0 {
		if err := e.queue.Enqueue(ctx, msg.From); err != nil {
			return 0, nil, fmt.Errorf("joining queue: %w", err)
		}
		if pos, err = e.queue.Position(ctx, msg.From); err != nil {
			return 0, nil, fmt.Errorf("checking queue position: %w", err)
		}
		if st.Data.Metrics == nil {
			st.Data.Metrics = &store.Metrics{}
		}
		if st.Data.Metrics.QueueEnteredAt.IsZero() {
			st.Data.Metrics.QueueEnteredAt = time.Now().UTC()
		}
		name := st.Data.Name
		if name == "" {
			name = st.Data.FirstName
		}
		evs = append(evs, events.NewQueueJoin(msg.From, name, pos))
	}
	return pos, evs, nil
}

// waitEstimate renders the human-friendly wait range for a queue position,
// scaled by the configured average handling time per attendance.
func (e *Engine) waitEstimate(position int) string {
	minutes := int(e.cfg.AvgHandleTime.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if position <= 1 {
		return fmt.Sprintf("%d-%d minutos", minutes-1, minutes+2)
	}
	return fmt.Sprintf("%d-%d minutos", minutes*position, (minutes+2)*position)
}
