// ABOUTME: Inbound message pipeline: dedupe, rate limit, engine run, delivery
// ABOUTME: Also intercepts /assumir and /encerrar commands from operator numbers

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/inauguralar/atende-gateway/internal/dedupe"
	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/operator"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// errorApology is sent when a handler fails or panics. The conversation
// state is left untouched so the user can simply try again.
const errorApology = "❌ Ocorreu um erro ao processar sua mensagem. Por favor, tente novamente ou digite \"menu\" para voltar ao início."

// rateLimitWarning is sent once per window when a user floods the bot.
const rateLimitWarning = "⚠️ Você está enviando mensagens muito rápido. Aguarde um momento antes de enviar novamente."

// Config carries the pipeline knobs.
type Config struct {
	// StartStep is where fresh conversations begin.
	StartStep string

	// OperatorNumbers are WhatsApp IDs whose messages are treated as
	// operator commands instead of customer input.
	OperatorNumbers []string

	// OperatorGroup receives forwarded customer messages and order
	// summaries. Empty disables forwarding.
	OperatorGroup string

	RateLimit  int
	RateWindow time.Duration

	// FeedbackDelay is how long after a finished conversation the
	// satisfaction survey goes out.
	FeedbackDelay time.Duration
}

// Processor runs one inbound message through the whole pipeline.
type Processor struct {
	cfg         Config
	engine      *flow.Engine
	sessions    *session.Manager
	dedupe      *dedupe.Cache
	outbound    *transport.FallbackSender
	broadcaster *events.Broadcaster
	operators   *operator.Service
	limiter     *rateLimiter
	logger      *slog.Logger
}

func NewProcessor(cfg Config, engine *flow.Engine, sessions *session.Manager, dd *dedupe.Cache, outbound *transport.FallbackSender, b *events.Broadcaster, ops *operator.Service, logger *slog.Logger) *Processor {
	if cfg.StartStep == "" {
		cfg.StartStep = string(flow.StepStart)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:         cfg,
		engine:      engine,
		sessions:    sessions,
		dedupe:      dd,
		outbound:    outbound,
		broadcaster: b,
		operators:   ops,
		limiter:     newRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:      logger.With("component", "bot"),
	}
}

// Handle processes one inbound message end to end: dedupe, rate limit,
// engine dispatch under the session lock, then reply delivery and event
// publication. Errors that reach the user are converted into an apology.
func (p *Processor) Handle(ctx context.Context, msg flow.Message) error {
	if msg.From == "" {
		return fmt.Errorf("message without sender")
	}
	if p.dedupe != nil && msg.ID != "" && p.dedupe.Seen(msg.ID) {
		p.logger.Debug("duplicate message dropped", "id", msg.ID, "user", msg.From)
		return nil
	}
	if p.isOperator(msg.From) {
		return p.handleOperatorCommand(ctx, msg)
	}
	if !p.limiter.Allow(msg.From) {
		p.logger.Warn("rate limit exceeded, message dropped", "user", msg.From)
		if p.outbound != nil && p.limiter.ShouldWarn(msg.From) {
			if err := p.outbound.Text(ctx, msg.From, rateLimitWarning); err != nil {
				p.logger.Warn("rate limit warning failed", "user", msg.From, "error", err)
			}
		}
		return nil
	}

	var res flow.Result
	err := p.sessions.Update(ctx, msg.From, func(st *store.ConversationState) error {
		var runErr error
		res, runErr = p.runEngine(ctx, msg, st)
		if runErr != nil {
			p.logger.Error("engine failed", "user", msg.From, "step", st.Step, "error", runErr)
			res = flow.Result{Response: errorApology, Next: flow.Step(st.Step)}
			return session.ErrAbort
		}

		if res.Finalize {
			*st = *store.Fresh(p.cfg.StartStep)
			if res.RequestFeedback {
				st.Step = string(flow.StepSatisfactionRating)
			}
			return nil
		}
		st.Step = string(res.Next)
		if res.Response != "" {
			st.Data.LastBotResponse = res.Response
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("processing message from %s: %w", msg.From, err)
	}

	p.deliver(ctx, msg.From, res)
	return nil
}

// runEngine isolates handler panics so one broken step cannot take the
// pipeline down.
func (p *Processor) runEngine(ctx context.Context, msg flow.Message, st *store.ConversationState) (res flow.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic at step %s: %v", st.Step, r)
		}
	}()
	return p.engine.Process(ctx, msg, st)
}

// deliver performs the side effects of a Result: the reply itself, an
// optional image, operator forwarding, dashboard events and the delayed
// satisfaction survey. Failures are logged, never propagated; the state is
// already saved.
func (p *Processor) deliver(ctx context.Context, to string, res flow.Result) {
	if p.outbound == nil {
		return
	}

	if res.Response != "" {
		var err error
		if len(res.Buttons) > 0 {
			err = p.outbound.Buttons(ctx, to, res.Response, "", res.Buttons)
		} else {
			err = p.outbound.Text(ctx, to, res.Response)
		}
		if err != nil {
			p.logger.Error("reply delivery failed", "user", to, "error", err)
		}
	}

	if res.SendMedia != nil && res.SendMedia.File != "" {
		if err := p.outbound.Image(ctx, to, res.SendMedia.File, res.SendMedia.Caption); err != nil {
			p.logger.Warn("media delivery failed", "user", to, "file", res.SendMedia.File, "error", err)
		}
	}

	if res.ForwardToOperators != "" && p.cfg.OperatorGroup != "" {
		if err := p.outbound.Text(ctx, p.cfg.OperatorGroup, res.ForwardToOperators); err != nil {
			p.logger.Error("operator forward failed", "user", to, "error", err)
		}
	}

	if p.broadcaster != nil {
		for _, ev := range res.Events {
			p.broadcaster.Publish(ev)
		}
	}

	if res.RequestFeedback {
		p.scheduleFeedback(ctx, to)
	}
}

// scheduleFeedback sends the satisfaction prompt after the configured delay.
// It survives the webhook request context ending.
func (p *Processor) scheduleFeedback(ctx context.Context, to string) {
	send := func(ctx context.Context) {
		if err := p.outbound.Text(ctx, to, flow.SatisfactionPrompt); err != nil {
			p.logger.Warn("satisfaction prompt failed", "user", to, "error", err)
		}
	}
	if p.cfg.FeedbackDelay <= 0 {
		send(ctx)
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		time.Sleep(p.cfg.FeedbackDelay)
		send(detached)
	}()
}

func (p *Processor) isOperator(from string) bool {
	return slices.Contains(p.cfg.OperatorNumbers, from)
}

// handleOperatorCommand parses /assumir and /encerrar from operator
// numbers. Anything else gets a short usage reply.
func (p *Processor) handleOperatorCommand(ctx context.Context, msg flow.Message) error {
	fields := strings.Fields(strings.TrimSpace(msg.Body))
	if len(fields) != 2 || p.operators == nil {
		p.reply(ctx, msg.From, "Comandos disponíveis:\n/assumir <numero> — assumir a conversa\n/encerrar <numero> — devolver ao bot")
		return nil
	}
	command, target := strings.ToLower(fields[0]), fields[1]

	switch command {
	case "/assumir":
		switch err := p.operators.Claim(ctx, target, msg.From); {
		case err == nil:
			p.reply(ctx, msg.From, fmt.Sprintf("✅ Você assumiu a conversa com %s.", target))
		case isClaimConflict(err):
			p.reply(ctx, msg.From, fmt.Sprintf("⚠️ %s já está em atendimento com outro atendente.", target))
		default:
			p.reply(ctx, msg.From, "❌ Não foi possível assumir a conversa. Tente novamente.")
			return fmt.Errorf("claiming %s: %w", target, err)
		}
	case "/encerrar":
		switch err := p.operators.Release(ctx, target, msg.From); {
		case err == nil:
			p.reply(ctx, msg.From, fmt.Sprintf("✅ Atendimento com %s encerrado. O bot pedirá a avaliação.", target))
			p.reply(ctx, target, flow.SatisfactionPrompt)
		default:
			p.reply(ctx, msg.From, "❌ Não foi possível encerrar: "+err.Error())
		}
	default:
		p.reply(ctx, msg.From, "Comando desconhecido. Use /assumir <numero> ou /encerrar <numero>.")
	}
	return nil
}

func (p *Processor) reply(ctx context.Context, to, text string) {
	if p.outbound == nil {
		return
	}
	if err := p.outbound.Text(ctx, to, text); err != nil {
		p.logger.Warn("operator reply failed", "to", to, "error", err)
	}
}

func isClaimConflict(err error) bool {
	return errors.Is(err, operator.ErrClaimedByOther) || errors.Is(err, operator.ErrLockBusy)
}
