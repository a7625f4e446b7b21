// ABOUTME: Human-handoff steps: waiting in the queue and chatting with an operator
// ABOUTME: Forwards customer messages to operators and handles the exit keywords

package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/store"
)

// humanHandoffText is the reply shown when the user first joins the queue.
func (e *Engine) humanHandoffText(pos int) string {
	return fmt.Sprintf("👨‍💼 *Solicitação de Atendimento*\n\n"+
		"Você foi adicionado à fila de atendimento.\n\n"+
		"Posição: *%d*\n⏳ Tempo estimado: %s\n\n"+
		"Enquanto aguarda, você pode enviar sua dúvida que ela será encaminhada ao atendente.\n\n"+
		"Se quiser cancelar, digite *sair*.", pos, e.waitEstimate(pos))
}

// chatEndKeywords end an active human conversation from the customer side.
var chatEndKeywords = map[string]bool{
	"sair":     true,
	"encerrar": true,
	"fim":      true,
	"obrigado": true,
	"obrigada": true,
	"tchau":    true,
}

// transferEscapeKeywords abandon the queue before an operator picks up.
var transferEscapeKeywords = map[string]bool{
	"sair":     true,
	"cancelar": true,
	"voltar":   true,
}

func forwardText(name, chatID, body string) string {
	return fmt.Sprintf("💬 *Mensagem de %s* (%s):\n%s", name, chatID, body)
}

func attachmentNotice(name, chatID string) string {
	return fmt.Sprintf("📂 *%s (%s) enviou um anexo.*", name, chatID)
}

// handleHumanTransfer runs while the user waits in the queue. Messages are
// forwarded to the operators so the eventual attendant has context.
func (e *Engine) handleHumanTransfer(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	if transferEscapeKeywords[normalized] {
		if err := e.queue.Dequeue(ctx, msg.From); err != nil {
			return Result{}, fmt.Errorf("leaving queue: %w", err)
		}
		st.Data.QueuePosition = 0
		res := mainMenuResult(st.Data.FirstName)
		res.Response = "✅ Atendimento cancelado.\n\n" + res.Response
		res.Events = append(res.Events, events.NewQueueLeave(msg.From, events.ReasonCancelled))
		return res, nil
	}

	pos, err := e.queue.Position(ctx, msg.From)
	if err != nil {
		return Result{}, fmt.Errorf("checking queue position: %w", err)
	}
	var evs []events.Event
	if pos == 0 {
		// Reaped or removed while in this step: put the user back.
		if pos, evs, err = e.enqueueForHuman(ctx, msg, st); err != nil {
			return Result{}, err
		}
	}
	st.Data.QueuePosition = pos

	name := st.Data.Name
	if name == "" {
		name = msg.From
	}
	forward := forwardText(name, msg.From, msg.Body)
	if msg.HasMedia {
		forward = attachmentNotice(name, msg.From)
	}
	evs = append(evs, events.NewMessageForward(msg.From, forward))

	return Result{
		Response: fmt.Sprintf("✅ Sua mensagem foi encaminhada ao atendente.\n\nPosição na fila: *%d*\n⏳ Tempo estimado: %s\n\nSe quiser cancelar, digite *sair*.",
			pos, e.waitEstimate(pos)),
		Next:               StepTransferToHuman,
		ForwardToOperators: forward,
		Events:             evs,
	}, nil
}

// handleHumanChat runs while an operator owns the conversation. The bot is a
// passthrough: customer messages go to the operators untouched.
func (e *Engine) handleHumanChat(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	if !msg.HasMedia && chatEndKeywords[normalized] {
		if st.Data.Metrics == nil {
			st.Data.Metrics = &store.Metrics{}
		}
		st.Data.Metrics.ChatEndedAt = time.Now().UTC()
		if err := e.queue.Dequeue(ctx, msg.From); err != nil {
			return Result{}, fmt.Errorf("leaving queue: %w", err)
		}
		return Result{
			Response:        "🙏 *Atendimento encerrado.*\n\nObrigado por falar conosco! Se precisar de algo, é só chamar novamente.",
			Next:            StepStart,
			Finalize:        true,
			RequestFeedback: true,
			Events:          []events.Event{events.NewQueueLeave(msg.From, events.ReasonCancelled)},
		}, nil
	}

	if st.Data.Metrics == nil {
		st.Data.Metrics = &store.Metrics{}
	}
	if st.Data.Metrics.HumanChatStartAt.IsZero() {
		st.Data.Metrics.HumanChatStartAt = time.Now().UTC()
	}
	st.Data.Metrics.MessagesFromUser++

	name := st.Data.Name
	if name == "" {
		name = msg.From
	}
	forward := forwardText(name, msg.From, msg.Body)
	if msg.HasMedia {
		forward = attachmentNotice(name, msg.From)
	}

	return Result{
		Response:           "✅ Sua mensagem foi encaminhada ao atendente. Aguarde a resposta.",
		Next:               StepInHumanChat,
		ForwardToOperators: forward,
		Events:             []events.Event{events.NewMessageForward(msg.From, forward)},
	}, nil
}
