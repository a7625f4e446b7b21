// ABOUTME: Onboarding steps: greeting and full-name capture
// ABOUTME: A valid name needs at least two space-separated words

package flow

import (
	"context"
	"strings"

	"github.com/inauguralar/atende-gateway/internal/store"
)

func (e *Engine) handleStart(_ context.Context, _ Message, st *store.ConversationState) (Result, error) {
	// Whatever the user said, a conversation at start begins with the
	// welcome prompt. Greetings like "oi" restart with clean data.
	st.Data = store.StateData{}
	return Result{
		Response: "🏠 *" + e.cfg.CompanyName + " - Atendimento Especializado* 🏠\n\nOlá! 👋 Seja bem-vindo(a) ao nosso canal de atendimento. Estamos aqui para resolver seu problema com agilidade e qualidade.\n\nPara iniciarmos o atendimento personalizado, por favor informe:\n\n*Nome completo:*",
		Next:     StepName,
	}, nil
}

func (e *Engine) handleName(_ context.Context, msg Message, st *store.ConversationState) (Result, error) {
	full := strings.Join(strings.Fields(msg.Body), " ")
	if len(strings.Fields(full)) < 2 {
		return Result{
			Response: "⚠️ Por favor, informe seu *nome completo* (pelo menos duas palavras) para prosseguirmos.",
			Next:     StepName,
		}, nil
	}

	st.Data.Name = full
	st.Data.FirstName = strings.Fields(full)[0]

	res := mainMenuResult(st.Data.FirstName)
	return res, nil
}
