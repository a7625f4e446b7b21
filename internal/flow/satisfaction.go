// ABOUTME: Post-conversation satisfaction survey: 1-5 rating plus optional comment
// ABOUTME: Ratings land in state metrics so the dashboard can aggregate them

package flow

import (
	"context"
	"strconv"
	"strings"

	"github.com/inauguralar/atende-gateway/internal/store"
)

// SatisfactionPrompt is the rating question sent after a finished conversation.
const SatisfactionPrompt = "⭐ Como você avalia nosso atendimento?\n\nResponda de 1 a 5:\n\n1 - Muito Ruim 😠\n2 - Ruim 🙁\n3 - Regular 😐\n4 - Bom 🙂\n5 - Excelente 😄"

func (e *Engine) handleSatisfaction(_ context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Satisfaction == nil {
		st.Data.Satisfaction = &store.SatisfactionData{}
	}
	sat := st.Data.Satisfaction

	switch Step(st.Step) {
	case StepSatisfactionRating:
		rating, err := strconv.Atoi(strings.TrimSpace(msg.Body))
		if err != nil || rating < 1 || rating > 5 {
			return Result{
				Response: "⚠️ Por favor, responda com um número de 1 a 5.\n\n" + SatisfactionPrompt,
				Next:     StepSatisfactionRating,
			}, nil
		}
		sat.Rating = rating
		e.logger.Info("satisfaction rating received", "user", msg.From, "rating", rating)
		if rating <= 3 {
			return Result{
				Response: "😔 Sentimos muito que sua experiência não foi ideal.\n\nConte-nos o que podemos melhorar (ou digite *pular*):",
				Next:     StepSatisfactionFeedback,
			}, nil
		}
		return Result{
			Response: "🙌 Que ótimo! Se quiser deixar um comentário, escreva agora (ou digite *pular*):",
			Next:     StepSatisfactionFeedback,
		}, nil

	case StepSatisfactionFeedback:
		feedback := strings.TrimSpace(msg.Body)
		if Normalize(feedback) != "pular" && feedback != "" {
			sat.Feedback = feedback
		}
		return Result{
			Response: "💚 Obrigado pela sua avaliação! Ela nos ajuda a melhorar sempre.\n\n✨ Até a próxima! 👋",
			Next:     StepStart,
			Finalize: true,
		}, nil
	}

	return Result{
		Response: SatisfactionPrompt,
		Next:     StepSatisfactionRating,
	}, nil
}
