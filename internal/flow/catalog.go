// ABOUTME: Purchase-via-web-catalog flow for orders prefixed "pedido via site:"
// ABOUTME: Collects name, address and PIX proof for a pre-filled order payload

package flow

import (
	"context"
	"strings"
	"time"

	"github.com/inauguralar/atende-gateway/internal/store"
)

func (e *Engine) handleCatalogOrder(_ context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.CatalogOrder == nil {
		st.Data.CatalogOrder = &store.CatalogOrderData{}
	}
	order := st.Data.CatalogOrder

	switch Step(st.Step) {
	case StepCatalogName:
		name := strings.TrimSpace(msg.Body)
		if len(strings.Fields(name)) < 2 {
			return Result{
				Response: "⚠️ Por favor, informe seu *nome completo* (pelo menos duas palavras):",
				Next:     StepCatalogName,
			}, nil
		}
		order.CustomerName = name
		return Result{
			Response: "🏠 Agora, por favor envie seu *endereço completo* com CEP:",
			Next:     StepCatalogAddress,
		}, nil

	case StepCatalogAddress:
		address := strings.TrimSpace(msg.Body)
		if len(address) < 8 {
			return Result{
				Response: "⚠️ Endereço inválido. Por favor, envie seu *endereço completo* com CEP:",
				Next:     StepCatalogAddress,
			}, nil
		}
		order.Address = address
		return Result{
			Response: "✅ Endereço recebido! Em breve enviaremos as instruções de pagamento PIX.",
			Next:     StepCatalogPIX,
		}, nil

	case StepCatalogPIX:
		return Result{
			Response: "💳 Para finalizar, envie o comprovante do pagamento PIX para esta chave: *" + e.cfg.PIXKey + "*",
			Next:     StepCatalogProof,
		}, nil

	case StepCatalogProof:
		if !msg.HasMedia {
			return Result{
				Response: "⚠️ Por favor, envie o *comprovante do pagamento PIX* como imagem.",
				Next:     StepCatalogProof,
			}, nil
		}
		order.PIXProofSent = true
		order.PIXProofSentAt = time.Now().UTC()
		return Result{
			Response: "🔎 Comprovante recebido! Aguarde a validação. Em breve um atendente irá te chamar. Obrigado pela compra!",
			Next:     StepCatalogDone,
		}, nil

	case StepCatalogDone:
		return Result{
			Response: "✅ Seu pedido está em análise. Assim que o pagamento for validado, você receberá uma confirmação e o envio será iniciado. Se precisar de atendimento, digite \"atendente\".",
			Next:     StepStart,
			Finalize: true,
		}, nil
	}

	return Result{
		Response: "❌ Fluxo de compra via site não reconhecido. Digite \"menu\" para voltar ao início.",
		Next:     StepStart,
	}, nil
}
