// ABOUTME: Linear purchase flow: product, optional store link, optional photo, quantity
// ABOUTME: Ends by queueing the user for an operator to close the sale

package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/inauguralar/atende-gateway/internal/store"
)

func (e *Engine) handlePurchaseSimple(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Purchase == nil {
		st.Data.Purchase = &store.PurchaseData{}
	}
	p := st.Data.Purchase

	switch Step(st.Step) {
	case StepSimpleName:
		name := strings.TrimSpace(msg.Body)
		if len(name) < 2 {
			return Result{
				Response: "⚠️ Por favor, informe o *nome do produto* que deseja comprar:",
				Next:     StepSimpleName,
			}, nil
		}
		p.ProductName = name
		return Result{
			Response: "🔗 Se você tiver o *link do produto* do *Mercado Livre*, envie agora.\n\n🏪 *NOSSA LOJA OFICIAL:*\n" + e.cfg.MercadoLivreURL + "\n\n⚠️ Se não tiver o link, responda *\"não\"* para pular.",
			Next:     StepSimpleLink,
		}, nil

	case StepSimpleLink:
		link := strings.TrimSpace(msg.Body)
		if Normalize(link) == "nao" {
			p.ProductLink = ""
			return Result{
				Response: "📸 Por favor, envie uma *foto do produto* que deseja comprar.\n\nSe não tiver foto, responda \"não\".",
				Next:     StepSimplePhoto,
			}, nil
		}
		if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
			p.ProductLink = link
			return Result{
				Response: "✅ Link recebido!\n\n🔢 Quantas unidades desse produto você deseja comprar?",
				Next:     StepSimpleQty,
			}, nil
		}
		if link != "" {
			return Result{
				Response: "⚠️ O link informado não parece válido. Se não tiver o link, responda \"não\".\n\nSe tiver, envie o link completo (começando com http).",
				Next:     StepSimpleLink,
			}, nil
		}
		return Result{
			Response: "⚠️ Por favor, envie o *link do produto* da nossa loja do Mercado Livre ou responda \"não\" para pular.",
			Next:     StepSimpleLink,
		}, nil

	case StepSimplePhoto:
		switch {
		case msg.HasMedia:
			p.ProductPhoto = "Foto produto compra - " + msg.ID
			return Result{
				Response: "🔢 Quantas unidades desse produto você deseja comprar?",
				Next:     StepSimpleQty,
			}, nil
		case Normalize(msg.Body) == "nao":
			p.ProductPhoto = ""
			return Result{
				Response: "🔢 Quantas unidades desse produto você deseja comprar?",
				Next:     StepSimpleQty,
			}, nil
		}
		return Result{
			Response: "⚠️ Por favor, envie uma *foto do produto* ou responda \"não\" para pular.",
			Next:     StepSimplePhoto,
		}, nil

	case StepSimpleQty:
		qty, err := strconv.Atoi(strings.TrimSpace(msg.Body))
		if err != nil || qty < 1 {
			return Result{
				Response: "⚠️ Por favor, informe a *quantidade* desejada (apenas números):",
				Next:     StepSimpleQty,
			}, nil
		}
		p.Quantity = qty
		return Result{
			Response: "❓ Tem alguma dúvida ou observação sobre o produto?\n\nSe sim, escreva agora. Se não, responda \"não\".",
			Next:     StepSimpleQuestions,
		}, nil

	case StepSimpleQuestions:
		p.Questions = noteOrDefault(msg.Body)

		pos, evs, err := e.enqueueForHuman(ctx, msg, st)
		if err != nil {
			return Result{}, err
		}
		st.Data.QueuePosition = pos

		var b strings.Builder
		b.WriteString("👨‍💼 *Solicitação de Compra enviada!*\n\nVocê foi adicionado à fila de atendimento para finalizar sua compra.\n\n")
		fmt.Fprintf(&b, "📦 Produto: *%s*\n", p.ProductName)
		if p.ProductLink != "" {
			fmt.Fprintf(&b, "🔗 Link: %s\n", p.ProductLink)
		}
		if p.ProductPhoto != "" {
			b.WriteString("📸 Foto enviada\n")
		}
		fmt.Fprintf(&b, "🔢 Quantidade: *%d*\n📝 Observação: %s\n\n", p.Quantity, p.Questions)
		fmt.Fprintf(&b, "⏳ Aguarde, em breve um atendente estará com você!\n\n*Sua posição na fila:* %d", pos)

		return Result{Response: b.String(), Next: StepTransferToHuman, Events: evs}, nil
	}

	return Result{
		Response: "❌ Erro no fluxo de compra. Digite \"menu\" para voltar ao início.",
		Next:     StepStart,
	}, nil
}
