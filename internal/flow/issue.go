// ABOUTME: Product-issue report flow collecting invoice, photos, address and description
// ABOUTME: Ends by queueing the user for a specialist with a full evidence summary

package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

const noEvidencePrefix = "Não possui"

func invoiceButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "Enviar foto da nota"},
		{ID: "2", Text: "Não tenho nota"},
	}
}

func productIssuePrompt(st *store.ConversationState) Result {
	st.Data.Issue = &store.IssueData{}
	return Result{
		Response: "📋 *Registro de Problema com Produto*\n\nPara agilizar seu atendimento, por favor envie:\n\n1️⃣ *Nota fiscal ou número do pedido*\n(Você pode enviar uma foto da nota fiscal ou apenas digitar o número).",
		Next:     StepIssueInvoice,
		Buttons:  invoiceButtons(),
	}
}

// deniesHaving matches the many ways users say they no longer have a box,
// label or invoice.
func deniesHaving(normalized string) bool {
	for _, phrase := range []string{"nao tenho", "nao", "joguei fora", "perdi", "nao tem"} {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func wantsMenu(normalized string) bool {
	return normalized == "voltar" || normalized == "menu" || normalized == "sair"
}

func (e *Engine) handleProductIssue(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Issue == nil {
		st.Data.Issue = &store.IssueData{}
	}
	issue := st.Data.Issue
	normalized := Normalize(msg.Body)

	switch Step(st.Step) {
	case StepIssueInvoice:
		if msg.HasMedia {
			issue.InvoicePhoto = "Foto NF - " + msg.ID
			return Result{
				Response: "📸 Foto da nota fiscal recebida! Agora, por favor, envie uma foto do produto com defeito:",
				Next:     StepIssuePhoto,
			}, nil
		}
		number := strings.TrimSpace(msg.Body)
		if number == "" {
			return Result{
				Response: "⚠️ Por favor, envie:\n• Uma foto da nota fiscal, ou\n• Digite o número do pedido/nota fiscal (mínimo 3 caracteres)",
				Next:     StepIssueInvoice,
				Buttons:  invoiceButtons(),
			}, nil
		}
		if len(number) < 3 {
			return Result{
				Response: "⚠️ Número muito curto. Por favor, informe o número completo do pedido/nota fiscal (mínimo 3 caracteres) ou envie uma foto da nota fiscal.",
				Next:     StepIssueInvoice,
				Buttons:  invoiceButtons(),
			}, nil
		}
		issue.InvoiceNumber = number
		return Result{
			Response: "📋 Número do pedido/nota fiscal registrado! Agora, por favor, envie uma foto do produto com defeito:",
			Next:     StepIssuePhoto,
		}, nil

	case StepIssuePhoto:
		if wantsMenu(normalized) {
			return mainMenuResult(st.Data.FirstName), nil
		}
		if !msg.HasMedia {
			return Result{
				Response: "⚠️ Por favor, envie uma foto do produto com defeito ou digite \"voltar\" para retornar ao menu.",
				Next:     StepIssuePhoto,
			}, nil
		}
		issue.ProductPhoto = "Foto produto defeituoso - " + msg.ID
		return Result{
			Response: "📦 Foto do produto recebida! Por favor, envie também uma foto da caixa/embalagem (se ainda tiver). Se não tiver, responda \"não tenho\".",
			Next:     StepIssueBoxPhoto,
		}, nil

	case StepIssueBoxPhoto:
		if wantsMenu(normalized) {
			return mainMenuResult(st.Data.FirstName), nil
		}
		if msg.HasMedia {
			issue.BoxPhoto = "Foto caixa/embalagem - " + msg.ID
			return Result{
				Response: "📦 Foto da caixa recebida! Por favor, envie uma foto da etiqueta de entrega (com QR CODE, se ainda tiver), ou responda \"não tenho\":",
				Next:     StepIssueLabelPhoto,
			}, nil
		}
		if normalized != "" && deniesHaving(normalized) {
			issue.BoxPhoto = noEvidencePrefix + " caixa/embalagem"
			return Result{
				Response: "📝 Entendido! Você não tem mais a caixa/embalagem. Por favor, envie uma foto da etiqueta de entrega (com QR CODE, se ainda tiver), ou responda \"não tenho\":",
				Next:     StepIssueLabelPhoto,
			}, nil
		}
		return Result{
			Response: "⚠️ Por favor:\n• Envie uma foto da caixa/embalagem, ou\n• Responda \"não tenho\" se não possuir\n\nVocê também pode digitar \"voltar\" para retornar ao menu.",
			Next:     StepIssueBoxPhoto,
		}, nil

	case StepIssueLabelPhoto:
		if wantsMenu(normalized) {
			return mainMenuResult(st.Data.FirstName), nil
		}
		if msg.HasMedia {
			issue.LabelPhoto = "Foto etiqueta entrega - " + msg.ID
			return Result{
				Response: "🏷️ Foto da etiqueta recebida! Confirme seu endereço completo para possível troca/devolução:",
				Next:     StepIssueAddress,
			}, nil
		}
		if normalized != "" && deniesHaving(normalized) {
			issue.LabelPhoto = noEvidencePrefix + " etiqueta de entrega"
			return Result{
				Response: "📝 Entendido! Você não tem mais a etiqueta de entrega. Confirme seu endereço completo para possível troca/devolução:",
				Next:     StepIssueAddress,
			}, nil
		}
		return Result{
			Response: "⚠️ Por favor:\n• Envie uma foto da etiqueta de entrega com QR CODE, ou\n• Responda \"não tenho\" se não possuir\n\nVocê também pode digitar \"voltar\" para retornar ao menu.",
			Next:     StepIssueLabelPhoto,
		}, nil

	case StepIssueAddress:
		address := strings.TrimSpace(msg.Body)
		if len(address) < 8 {
			return Result{
				Response: "⚠️ Endereço inválido. Por favor, informe seu endereço completo com CEP.",
				Next:     StepIssueAddress,
			}, nil
		}
		issue.Address = address
		return Result{
			Response: "📍 Endereço confirmado! Por último, descreva brevemente qual é o problema com o produto (ex: chegou quebrado, não funciona, cor errada, etc.):",
			Next:     StepIssueComments,
		}, nil

	case StepIssueComments:
		description := strings.TrimSpace(msg.Body)
		if len(description) < 5 {
			return Result{
				Response: "⚠️ Por favor, descreva qual é o problema com o produto (mínimo 5 caracteres):",
				Next:     StepIssueComments,
			}, nil
		}
		issue.Description = description
		return e.finishProductIssue(ctx, msg, st)
	}

	return productIssuePrompt(st), nil
}

func (e *Engine) finishProductIssue(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	pos, events, err := e.enqueueForHuman(ctx, msg, st)
	if err != nil {
		return Result{}, fmt.Errorf("queueing issue report: %w", err)
	}
	issue := st.Data.Issue
	invoice := issue.InvoiceNumber
	if invoice == "" {
		invoice = issue.InvoicePhoto
	}
	summary := fmt.Sprintf("🔧 *Novo Problema com Produto*\n\n"+
		"👤 Cliente: %s (%s)\n"+
		"📋 Nota fiscal: %s\n"+
		"📦 Caixa: %s\n"+
		"🏷️ Etiqueta: %s\n"+
		"📍 Endereço: %s\n"+
		"📝 Problema: %s",
		st.Data.Name, msg.From, invoice, issue.BoxPhoto, issue.LabelPhoto, issue.Address, issue.Description)

	st.Data.QueuePosition = pos
	return Result{
		Response: fmt.Sprintf("✅ *Registro completo!*\n\n"+
			"Todas as informações foram encaminhadas para nossa equipe técnica.\n\n"+
			"Posição na fila: *%d*\n⏳ Tempo estimado: %s\n\n"+
			"Um atendente entrará em contato em breve. Se quiser cancelar, digite *sair*.", pos, e.waitEstimate(pos)),
		Next:               StepTransferToHuman,
		ForwardToOperators: summary,
		Events:             events,
	}, nil
}
