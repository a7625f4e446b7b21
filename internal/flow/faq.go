// ABOUTME: FAQ submenu: seven canned answers built from business config
// ABOUTME: Accepts numeric shortcuts and keyword synonyms, with a menu escape

package flow

import (
	"context"

	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// faqKeywords maps normalized input to the numeric FAQ option.
var faqKeywords = map[string]string{
	"1": "1", "horario": "1", "horarios": "1", "dias": "1", "funcionamento": "1",
	"2": "2", "onde": "2", "endereco": "2", "localizacao": "2", "loja": "2",
	"3": "3", "forma": "3", "formas": "3", "pagamento": "3", "pagamentos": "3",
	"4": "4", "entrega": "4", "entregas": "4", "prazo": "4", "prazos": "4",
	"5": "5", "troca": "5", "trocas": "5", "devolucao": "5", "devolucoes": "5",
	"6": "6", "outros": "6", "assuntos": "6", "outros assuntos": "6",
	"7": "7", "encerrar": "7", "fim": "7", "sair": "7",
}

func faqMenuResult() Result {
	return Result{
		Response: "❓ *Dúvidas Frequentes*\n\nComo posso te ajudar? Escolha uma opção:",
		Next:     StepFAQMenu,
		Buttons: []transport.Button{
			{ID: "1", Text: "🕒 Horário e dias de funcionamento"},
			{ID: "2", Text: "📍 Onde fica a loja?"},
			{ID: "3", Text: "💳 Formas de pagamento"},
			{ID: "4", Text: "🚚 Entregas e prazos"},
			{ID: "5", Text: "🔄 Trocas e devoluções"},
			{ID: "6", Text: "📞 Outros assuntos"},
			{ID: "7", Text: "Encerrar conversa"},
		},
	}
}

func postAnswerButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "Sim, tenho outra dúvida"},
		{ID: "2", Text: "Não, obrigado(a)"},
	}
}

// faqAnswer wraps a canned answer with the "anything else" follow-up.
func faqAnswer(body string) Result {
	return Result{
		Response: body + "\n\n✨ Posso ajudar com mais alguma coisa?",
		Next:     StepFAQPostAnswer,
		Buttons:  postAnswerButtons(),
	}
}

func (e *Engine) handleFAQMenu(_ context.Context, msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	if normalized == "menu" || normalized == "voltar" {
		return mainMenuResult(st.Data.FirstName), nil
	}

	option, ok := faqKeywords[normalized]
	if !ok {
		option = faqKeywords[firstWord(normalized)]
	}

	switch option {
	case "1":
		return faqAnswer("🕒 *Horário e Dias de Funcionamento*\n\n" + e.cfg.BusinessHours + "\n" + e.cfg.BusinessDays), nil
	case "2":
		body := "🏪 *Endereço da Loja*\n\n" + e.cfg.StoreAddress
		if e.cfg.StoreLatitude != "" && e.cfg.StoreLongitude != "" {
			body += "\n\n📍 Localização: https://www.google.com/maps/search/?api=1&query=" + e.cfg.StoreLatitude + "," + e.cfg.StoreLongitude
		}
		return faqAnswer(body), nil
	case "3":
		return faqAnswer("💳 *Formas de Pagamento*\n\n• *Presencial:* " + e.cfg.PaymentInPerson + "\n• *Online:* " + e.cfg.PaymentOnline), nil
	case "4":
		return faqAnswer("🚚 *Entregas e Prazos*\n\n" + e.cfg.DeliveryInfo), nil
	case "5":
		return faqAnswer("🔄 *Trocas e Devoluções*\n\n" + e.cfg.ExchangePolicy), nil
	case "6":
		return faqAnswer("📞 *Outros Assuntos*\n\nEntre em contato conosco:\n" + e.cfg.ContactInfo), nil
	case "7":
		return goodbye(), nil
	}

	return Result{
		Response: "❓ Opção inválida. Por favor, escolha uma das dúvidas do menu (1-7) ou digite *menu* para voltar ao menu principal.",
		Next:     StepFAQMenu,
	}, nil
}

func (e *Engine) handleFAQPostAnswer(_ context.Context, msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	if isYes(normalized) {
		return mainMenuResult(st.Data.FirstName), nil
	}
	if isNo(normalized) {
		return goodbye(), nil
	}
	return Result{
		Response: "⚠️ Por favor, responda com:\n\n*1* - Se deseja mais alguma coisa\n*2* - Se não precisa de mais nada\n\nOu use as palavras *sim* ou *não*:",
		Next:     StepFAQPostAnswer,
		Buttons:  postAnswerButtons(),
	}, nil
}
