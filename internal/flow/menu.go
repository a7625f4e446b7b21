// ABOUTME: Main-menu keyword resolution with NLP fallback for free text
// ABOUTME: Maps numeric shortcuts and synonyms to the logical menu actions

package flow

import (
	"context"
	"errors"

	"github.com/inauguralar/atende-gateway/internal/nlp"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// menu actions resolved from user input
const (
	actionProductIssue = "product_issue"
	actionInvoice      = "invoice"
	actionPurchase     = "purchase"
	actionFAQ          = "faq"
	actionSupport      = "support"
	actionResume       = "curriculo"
	actionEnd          = "end_conversation"
)

// menuKeywords maps normalized input (full text or first word) to an action.
var menuKeywords = map[string]string{
	"1": actionProductIssue, "problema": actionProductIssue, "defeito": actionProductIssue,
	"quebrado": actionProductIssue, "suporte": actionProductIssue,

	"2": actionInvoice, "nota fiscal": actionInvoice, "nota": actionInvoice,
	"fatura": actionInvoice, "nf": actionInvoice,

	"3": actionPurchase, "compra": actionPurchase, "comprar": actionPurchase,
	"fazer uma compra": actionPurchase,

	"4": actionFAQ, "duvida": actionFAQ, "duvidas": actionFAQ, "faq": actionFAQ,
	"pergunta": actionFAQ, "perguntas": actionFAQ,

	"atendente": actionSupport, "humano": actionSupport, "pessoa": actionSupport,
	"falar": actionSupport,

	"5": actionResume, "curriculo": actionResume, "trabalho": actionResume,
	"vaga": actionResume, "emprego": actionResume, "trabalhe": actionResume,
	"enviar curriculo": actionResume,

	"6": actionEnd, "encerrar": actionEnd, "encerrar conversa": actionEnd,
	"fim": actionEnd, "finalizar": actionEnd, "sair": actionEnd,
	"tchau": actionEnd, "obrigado": actionEnd, "obrigada": actionEnd,
}

func mainMenuButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "🛠️ Problema com produto"},
		{ID: "2", Text: "📄 Nota Fiscal"},
		{ID: "3", Text: "💳 Fazer uma compra"},
		{ID: "4", Text: "❓ Dúvidas Frequentes"},
		{ID: "5", Text: "📄 Enviar Currículo"},
		{ID: "6", Text: "Encerrar conversa"},
	}
}

const mainMenuBody = "*1*. 🛠️ Problema com produto\n*2*. 📄 Nota Fiscal\n*3*. 💳 Fazer uma compra\n*4*. ❓ Dúvidas Frequentes\n*5*. 📄 Enviar Currículo\n*6*. Encerrar conversa\n\nResponda com o *número* ou *palavra-chave* da opção desejada."

// mainMenuResult is the canonical "how can we help" reply used by every
// path that returns to the menu.
func mainMenuResult(firstName string) Result {
	greeting := "👋 Olá!"
	if firstName != "" {
		greeting = "👋 Olá, *" + firstName + "*!"
	}
	return Result{
		Response: greeting + "\n\nComo podemos ajudar você hoje?\n\n" + mainMenuBody,
		Next:     StepMainMenu,
		Buttons:  mainMenuButtons(),
	}
}

func (e *Engine) handleMainMenu(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	action, ok := menuKeywords[normalized]
	if !ok {
		action, ok = menuKeywords[firstWord(normalized)]
	}
	if !ok {
		// Free text: let the intent classifier have a shot before
		// re-prompting.
		action = e.classifyMenuIntent(ctx, normalized)
	}

	switch action {
	case actionEnd:
		return goodbye(), nil
	case actionResume:
		return resumeChannelPrompt(st), nil
	case actionPurchase:
		return e.purchaseCatalogPrompt(st), nil
	case actionFAQ:
		return faqMenuResult(), nil
	case actionProductIssue:
		return productIssuePrompt(st), nil
	case actionInvoice:
		return Result{
			Response: "🧾 A funcionalidade de 'Nota Fiscal' está em desenvolvimento. Por favor, escolha outra opção.\n\n*1*. 🛠️ Problema com produto\n*2*. 🧾 Nota Fiscal\n*3*. 💳 Fazer uma compra\n*4*. ❓ Dúvidas Frequentes",
			Next:     StepMainMenu,
		}, nil
	case actionSupport:
		return e.startHumanHandoff(ctx, msg, st)
	}

	return Result{
		Response: "❌ Opção inválida. Por favor, escolha uma das opções do menu:\n\n" + mainMenuBody,
		Next:     StepMainMenu,
		Buttons:  mainMenuButtons(),
	}, nil
}

// classifyMenuIntent maps an NLP intent onto a menu action. Failures and
// misses both come back empty so the caller re-prompts.
func (e *Engine) classifyMenuIntent(ctx context.Context, normalized string) string {
	if e.intents == nil || normalized == "" {
		return ""
	}
	intent, err := e.intents.DetectIntent(ctx, normalized, nil)
	if err != nil {
		if !errors.Is(err, nlp.ErrNoIntent) {
			e.logger.Warn("intent classification failed", "error", err)
		}
		return ""
	}
	switch intent {
	case nlp.IntentProductIssue:
		return actionProductIssue
	case nlp.IntentInvoice:
		return actionInvoice
	case nlp.IntentPurchase:
		return actionPurchase
	case nlp.IntentHuman:
		return actionSupport
	case nlp.IntentEnd:
		return actionEnd
	case nlp.IntentFAQHours, nlp.IntentFAQAddress, nlp.IntentFAQPayment,
		nlp.IntentFAQDelivery, nlp.IntentFAQExchange:
		return actionFAQ
	}
	return ""
}

// startHumanHandoff queues the user and reports their position.
func (e *Engine) startHumanHandoff(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	pos, evs, err := e.enqueueForHuman(ctx, msg, st)
	if err != nil {
		return Result{}, err
	}
	st.Data.QueuePosition = pos
	return Result{
		Response: e.humanHandoffText(pos),
		Next:     StepTransferToHuman,
		Events:   evs,
	}, nil
}
