// ABOUTME: Keyword-based intent classifier, the always-available last detector
// ABOUTME: Matches normalized Portuguese phrases against per-intent keyword sets

package nlp

import (
	"context"
	"strings"
)

// keywordRules map intents to trigger substrings. Input is expected to be
// pre-normalized (lowercase, no accents).
var keywordRules = []struct {
	intent   string
	keywords []string
}{
	{IntentProductIssue, []string{"defeito", "quebrado", "nao funciona", "problema com", "estragado", "veio errado", "troca", "devolver", "devolucao"}},
	{IntentInvoice, []string{"nota fiscal", "nf-e", "nfe", "danfe", "segunda via da nota"}},
	{IntentPurchase, []string{"comprar", "quero adquirir", "fazer pedido", "encomendar", "orcamento", "preco de", "quanto custa"}},
	{IntentHuman, []string{"atendente", "falar com alguem", "pessoa de verdade", "humano", "suporte"}},
	{IntentFAQHours, []string{"horario", "que horas", "abre", "fecha", "funcionamento"}},
	{IntentFAQAddress, []string{"endereco", "onde fica", "localizacao", "como chegar"}},
	{IntentFAQPayment, []string{"pagamento", "pix", "cartao", "parcel", "boleto"}},
	{IntentFAQDelivery, []string{"entrega", "frete", "prazo", "envio", "sedex"}},
	{IntentFAQExchange, []string{"politica de troca", "garantia", "reembolso"}},
	{IntentEnd, []string{"encerrar", "tchau", "obrigado", "obrigada", "era so isso", "finalizar"}},
}

// KeywordClassifier detects intents with substring matching. It never fails,
// so a chain ending with it always produces a definitive answer.
type KeywordClassifier struct{}

func (KeywordClassifier) DetectIntent(_ context.Context, text string, _ []string) (string, error) {
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.intent, nil
			}
		}
	}
	return "", ErrNoIntent
}
