// ABOUTME: Guided purchase flow: catalog branch, city gate, order summary, PIX proof
// ABOUTME: Outside the allowed city the flow redirects to online stores and ends

package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

func catalogChoiceButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "Quero ver o catálogo online"},
		{ID: "2", Text: "Continuar comprando pelo WhatsApp"},
	}
}

// purchaseCatalogPrompt opens the purchase family from the main menu.
func (e *Engine) purchaseCatalogPrompt(st *store.ConversationState) Result {
	if st.Data.Purchase == nil {
		st.Data.Purchase = &store.PurchaseData{}
	}
	return Result{
		Response: "Você já conhece nosso catálogo digital?",
		Next:     StepPurchaseAskCatalog,
		Buttons:  catalogChoiceButtons(),
	}
}

func (e *Engine) handlePurchaseRobust(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Purchase == nil {
		st.Data.Purchase = &store.PurchaseData{}
	}
	p := st.Data.Purchase

	switch Step(st.Step) {
	case StepPurchaseAskCatalog, StepPurchaseChooseChannel:
		answer := strings.ToLower(msg.Body)
		switch {
		case strings.Contains(answer, "catalog"), strings.Contains(answer, "catálogo"),
			strings.Contains(answer, "quero ver"), strings.TrimSpace(answer) == "1":
			return Result{
				Response: "🔗 Acesse nosso catálogo online: " + e.cfg.CatalogURL + "\n\nQuando finalizar o pedido no site, clique em \"Finalizar pelo WhatsApp\" para retornar aqui.\n\nSe preferir, digite *continuar pelo WhatsApp* para comprar por aqui.",
				Next:     StepPurchaseAskCatalog,
				Buttons:  catalogChoiceButtons(),
				SendMedia: &MediaAttachment{
					File:    e.cfg.CatalogCardImage,
					Caption: "🛍️ Veja nosso catálogo digital e descubra ofertas especiais! Qualquer dúvida, estamos aqui para ajudar 😊",
				},
			}, nil
		case strings.Contains(answer, "whatsapp"), strings.Contains(answer, "continuar"),
			strings.TrimSpace(answer) == "2":
			return Result{
				Response: "🏙️ Para continuarmos, me diga de qual cidade você está falando? (Assim garantimos o melhor atendimento para você!)",
				Next:     StepPurchaseAskCity,
			}, nil
		}
		return Result{
			Response: "Você já conhece nosso catálogo digital?",
			Next:     StepPurchaseAskCatalog,
			Buttons:  catalogChoiceButtons(),
		}, nil

	case StepPurchaseAskCity:
		if msg.Type != "chat" || strings.TrimSpace(msg.Body) == "" {
			return Result{
				Response: "🏙️ Por favor, digite o nome da sua cidade para continuar.",
				Next:     StepPurchaseAskCity,
			}, nil
		}
		p.City = strings.TrimSpace(msg.Body)
		if !cityAllowed(msg.Body, e.cfg.CityAllowed) {
			var b strings.Builder
			fmt.Fprintf(&b, "⚠️ A compra pelo WhatsApp é exclusiva para clientes da cidade de %s.\n", e.cfg.CityAllowed)
			if len(e.cfg.OnlineStores) > 0 {
				b.WriteString("\n\n🌐 Compre online em nossas lojas oficiais:\n")
				for i, url := range e.cfg.OnlineStores {
					fmt.Fprintf(&b, "• Loja %d: %s\n", i+1, url)
				}
			}
			b.WriteString("\n📸 Siga nosso Instagram: " + e.cfg.InstagramURL)
			return Result{Response: b.String(), Next: StepStart, Finalize: true}, nil
		}
		return Result{
			Response: "📝 Por favor, envie o *nome do produto* que deseja comprar:",
			Next:     StepPurchaseName,
		}, nil

	case StepPurchaseName:
		name := strings.TrimSpace(msg.Body)
		if len(name) < 2 {
			return Result{
				Response: "⚠️ Por favor, informe o *nome do produto* que deseja comprar:",
				Next:     StepPurchaseName,
			}, nil
		}
		p.ProductName = name
		return Result{
			Response: "🔢 Quantas unidades desse produto você deseja comprar?",
			Next:     StepPurchaseQty,
		}, nil

	case StepPurchaseQty:
		qty, err := strconv.Atoi(strings.TrimSpace(msg.Body))
		if err != nil || qty < 1 {
			return Result{
				Response: "⚠️ Por favor, informe a *quantidade* desejada (apenas números):",
				Next:     StepPurchaseQty,
			}, nil
		}
		p.Quantity = qty
		return Result{
			Response: "❓ Tem alguma dúvida ou observação sobre o produto?\nSe não, responda \"não\".",
			Next:     StepPurchaseQuestions,
		}, nil

	case StepPurchaseQuestions:
		p.Questions = noteOrDefault(msg.Body)
		summary := fmt.Sprintf("*Resumo do seu pedido:*\n• Produto: %s\n• Quantidade: %d\n• Observação: %s",
			p.ProductName, p.Quantity, p.Questions)
		return Result{
			Response: summary + "\n\nEstá tudo certo? (Responda \"sim\" para continuar ou \"não\" para refazer)",
			Next:     StepPurchaseConfirm,
			SendMedia: &MediaAttachment{
				File:    e.cfg.OrderSummaryImage,
				Caption: "📝 Aqui está um resumo visual do seu pedido! Confira se está tudo certinho. Qualquer ajuste, é só avisar 😉",
			},
		}, nil

	case StepPurchaseConfirm:
		if normalized := Normalize(msg.Body); strings.Contains(normalized, "nao") {
			st.Data.Purchase = &store.PurchaseData{City: p.City}
			return Result{
				Response: "🔄 Ok, vamos reiniciar o pedido.\n\nPor favor, envie o *nome do produto* que deseja comprar:",
				Next:     StepPurchaseName,
			}, nil
		}
		return Result{
			Response: "👤 Para finalizar, envie seu *nome completo*:",
			Next:     StepPurchaseBuyerName,
		}, nil

	case StepPurchaseBuyerName:
		name := strings.TrimSpace(msg.Body)
		if len(strings.Fields(name)) < 2 {
			return Result{
				Response: "⚠️ Por favor, informe seu *nome completo* (pelo menos duas palavras):",
				Next:     StepPurchaseBuyerName,
			}, nil
		}
		p.CustomerName = name
		return Result{
			Response: "🏠 Agora, envie seu *endereço completo* com CEP:",
			Next:     StepPurchaseAddress,
		}, nil

	case StepPurchaseAddress:
		address := strings.TrimSpace(msg.Body)
		if len(address) < 8 {
			return Result{
				Response: "⚠️ Endereço inválido. Por favor, envie seu *endereço completo* com CEP:",
				Next:     StepPurchaseAddress,
			}, nil
		}
		p.Address = address
		return Result{
			Response: "🏠 *Endereço confirmado!*\n\n💳 Qual forma de pagamento?\n\n*PIX* ou *Dinheiro*?",
			Next:     StepPurchasePayment,
		}, nil

	case StepPurchasePayment:
		normalized := Normalize(msg.Body)
		switch {
		case strings.Contains(normalized, "pix"):
			p.PaymentMethod = "PIX"
			return Result{
				Response: "🔑 Chave PIX: *" + e.cfg.PIXKey + "*\n\nDeseja já realizar o pagamento agora para agilizar?",
				Next:     StepPurchasePIXWhen,
				Buttons: []transport.Button{
					{ID: "1", Text: "Sim, quero pagar agora"},
					{ID: "2", Text: "Prefiro pagar na hora de receber"},
				},
			}, nil
		case strings.Contains(normalized, "dinheiro"):
			p.PaymentMethod = "Dinheiro"
			return Result{
				Response: "💵 Pagamento em dinheiro será feito na entrega.\n\nSeu pedido foi registrado! Aguarde a confirmação de um atendente.",
				Next:     StepPurchaseNotify,
			}, nil
		}
		return Result{
			Response: "⚠️ Forma de pagamento inválida. Responda *PIX* ou *Dinheiro*.",
			Next:     StepPurchasePayment,
			Buttons: []transport.Button{
				{ID: "1", Text: "PIX"},
				{ID: "2", Text: "Dinheiro"},
			},
		}, nil

	case StepPurchasePIXWhen:
		normalized := Normalize(msg.Body)
		switch {
		case normalized == "1", strings.Contains(normalized, "sim"), strings.Contains(normalized, "agora"),
			strings.Contains(normalized, "comprovante"):
			return Result{
				Response: "Ótimo! Por favor, envie o comprovante do pagamento PIX em imagem para prosseguirmos com a análise e liberação do pedido.",
				Next:     StepPurchasePIXProof,
			}, nil
		case normalized == "2", strings.Contains(normalized, "hora"), strings.Contains(normalized, "receber"),
			strings.Contains(normalized, "entrega"):
			return Result{
				Response: "Sem problemas! Você pode pagar via PIX na hora que receber o produto.\n\nSe quiser agilizar, já deixo aqui a chave PIX: *" + e.cfg.PIXKey + "*\n\nSeu pedido foi registrado e será preparado. Qualquer dúvida, estamos à disposição!",
				Next:     StepPurchaseNotify,
			}, nil
		}
		return Result{
			Response: "Por favor, responda *1* para pagar agora, *2* para pagar na hora de receber, ou envie \"comprovante\" para enviar o comprovante.",
			Next:     StepPurchasePIXWhen,
			Buttons: []transport.Button{
				{ID: "1", Text: "Pagar agora"},
				{ID: "2", Text: "Pagar na entrega"},
			},
		}, nil

	case StepPurchasePIXProof:
		if !msg.HasMedia {
			return Result{
				Response: "⚠️ Por favor, envie o *comprovante do pagamento PIX* como imagem.",
				Next:     StepPurchasePIXProof,
			}, nil
		}
		p.PIXProofSent = true
		p.PIXProofSentAt = time.Now().UTC()
		return Result{
			Response: "🔎 Comprovante analisado! O atendente confirmará em instantes.",
			Next:     StepPurchaseNotify,
		}, nil
	}

	// StepPurchaseNotify (and any stray robust step) closes the order.
	e.logger.Info("order completed",
		"user", msg.From,
		"product", p.ProductName,
		"quantity", p.Quantity,
		"payment", p.PaymentMethod)
	return Result{
		Response: "✅ Seu pedido está em análise com nossa equipe. Assim que o pagamento for validado, você receberá uma confirmação e o envio será iniciado. Se precisar de qualquer coisa, digite \"atendente\". Muito obrigado por comprar conosco! 🙏",
		Next:     StepStart,
		Finalize: true,
		SendMedia: &MediaAttachment{
			File:    e.cfg.OrderConfirmedImage,
			Caption: "🎉 Pedido recebido com sucesso! Agora é só aguardar a confirmação. Obrigado por confiar na " + e.cfg.CompanyName + "! 💙",
		},
		RequestFeedback: true,
		ForwardToOperators: fmt.Sprintf("📨 *Novo pedido registrado*\n\n👤 Cliente: %s\n📱 WhatsApp: %s\n📦 Produto: %s\n🔢 Quantidade: %d\n💳 Pagamento: %s",
			p.CustomerName, msg.From, p.ProductName, p.Quantity, p.PaymentMethod),
	}, nil
}

// noteOrDefault keeps a free-text note unless it is a bare "no".
func noteOrDefault(body string) string {
	note := strings.TrimSpace(body)
	if note == "" || Normalize(note) == "nao" {
		return "Nenhuma dúvida."
	}
	return note
}

// cityAllowed matches the user's city against the configured one. Both
// sides are normalized; containment counts only when the shorter side has
// at least four runes, so "rio" does not unlock "Rio Branco".
func cityAllowed(userCity, allowed string) bool {
	u := normalizeCity(userCity)
	a := normalizeCity(allowed)
	if a == "" || u == a {
		return true
	}
	shorter := u
	if len([]rune(a)) < len([]rune(shorter)) {
		shorter = a
	}
	if len([]rune(shorter)) < 4 {
		return false
	}
	return strings.Contains(u, a) || strings.Contains(a, u)
}

// normalizeCity keeps letters and single spaces only.
func normalizeCity(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
