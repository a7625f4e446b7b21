// ABOUTME: Multi-item cart flow: add, remove and edit products before checkout
// ABOUTME: Global cart commands (cancelar, finalizar, ver carrinho) work from any cart step

package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

func cartMenuButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "Adicionar produto"},
		{ID: "2", Text: "Remover produto"},
		{ID: "3", Text: "Editar quantidade"},
		{ID: "4", Text: "Finalizar pedido"},
	}
}

// formatCart renders the current cart as a numbered list.
func formatCart(cart *store.CartData) string {
	if cart == nil || len(cart.Items) == 0 {
		return "🛒 Seu carrinho está vazio."
	}
	var b strings.Builder
	b.WriteString("*🛒 Seu Carrinho:*\n")
	for i, item := range cart.Items {
		fmt.Fprintf(&b, "*%d*. %s — %d un.\n", i+1, item.Name, item.Quantity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func cartMenuResult(cart *store.CartData) Result {
	return Result{
		Response: formatCart(cart) + "\n\nO que deseja fazer?",
		Next:     StepCartMenu,
		Buttons:  cartMenuButtons(),
	}
}

func (e *Engine) handleCart(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Cart == nil {
		st.Data.Cart = &store.CartData{}
	}
	cart := st.Data.Cart
	normalized := Normalize(msg.Body)

	// Cart-wide commands take precedence over the per-step prompts.
	switch normalized {
	case "cancelar":
		st.Data.Cart = nil
		return mainMenuResult(st.Data.FirstName), nil
	case "ver carrinho":
		return cartMenuResult(cart), nil
	case "finalizar":
		if len(cart.Items) == 0 {
			return Result{
				Response: "⚠️ Seu carrinho está vazio. Digite o nome de um produto para adicionar:",
				Next:     StepCartAddProduct,
			}, nil
		}
		return Result{
			Response: formatCart(cart) + "\n\nPara finalizar, informe seu *nome completo*:",
			Next:     StepCartBuyerName,
		}, nil
	}

	switch Step(st.Step) {
	case StepCartStart:
		return Result{
			Response: "🛒 *Pedido com múltiplos produtos*\n\nDigite o nome do primeiro produto que deseja adicionar.\n\nA qualquer momento você pode digitar:\n• *ver carrinho* — listar os itens\n• *finalizar* — concluir o pedido\n• *cancelar* — voltar ao menu",
			Next:     StepCartAddProduct,
		}, nil

	case StepCartAddProduct, StepCartAskName:
		name := strings.TrimSpace(msg.Body)
		if len(name) < 2 {
			return Result{
				Response: "⚠️ Nome muito curto. Digite o nome do produto:",
				Next:     StepCartAddProduct,
			}, nil
		}
		cart.DraftProduct = name
		return Result{
			Response: fmt.Sprintf("📦 *%s*\n\nQuantas unidades?", name),
			Next:     StepCartAskQty,
		}, nil

	case StepCartAskQty:
		qty, err := strconv.Atoi(strings.TrimSpace(msg.Body))
		if err != nil || qty < 1 {
			return Result{
				Response: "⚠️ Quantidade inválida. Digite um número inteiro maior que zero:",
				Next:     StepCartAskQty,
			}, nil
		}
		cart.Items = append(cart.Items, store.CartItem{
			Name:     cart.DraftProduct,
			Quantity: qty,
			AddedAt:  time.Now().UTC(),
		})
		cart.DraftProduct = ""
		return Result{
			Response: fmt.Sprintf("✅ Adicionado!\n\n%s\n\nDeseja adicionar outro produto? Digite o nome, ou *finalizar* para concluir.", formatCart(cart)),
			Next:     StepCartAddProduct,
		}, nil

	case StepCartMenu:
		switch normalized {
		case "1", "adicionar":
			return Result{
				Response: "Digite o nome do produto que deseja adicionar:",
				Next:     StepCartAddProduct,
			}, nil
		case "2", "remover":
			if len(cart.Items) == 0 {
				return cartMenuResult(cart), nil
			}
			return Result{
				Response: formatCart(cart) + "\n\nDigite o *número* do item que deseja remover:",
				Next:     StepCartRemove,
			}, nil
		case "3", "editar":
			if len(cart.Items) == 0 {
				return cartMenuResult(cart), nil
			}
			return Result{
				Response: formatCart(cart) + "\n\nDigite o *número* do item cuja quantidade deseja alterar:",
				Next:     StepCartEdit,
			}, nil
		case "4":
			if len(cart.Items) == 0 {
				return Result{
					Response: "⚠️ Seu carrinho está vazio. Digite o nome de um produto para adicionar:",
					Next:     StepCartAddProduct,
				}, nil
			}
			return Result{
				Response: formatCart(cart) + "\n\nPara finalizar, informe seu *nome completo*:",
				Next:     StepCartBuyerName,
			}, nil
		}
		return cartMenuResult(cart), nil

	case StepCartRemove:
		idx, ok := cartIndex(msg.Body, len(cart.Items))
		if !ok {
			return Result{
				Response: fmt.Sprintf("⚠️ Número inválido. Digite um número entre 1 e %d:", len(cart.Items)),
				Next:     StepCartRemove,
			}, nil
		}
		removed := cart.Items[idx]
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return Result{
			Response: fmt.Sprintf("🗑️ *%s* removido.\n\n%s\n\nO que deseja fazer?", removed.Name, formatCart(cart)),
			Next:     StepCartMenu,
			Buttons:  cartMenuButtons(),
		}, nil

	case StepCartEdit:
		idx, ok := cartIndex(msg.Body, len(cart.Items))
		if !ok {
			return Result{
				Response: fmt.Sprintf("⚠️ Número inválido. Digite um número entre 1 e %d:", len(cart.Items)),
				Next:     StepCartEdit,
			}, nil
		}
		cart.EditIndex = idx
		return Result{
			Response: fmt.Sprintf("📦 *%s* (atualmente %d un.)\n\nNova quantidade?", cart.Items[idx].Name, cart.Items[idx].Quantity),
			Next:     StepCartEditQty,
		}, nil

	case StepCartEditQty:
		qty, err := strconv.Atoi(strings.TrimSpace(msg.Body))
		if err != nil || qty < 1 {
			return Result{
				Response: "⚠️ Quantidade inválida. Digite um número inteiro maior que zero:",
				Next:     StepCartEditQty,
			}, nil
		}
		if cart.EditIndex >= 0 && cart.EditIndex < len(cart.Items) {
			cart.Items[cart.EditIndex].Quantity = qty
		}
		return Result{
			Response: formatCart(cart) + "\n\nO que deseja fazer?",
			Next:     StepCartMenu,
			Buttons:  cartMenuButtons(),
		}, nil

	case StepCartBuyerName:
		name := strings.TrimSpace(msg.Body)
		if len(strings.Fields(name)) < 2 {
			return Result{
				Response: "⚠️ Por favor, informe seu *nome completo* (nome e sobrenome):",
				Next:     StepCartBuyerName,
			}, nil
		}
		cart.CustomerName = name
		return Result{
			Response: "📍 Agora informe seu *endereço completo* com CEP:",
			Next:     StepCartAddress,
		}, nil

	case StepCartAddress:
		address := strings.TrimSpace(msg.Body)
		if len(address) < 8 {
			return Result{
				Response: "⚠️ Endereço inválido. Por favor, informe seu endereço completo com CEP.",
				Next:     StepCartAddress,
			}, nil
		}
		cart.Address = address
		return e.finishCartOrder(ctx, msg, st)
	}

	return cartMenuResult(cart), nil
}

func (e *Engine) finishCartOrder(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	pos, evs, err := e.enqueueForHuman(ctx, msg, st)
	if err != nil {
		return Result{}, fmt.Errorf("queueing cart order: %w", err)
	}
	cart := st.Data.Cart
	summary := fmt.Sprintf("🛒 *Novo Pedido (carrinho)*\n\n👤 Cliente: %s (%s)\n📍 Endereço: %s\n\n%s",
		cart.CustomerName, msg.From, cart.Address, formatCart(cart))

	st.Data.QueuePosition = pos
	e.logger.Info("cart order completed", "user", msg.From, "items", len(cart.Items))
	return Result{
		Response: fmt.Sprintf("✅ *Pedido registrado!*\n\n%s\n\nPosição na fila: *%d*\n⏳ Tempo estimado: %s\n\nUm atendente confirmará o pagamento e a entrega em breve.",
			formatCart(cart), pos, e.waitEstimate(pos)),
		Next:               StepTransferToHuman,
		ForwardToOperators: summary,
		Events:             evs,
	}, nil
}

func cartIndex(body string, size int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil || n < 1 || n > size {
		return 0, false
	}
	return n - 1, true
}
