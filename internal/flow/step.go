// ABOUTME: Step enum and the step-to-handler dispatch table
// ABOUTME: Unknown steps route to the start handler as the corrupted-state recovery path

package flow

import (
	"context"

	"github.com/inauguralar/atende-gateway/internal/store"
)

// Step identifies one state of the conversation machine. Steps are grouped
// into disjoint families; no family transitions into another family's
// interior, only into StepStart or StepMainMenu.
type Step string

const (
	StepStart    Step = "start"
	StepName     Step = "awaiting_name"
	StepMainMenu Step = "awaiting_main_option"

	StepFAQMenu       Step = "faq_menu"
	StepFAQPostAnswer Step = "faq_post_answer"

	StepResumeChannel      Step = "curriculo_ask_channel"
	StepResumeChannelOther Step = "curriculo_ask_channel_outro"
	StepResumeFile         Step = "awaiting_curriculo_pdf_file"
	StepResumeLegacyFile   Step = "awaiting_curriculo_pdf"
	StepResumePostAnswer   Step = "curriculo_post_answer"

	StepPurchaseAskCatalog    Step = "purchase_ask_catalog"
	StepPurchaseAskCity       Step = "purchase_ask_city"
	StepPurchaseChooseChannel Step = "purchase_choose_channel"
	StepPurchaseName          Step = "purchase_product_name_robust"
	StepPurchaseQty           Step = "purchase_quantity_robust"
	StepPurchaseQuestions     Step = "purchase_questions_robust"
	StepPurchaseConfirm       Step = "purchase_confirm_order_robust"
	StepPurchaseBuyerName     Step = "purchase_ask_name_robust"
	StepPurchaseAddress       Step = "purchase_ask_address_robust"
	StepPurchasePayment       Step = "purchase_ask_payment_robust"
	StepPurchasePIXWhen       Step = "purchase_pix_choose_when"
	StepPurchasePIXProof      Step = "purchase_awaiting_pix_proof_robust"
	StepPurchaseNotify        Step = "purchase_notify_attendant_robust"

	StepSimpleName      Step = "purchase_product_name"
	StepSimpleLink      Step = "purchase_product_link"
	StepSimplePhoto     Step = "purchase_product_photo"
	StepSimpleQty       Step = "purchase_quantity"
	StepSimpleQuestions Step = "purchase_questions"

	StepCatalogName    Step = "purchase_catalog_awaiting_name"
	StepCatalogAddress Step = "purchase_catalog_awaiting_address"
	StepCatalogPIX     Step = "purchase_catalog_awaiting_pix"
	StepCatalogProof   Step = "purchase_catalog_awaiting_proof"
	StepCatalogDone    Step = "purchase_catalog_done"

	StepIssueInvoice    Step = "product_issue_nf"
	StepIssuePhoto      Step = "product_issue_photo"
	StepIssueBoxPhoto   Step = "product_issue_box_photo"
	StepIssueLabelPhoto Step = "product_issue_label_photo"
	StepIssueAddress    Step = "product_issue_address"
	StepIssueComments   Step = "product_issue_comments"

	StepCartStart      Step = "cart_start"
	StepCartAddProduct Step = "cart_add_product"
	StepCartAskName    Step = "cart_ask_product_name"
	StepCartAskQty     Step = "cart_ask_product_qty"
	StepCartRemove     Step = "cart_remove_item"
	StepCartEdit       Step = "cart_edit_item"
	StepCartEditQty    Step = "cart_edit_qty"
	StepCartMenu       Step = "cart_menu"
	StepCartBuyerName  Step = "cart_ask_name"
	StepCartAddress    Step = "cart_ask_address"

	StepTransferToHuman Step = "transfer_to_human"
	StepInHumanChat     Step = "in_human_chat"

	StepSatisfactionRating   Step = "awaiting_satisfaction_rating"
	StepSatisfactionFeedback Step = "awaiting_satisfaction_feedback"
)

type handlerFunc func(e *Engine, ctx context.Context, msg Message, st *store.ConversationState) (Result, error)

// handlers is the total dispatch table. Every named step maps to exactly one
// handler; lookups for anything else fall back to handleStart.
var handlers = map[Step]handlerFunc{
	StepStart:    (*Engine).handleStart,
	StepName:     (*Engine).handleName,
	StepMainMenu: (*Engine).handleMainMenu,

	StepFAQMenu:       (*Engine).handleFAQMenu,
	StepFAQPostAnswer: (*Engine).handleFAQPostAnswer,

	StepResumeChannel:      (*Engine).handleResume,
	StepResumeChannelOther: (*Engine).handleResume,
	StepResumeFile:         (*Engine).handleResume,
	StepResumeLegacyFile:   (*Engine).handleResume,
	StepResumePostAnswer:   (*Engine).handleResume,

	StepPurchaseAskCatalog:    (*Engine).handlePurchaseRobust,
	StepPurchaseAskCity:       (*Engine).handlePurchaseRobust,
	StepPurchaseChooseChannel: (*Engine).handlePurchaseRobust,
	StepPurchaseName:          (*Engine).handlePurchaseRobust,
	StepPurchaseQty:           (*Engine).handlePurchaseRobust,
	StepPurchaseQuestions:     (*Engine).handlePurchaseRobust,
	StepPurchaseConfirm:       (*Engine).handlePurchaseRobust,
	StepPurchaseBuyerName:     (*Engine).handlePurchaseRobust,
	StepPurchaseAddress:       (*Engine).handlePurchaseRobust,
	StepPurchasePayment:       (*Engine).handlePurchaseRobust,
	StepPurchasePIXWhen:       (*Engine).handlePurchaseRobust,
	StepPurchasePIXProof:      (*Engine).handlePurchaseRobust,
	StepPurchaseNotify:        (*Engine).handlePurchaseRobust,

	StepSimpleName:      (*Engine).handlePurchaseSimple,
	StepSimpleLink:      (*Engine).handlePurchaseSimple,
	StepSimplePhoto:     (*Engine).handlePurchaseSimple,
	StepSimpleQty:       (*Engine).handlePurchaseSimple,
	StepSimpleQuestions: (*Engine).handlePurchaseSimple,

	StepCatalogName:    (*Engine).handleCatalogOrder,
	StepCatalogAddress: (*Engine).handleCatalogOrder,
	StepCatalogPIX:     (*Engine).handleCatalogOrder,
	StepCatalogProof:   (*Engine).handleCatalogOrder,
	StepCatalogDone:    (*Engine).handleCatalogOrder,

	StepIssueInvoice:    (*Engine).handleProductIssue,
	StepIssuePhoto:      (*Engine).handleProductIssue,
	StepIssueBoxPhoto:   (*Engine).handleProductIssue,
	StepIssueLabelPhoto: (*Engine).handleProductIssue,
	StepIssueAddress:    (*Engine).handleProductIssue,
	StepIssueComments:   (*Engine).handleProductIssue,

	StepCartStart:      (*Engine).handleCart,
	StepCartAddProduct: (*Engine).handleCart,
	StepCartAskName:    (*Engine).handleCart,
	StepCartAskQty:     (*Engine).handleCart,
	StepCartRemove:     (*Engine).handleCart,
	StepCartEdit:       (*Engine).handleCart,
	StepCartEditQty:    (*Engine).handleCart,
	StepCartMenu:       (*Engine).handleCart,
	StepCartBuyerName:  (*Engine).handleCart,
	StepCartAddress:    (*Engine).handleCart,

	StepTransferToHuman: (*Engine).handleHumanTransfer,
	StepInHumanChat:     (*Engine).handleHumanChat,

	StepSatisfactionRating:   (*Engine).handleSatisfaction,
	StepSatisfactionFeedback: (*Engine).handleSatisfaction,
}

// handlerFor resolves a stored step to its handler, recovering unknown or
// stale steps at start.
func handlerFor(step Step) handlerFunc {
	if h, ok := handlers[step]; ok {
		return h
	}
	return (*Engine).handleStart
}
