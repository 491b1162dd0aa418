package interceptor

import (
	"chat-widget-backend/internal/i18n"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/prompt"
	"context"
)

var paymentKeywords = []string{
	"pay", "payment", "transfer", "bank", "account number", "qr", "promptpay",
	"โอน", "โอนเงิน", "จ่าย", "ชำระ", "เลขบัญชี", "พร้อมเพย์",
}

// Notifier delivers notifications without blocking the caller.
type Notifier interface {
	Dispatch(n model.NotificationItem)
}

// PaymentIntent answers "how do I pay" with the workspace payment details
// and tells the owner a purchase may be coming.
type PaymentIntent struct {
	tr       *i18n.Translator
	notifier Notifier
}

func NewPaymentIntent(tr *i18n.Translator, notifier Notifier) *PaymentIntent {
	return &PaymentIntent{tr: tr, notifier: notifier}
}

func (p *PaymentIntent) Name() string { return "payment_intent" }

func (p *PaymentIntent) Intercept(_ context.Context, in Input) (*Reply, error) {
	msg := normalize(in.Message)
	if !containsAny(msg, paymentKeywords) {
		return nil, nil
	}
	instructions := prompt.PaymentInstructions(in.Workspace.PaymentSettings)
	if instructions == "" {
		return nil, nil
	}

	if p.notifier != nil {
		p.notifier.Dispatch(model.NotificationItem{
			WorkspaceID: in.Workspace.WorkspaceID,
			RecipientID: in.Workspace.OwnerID,
			SessionID:   in.SessionID,
			Type:        model.NotificationTypeNewOrder,
			Title:       p.tr.Text(in.Language, i18n.NewOrderTitle, nil),
			Message: p.tr.Text(in.Language, i18n.NewOrderMessage, map[string]any{
				"SessionID": in.SessionID,
				"Message":   in.Message,
			}),
			Priority: model.NotificationPriorityHigh,
		})
	}

	return &Reply{
		Content: p.tr.Text(in.Language, i18n.PaymentReply, map[string]any{"Instructions": instructions}),
		Type:    model.MessageTypeText,
		Model:   model.ModelSystemPayment,
	}, nil
}
