package prompt

import (
	"chat-widget-backend/internal/model"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullWorkspace() model.WorkspaceItem {
	return model.WorkspaceItem{
		Name:     "Phone Shop",
		Currency: "THB",
		PaymentSettings: model.PaymentSettings{
			Enabled: true,
			BankTransfer: model.BankTransfer{
				Enabled: true, BankName: "KBank", AccountName: "Phone Shop Co", AccountNumber: "123-4-56789-0",
			},
		},
		KnowledgeBase: model.KnowledgeBase{
			FAQs: []model.FAQ{
				{Question: "Do you ship abroad?", Answer: "Thailand only.", Active: true},
				{Question: "Old question", Answer: "Old answer", Active: false},
			},
			CustomInstructions: "Always greet with sawasdee.",
		},
		ProductCatalog: model.ProductCatalog{Products: []model.Product{
			{ID: "p1", Name: "iPhone 17 Pro", Price: 45900, Active: true, CreatedAt: "2026-09-01T00:00:00Z"},
		}},
	}
}

func TestAssembleSectionOrder(t *testing.T) {
	out := Assemble(fullWorkspace())

	payment := strings.Index(out, "## Payment methods")
	faq := strings.Index(out, "## Frequently asked questions")
	products := strings.Index(out, "## Product catalog")
	custom := strings.Index(out, "## Additional instructions")

	require.True(t, payment >= 0 && faq > payment && products > faq && custom > products, out)
	assert.Contains(t, out, "account number 123-4-56789-0")
	assert.Contains(t, out, "Q: Do you ship abroad?\nA: Thailand only.")
	assert.NotContains(t, out, "Old question")
	assert.Contains(t, out, "iPhone 17 Pro: 45900.00 THB")
	assert.Contains(t, out, "Never invent prices")
}

func TestAssembleOmitsMissingSections(t *testing.T) {
	ws := fullWorkspace()
	ws.PaymentSettings.BankTransfer.Enabled = false
	ws.KnowledgeBase = model.KnowledgeBase{}

	out := Assemble(ws)
	assert.NotContains(t, out, "## Payment methods")
	assert.NotContains(t, out, "## Frequently asked questions")
	assert.NotContains(t, out, "## Additional instructions")
	assert.Contains(t, out, "## Product catalog")

	assert.Empty(t, Assemble(model.WorkspaceItem{}))
}

func TestAssembleCapsProductsNewestFirst(t *testing.T) {
	ws := model.WorkspaceItem{}
	for i := 1; i <= 14; i++ {
		ws.ProductCatalog.Products = append(ws.ProductCatalog.Products, model.Product{
			ID:        fmt.Sprintf("p%02d", i),
			Name:      fmt.Sprintf("Item %02d", i),
			Price:     float64(i),
			Active:    true,
			CreatedAt: fmt.Sprintf("2026-01-%02dT00:00:00Z", i),
		})
	}

	out := Assemble(ws)
	assert.Equal(t, MaxProducts, strings.Count(out, "\n- "))
	assert.Contains(t, out, "Item 14")
	assert.Contains(t, out, "Item 05")
	assert.NotContains(t, out, "Item 04")
	assert.Less(t, strings.Index(out, "Item 14"), strings.Index(out, "Item 13"))
}

func TestAssembleTruncatesDescriptions(t *testing.T) {
	ws := model.WorkspaceItem{ProductCatalog: model.ProductCatalog{Products: []model.Product{
		{Name: "Case", Description: strings.Repeat("ก", 200), Active: true},
	}}}

	out := Assemble(ws)
	assert.Contains(t, out, strings.Repeat("ก", 150)+"...")
	assert.NotContains(t, out, strings.Repeat("ก", 151))
}

func TestSystemPromptPrependsContext(t *testing.T) {
	out := SystemPrompt(fullWorkspace())
	assert.True(t, strings.HasPrefix(out, "## Payment methods"))
	assert.Contains(t, out, "All prices are in THB.")

	bare := SystemPrompt(model.WorkspaceItem{})
	assert.True(t, strings.HasPrefix(bare, "You are a friendly customer support agent for this store."))
}

func TestPaymentInstructionsQR(t *testing.T) {
	out := PaymentInstructions(model.PaymentSettings{
		Enabled: true,
		QRCode:  model.QRCode{Enabled: true, PromptPayID: "0812345678"},
	})
	assert.Equal(t, "QR payment: scan the store's QR code or pay with PromptPay ID 0812345678.", out)
	assert.Empty(t, PaymentInstructions(model.PaymentSettings{Enabled: false, QRCode: model.QRCode{Enabled: true}}))
}
