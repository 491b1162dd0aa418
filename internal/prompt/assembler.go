package prompt

import (
	"chat-widget-backend/internal/model"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MaxProducts          = 10
	MaxDescriptionLength = 150
)

// Assemble renders workspace knowledge as system context. Sections are
// emitted in a fixed order and skipped when they have no content.
func Assemble(ws model.WorkspaceItem) string {
	sections := []string{
		paymentSection(ws),
		faqSection(ws.KnowledgeBase.FAQs),
		productSection(ws.ProductCatalog.Products, ws.CurrencyLabel()),
		customSection(ws.KnowledgeBase.CustomInstructions),
	}

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

// SystemPrompt is the assembled context followed by the baseline agent rules.
func SystemPrompt(ws model.WorkspaceItem) string {
	base := baseline(ws)
	ctx := Assemble(ws)
	if ctx == "" {
		return base
	}
	return ctx + "\n\n" + base
}

func baseline(ws model.WorkspaceItem) string {
	name := strings.TrimSpace(ws.Name)
	if name == "" {
		name = "this store"
	}
	lines := []string{
		fmt.Sprintf("You are a friendly customer support agent for %s.", name),
		"Keep answers short and clear, a few sentences at most.",
		"Do not push upsells or pressure the customer into buying.",
		"Only talk about products listed in the catalog above; if something is not listed, say you do not know.",
		fmt.Sprintf("All prices are in %s.", ws.CurrencyLabel()),
		"Reply in the same language the customer writes in.",
	}
	return strings.Join(lines, "\n")
}

// PaymentInstructions renders the enabled payment methods as plain text,
// or "" when none are enabled.
func PaymentInstructions(p model.PaymentSettings) string {
	if !p.Configured() {
		return ""
	}

	var lines []string
	if p.BankTransfer.Enabled {
		bt := p.BankTransfer
		lines = append(lines, fmt.Sprintf("Bank transfer: %s, account name %s, account number %s.",
			bt.BankName, bt.AccountName, bt.AccountNumber))
	}
	if p.QRCode.Enabled {
		qr := "QR payment: scan the store's QR code"
		if p.QRCode.PromptPayID != "" {
			qr += fmt.Sprintf(" or pay with PromptPay ID %s", p.QRCode.PromptPayID)
		}
		qr += "."
		if p.QRCode.ImageURL != "" {
			qr += " QR code: " + p.QRCode.ImageURL
		}
		lines = append(lines, qr)
	}
	if note := strings.TrimSpace(p.Note); note != "" {
		lines = append(lines, note)
	}
	return strings.Join(lines, "\n")
}

func paymentSection(ws model.WorkspaceItem) string {
	body := PaymentInstructions(ws.PaymentSettings)
	if body == "" {
		return ""
	}
	return "## Payment methods\nWhen the customer asks how to pay, share these details:\n" + body
}

func faqSection(faqs []model.FAQ) string {
	var sb strings.Builder
	for _, f := range faqs {
		q, a := strings.TrimSpace(f.Question), strings.TrimSpace(f.Answer)
		if !f.Active || q == "" || a == "" {
			continue
		}
		fmt.Fprintf(&sb, "\nQ: %s\nA: %s", q, a)
	}
	if sb.Len() == 0 {
		return ""
	}
	return "## Frequently asked questions" + sb.String()
}

// ActiveProducts returns active products newest first.
func ActiveProducts(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Active && strings.TrimSpace(p.Name) != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func productSection(products []model.Product, currency string) string {
	active := ActiveProducts(products)
	if len(active) == 0 {
		return ""
	}
	if len(active) > MaxProducts {
		active = active[:MaxProducts]
	}

	var sb strings.Builder
	sb.WriteString("## Product catalog\n")
	sb.WriteString("This catalog is the only source of truth for products, prices and stock. Never invent prices or products that are not listed here.")
	for _, p := range active {
		fmt.Fprintf(&sb, "\n- %s: %s %s", p.Name, FormatPrice(p.Price), currency)
		if d := Truncate(strings.TrimSpace(p.Description), MaxDescriptionLength); d != "" {
			sb.WriteString(" - " + d)
		}
		if p.Link != "" {
			sb.WriteString(" (" + p.Link + ")")
		}
	}
	return sb.String()
}

func customSection(instructions string) string {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return ""
	}
	return "## Additional instructions from the store\n" + instructions
}

func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// Truncate cuts s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
