package interceptor

import (
	"chat-widget-backend/internal/i18n"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/prompt"
	"context"
	"strings"
	"unicode/utf8"
)

const shortMessageLimit = 50

var intentKeywords = []string{
	"buy", "order", "price", "want", "how much", "cost", "purchase",
	"ซื้อ", "สั่ง", "ราคา", "เท่าไร", "เท่าไหร่", "อยากได้", "สนใจ",
}

// ProductMatch answers with a product card when the customer names a
// catalog product with buying intent.
type ProductMatch struct {
	tr *i18n.Translator
}

func NewProductMatch(tr *i18n.Translator) *ProductMatch {
	return &ProductMatch{tr: tr}
}

func (p *ProductMatch) Name() string { return "product_match" }

func (p *ProductMatch) Intercept(_ context.Context, in Input) (*Reply, error) {
	msg := normalize(in.Message)
	if msg == "" {
		return nil, nil
	}

	product, ok := matchProduct(msg, prompt.ActiveProducts(in.Workspace.ProductCatalog.Products))
	if !ok {
		return nil, nil
	}
	if !containsAny(msg, intentKeywords) && utf8.RuneCountInString(msg) >= shortMessageLimit {
		return nil, nil
	}

	currency := in.Workspace.CurrencyLabel()
	price := prompt.FormatPrice(product.Price)
	card := &model.ProductCard{
		ProductID:   product.ID,
		Title:       product.Name,
		Description: prompt.Truncate(product.Description, prompt.MaxDescriptionLength),
		Price:       price,
		Currency:    currency,
		ImageURL:    product.ImageURL,
		Link:        product.Link,
	}

	return &Reply{
		Content: p.tr.Text(in.Language, i18n.ProductCard, map[string]any{
			"Name":     product.Name,
			"Price":    price,
			"Currency": currency,
		}),
		Type:  model.MessageTypeCard,
		Model: model.ModelSystemCatalog,
		Card:  card,
	}, nil
}

func matchProduct(msg string, products []model.Product) (model.Product, bool) {
	msgLen := utf8.RuneCountInString(msg)
	for _, product := range products {
		name := normalize(product.Name)
		if name == "" {
			continue
		}
		if strings.Contains(msg, name) || (msgLen > 3 && strings.Contains(name, msg)) {
			return product, true
		}
	}
	return model.Product{}, false
}
