package i18n

import (
	"embed"
	"encoding/json"
	"strings"
	"unicode"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

const (
	HumanWillRespond = "human-will-respond"
	ErrorReply       = "error-reply"
	ProductCard      = "product-card"
	PaymentReply     = "payment-reply"
	AgentJoined      = "agent-joined"
	AgentLeft        = "agent-left"
	NewOrderTitle    = "new-order-title"
	NewOrderMessage  = "new-order-message"
)

//go:embed locales/*.json
var locales embed.FS

type Translator struct {
	bundle *goi18n.Bundle
}

func New() *Translator {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, name := range []string{"en.json", "th.json"} {
		data, err := locales.ReadFile("locales/" + name)
		if err != nil {
			panic(err)
		}
		bundle.MustParseMessageFileBytes(data, name)
	}
	return &Translator{bundle: bundle}
}

// Text localizes id for lang, falling back to English and then to the id.
func (t *Translator) Text(lang, id string, data map[string]any) string {
	localizer := goi18n.NewLocalizer(t.bundle, lang, "en")
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

// LanguageFor picks Thai when the text contains Thai script, else fallback.
func LanguageFor(text, fallback string) string {
	for _, r := range text {
		if unicode.Is(unicode.Thai, r) {
			return "th"
		}
	}
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return "en"
	}
	return fallback
}
