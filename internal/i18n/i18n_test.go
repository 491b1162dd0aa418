package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextFallsBackToEnglish(t *testing.T) {
	tr := New()

	assert.Equal(t, "A team member has joined the conversation.", tr.Text("en", AgentJoined, nil))
	assert.Equal(t, "เจ้าหน้าที่เข้าร่วมการสนทนาแล้วค่ะ", tr.Text("th", AgentJoined, nil))
	assert.Equal(t, "A team member has joined the conversation.", tr.Text("fr", AgentJoined, nil))
	assert.Equal(t, "missing-id", tr.Text("en", "missing-id", nil))
}

func TestTextTemplateData(t *testing.T) {
	tr := New()
	got := tr.Text("en", ProductCard, map[string]any{"Name": "iPhone 17 Pro", "Price": "45900.00", "Currency": "THB"})
	assert.Equal(t, "iPhone 17 Pro is available for 45900.00 THB.", got)
}

func TestLanguageFor(t *testing.T) {
	assert.Equal(t, "th", LanguageFor("โอนเงินยังไงคะ", "en"))
	assert.Equal(t, "en", LanguageFor("how do I pay?", ""))
	assert.Equal(t, "de", LanguageFor("wie bezahle ich", "de"))
}
