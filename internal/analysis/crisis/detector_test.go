package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCaseInsensitiveSubstring(t *testing.T) {
	d := NewDetector(DefaultKeywords)

	cases := map[string]bool{
		"Je veux MOURIR ce soir":             true,
		"j’ai envie d’en finir":              true,
		"je pense au SUICIDE":                true,
		"plus envie de vivre...":             true,
		"bonjour, ça va ?":                   false,
		"":                                   false,
		"je veux mourir de rire, trop drôle": true,
	}
	for text, want := range cases {
		assert.Equal(t, want, d.Detect(text), "text=%q", text)
	}
}

func TestNewDetectorDropsBlankAndDuplicate(t *testing.T) {
	d := NewDetector([]string{" Adieu ", "", "adieu", "  "})

	assert.Equal(t, []string{"adieu"}, d.Keywords())
	word, ok := d.Match("Je dis ADIEU")
	assert.True(t, ok)
	assert.Equal(t, "adieu", word)
}

func TestEmergencyMessageCarriesHotlines(t *testing.T) {
	assert.Contains(t, EmergencyMessage, "112")
	assert.Contains(t, EmergencyMessage, "SOS Suicide")
}
