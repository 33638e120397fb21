package crisis

import "strings"

// EmergencyMessage is returned instead of a model reply when a message
// matches a crisis phrase.
const EmergencyMessage = "🆘 Je suis là pour t'écouter, mais si tu es en danger, contacte immédiatement :\n" +
	"📞 112\n" +
	"☎️ SOS Suicide : 01 45 39 40 00 (gratuit, 24h/24)"

// DefaultKeywords mirrors the CRISIS_KEYWORDS default.
var DefaultKeywords = []string{"suicide", "envie d'en finir", "je veux mourir", "plus envie de vivre"}

// Detector flags text containing any configured crisis phrase.
type Detector struct {
	keywords []string
}

// NewDetector normalizes the phrase list; blank entries are dropped.
func NewDetector(keywords []string) *Detector {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, word := range keywords {
		word = normalize(word)
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		normalized = append(normalized, word)
	}
	return &Detector{keywords: normalized}
}

// Detect reports whether text contains a crisis phrase, ignoring case.
func (d *Detector) Detect(text string) bool {
	_, ok := d.Match(text)
	return ok
}

// Match returns the first phrase found in text.
func (d *Detector) Match(text string) (string, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return "", false
	}
	for _, word := range d.keywords {
		if strings.Contains(normalized, word) {
			return word, true
		}
	}
	return "", false
}

// Keywords returns the active phrase list.
func (d *Detector) Keywords() []string {
	return append([]string(nil), d.keywords...)
}

// normalize lowercases and folds typographic apostrophes so "d’en" matches "d'en".
func normalize(text string) string {
	text = strings.TrimSpace(strings.ToLower(text))
	return strings.ReplaceAll(text, "’", "'")
}
