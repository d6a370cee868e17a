package scraper

import "strings"

// KeywordClassifier is a cheap pre-filter ahead of human triage: a text
// matches when any sale keyword occurs in it, case-insensitively.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordClassifier{keywords: lowered}
}

func (c *KeywordClassifier) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
