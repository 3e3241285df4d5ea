// Package parse contains the pure, stateless parsers used by the
// classification and import pipeline: language detection, name extraction,
// phone normalization, and cultural-context inference.
package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// DefaultLanguage is used whenever detection finds nothing better.
const DefaultLanguage = "en"

// SupportedLanguages lists the codes the parsers and classifier know about.
var SupportedLanguages = []string{"en", "ru", "es", "he", "ar", "fr", "de", "pt"}

// IsSupportedLanguage reports whether code is one of the supported codes
// after canonicalization.
func IsSupportedLanguage(code string) bool {
	canon := CanonicalLanguage(code)
	for _, l := range SupportedLanguages {
		if canon == l {
			return true
		}
	}
	return false
}

// CanonicalLanguage reduces a raw language code or BCP 47 tag ("ru-RU",
// "pt_BR") to its lowercase base code. Unparseable input is returned
// lowercased as-is.
func CanonicalLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

// languageKeywords holds common short words per language for the keyword
// stage of detection. Matching is whole-word and case-insensitive.
var languageKeywords = map[string][]string{
	"en": {"hello", "hi", "the", "thanks", "thank", "please", "when", "price", "how", "tour", "yes", "and", "you"},
	"es": {"hola", "gracias", "por", "favor", "cuando", "precio", "cuánto", "cuanto", "buenos", "días", "sí", "quiero"},
	"fr": {"bonjour", "merci", "s'il", "quand", "prix", "combien", "oui", "je", "vous", "pour"},
	"de": {"hallo", "danke", "bitte", "wann", "preis", "wie", "viel", "ich", "und", "sie"},
	"pt": {"olá", "obrigado", "obrigada", "por", "quando", "preço", "quanto", "bom", "dia", "sim", "quero"},
}

// DetectLanguage returns the language code of a single text. Non-Latin
// scripts take precedence; Latin text falls through to per-language keyword
// voting and defaults to en when nothing matches.
func DetectLanguage(text string) string {
	if code := detectScript(text); code != "" {
		return code
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return DefaultLanguage
	}
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?;:()\"'¿¡")] = true
	}

	best, bestHits := DefaultLanguage, 0
	// Deterministic order: check non-English first so that shared loanwords
	// do not tip everything into en.
	for _, code := range []string{"es", "pt", "fr", "de", "en"} {
		hits := 0
		for _, kw := range languageKeywords[code] {
			if wordSet[kw] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = code, hits
		}
	}
	return best
}

// detectScript maps dominant non-Latin scripts to a language code.
// Returns "" for Latin or undecidable text.
func detectScript(text string) string {
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			return "ru"
		case unicode.Is(unicode.Hebrew, r):
			return "he"
		case unicode.Is(unicode.Arabic, r):
			return "ar"
		case unicode.Is(unicode.Han, r):
			return "zh"
		}
	}
	return ""
}

// DetectPrimaryLanguage returns the majority language over per-message
// detection. Only counterpart messages vote when any exist, since the
// operator side often writes in its own language. Defaults to en for empty
// input.
func DetectPrimaryLanguage(messages []model.ParsedMessage) string {
	votes := make(map[string]int)
	counted := 0
	for _, m := range messages {
		if m.Direction != model.DirectionIncoming || strings.TrimSpace(m.Content) == "" {
			continue
		}
		votes[DetectLanguage(m.Content)]++
		counted++
	}
	if counted == 0 {
		for _, m := range messages {
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			votes[DetectLanguage(m.Content)]++
		}
	}
	if len(votes) == 0 {
		return DefaultLanguage
	}

	best, bestCount := DefaultLanguage, 0
	for _, code := range append([]string{"zh"}, SupportedLanguages...) {
		if votes[code] > bestCount {
			best, bestCount = code, votes[code]
		}
	}
	return best
}
