package parse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// introMessageWindow is how many of the counterpart's first messages are
// scanned for a stated name.
const introMessageWindow = 3

// introPatterns match explicit self-introductions per supported language.
// The first capture group is the name.
var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?i)(?:меня зовут|моё имя|мое имя)\s+([\p{L}][\p{L}-]*)`),
	regexp.MustCompile(`(?i)^я\s+([\p{L}][\p{L}-]*)\s*[,.!]?\s*$`),
	regexp.MustCompile(`(?i)\b(?:me llamo|mi nombre es|soy)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?i)\b(?:je m'appelle|je suis|moi c'est)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?i)\b(?:ich heiße|ich heisse|mein name ist|ich bin)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?i)\b(?:me chamo|meu nome é|sou)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?:קוראים לי|שמי|אני)\s+([\p{L}][\p{L}'’-]*)`),
	regexp.MustCompile(`(?:اسمي|انا|أنا)\s+([\p{L}][\p{L}'’-]*)`),
}

var titleCaser = cases.Title(language.Und)

// ExtractBestName picks the best available name for a contact. A name the
// counterpart states in their first few messages outranks the contact-book
// display name; either source is discarded when it is phone-shaped or
// otherwise non-name-like.
func ExtractBestName(contactName string, messages []model.ParsedMessage, phone string) string {
	if name := nameFromIntroduction(messages); name != "" && IsNameLike(name, phone) {
		return name
	}
	if name := strings.TrimSpace(contactName); name != "" && IsNameLike(name, phone) {
		return name
	}
	return ""
}

func nameFromIntroduction(messages []model.ParsedMessage) string {
	seen := 0
	for _, m := range messages {
		if m.Direction != model.DirectionIncoming {
			continue
		}
		seen++
		if seen > introMessageWindow {
			break
		}
		for _, pat := range introPatterns {
			if match := pat.FindStringSubmatch(m.Content); match != nil {
				return titleCaser.String(strings.ToLower(match[1]))
			}
		}
	}
	return ""
}

// IsNameLike rejects candidates that are too short, digits-only, overly
// long, or that are just the phone number in disguise.
func IsNameLike(candidate, phone string) bool {
	runes := []rune(candidate)
	if len(runes) < 2 || len(runes) > 60 {
		return false
	}

	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}

	if digits := PhoneDigits(candidate); digits != "" {
		phoneDigits := PhoneDigits(phone)
		if digits == phoneDigits || (len(digits) >= 7 && strings.Contains(phoneDigits, digits)) {
			return false
		}
	}
	return true
}
