package parse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// languageContexts maps a language code to the cultural background it
// implies. Language is the primary signal: it reflects the client's actual
// cultural context regardless of where their number is registered.
var languageContexts = map[string]model.CulturalContext{
	"ru": {
		LikelyOrigin:       "Russian-speaking countries (Russia, Ukraine, Kazakhstan, Belarus)",
		Region:             "Eastern Europe / Central Asia",
		CommunicationStyle: "direct, appreciates detailed answers",
		CulturalNotes:      []string{"Orthodox holidays may affect travel dates"},
		Confidence:         0.7,
	},
	"he": {
		LikelyOrigin:        "Israel",
		Region:              "Middle East",
		CommunicationStyle:  "informal, fast-paced",
		DietaryRestrictions: []string{"kosher options may be required"},
		CulturalNotes:       []string{"Shabbat (Friday evening to Saturday) limits availability"},
		Confidence:          0.75,
	},
	"ar": {
		LikelyOrigin:        "Arabic-speaking countries",
		Region:              "Middle East / North Africa",
		CommunicationStyle:  "formal, relationship-oriented",
		DietaryRestrictions: []string{"halal options may be required"},
		CulturalNotes:       []string{"Ramadan timing affects meal planning"},
		Confidence:          0.7,
	},
	"es": {
		LikelyOrigin:       "Spain or Latin America",
		Region:             "Southern Europe / Latin America",
		CommunicationStyle: "warm, conversational",
		Confidence:         0.65,
	},
	"pt": {
		LikelyOrigin:       "Portugal or Brazil",
		Region:             "Southern Europe / South America",
		CommunicationStyle: "warm, conversational",
		Confidence:         0.65,
	},
	"fr": {
		LikelyOrigin:       "France or francophone countries",
		Region:             "Western Europe",
		CommunicationStyle: "polite, values formality",
		Confidence:         0.65,
	},
	"de": {
		LikelyOrigin:       "Germany, Austria or Switzerland",
		Region:             "Central Europe",
		CommunicationStyle: "precise, punctuality matters",
		Confidence:         0.65,
	},
	"en": {
		LikelyOrigin:       "English-speaking countries",
		CommunicationStyle: "casual",
		Confidence:         0.4,
	},
}

// countryPrefixes maps international dialing prefixes to a country label.
// Longest prefix wins.
var countryPrefixes = map[string]string{
	"1":   "United States / Canada",
	"7":   "Russia / Kazakhstan",
	"20":  "Egypt",
	"33":  "France",
	"34":  "Spain",
	"351": "Portugal",
	"375": "Belarus",
	"380": "Ukraine",
	"44":  "United Kingdom",
	"49":  "Germany",
	"52":  "Mexico",
	"55":  "Brazil",
	"966": "Saudi Arabia",
	"971": "United Arab Emirates",
	"972": "Israel",
}

// DetectCulturalContext infers cultural context from language and,
// secondarily, from the phone country prefix. The prefix only fills in
// country information the language did not already imply and never
// overrides a region derived from language.
func DetectCulturalContext(lang, phone string) *model.CulturalContext {
	base, ok := languageContexts[CanonicalLanguage(lang)]
	if !ok {
		base = model.CulturalContext{Confidence: 0.2}
	}
	// Copy list fields so callers can mutate freely.
	ctx := base
	ctx.DietaryRestrictions = append([]string(nil), base.DietaryRestrictions...)
	ctx.CulturalNotes = append([]string(nil), base.CulturalNotes...)

	if country := countryFromPhone(phone); country != "" {
		if ctx.LikelyOrigin == "" {
			ctx.LikelyOrigin = country
		}
		if ctx.Region == "" {
			ctx.Region = country
		}
		ctx.CulturalNotes = append(ctx.CulturalNotes, fmt.Sprintf("phone number registered in %s", country))
	}
	return &ctx
}

// countryFromPhone resolves the longest matching dialing prefix of an E.164
// number. Returns "" for unknown or non-normalized input.
func countryFromPhone(phone string) string {
	if !strings.HasPrefix(phone, "+") {
		return ""
	}
	digits := PhoneDigits(phone)

	prefixes := make([]string, 0, len(countryPrefixes))
	for p := range countryPrefixes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, p := range prefixes {
		if strings.HasPrefix(digits, p) {
			return countryPrefixes[p]
		}
	}
	return ""
}
