// Package importer orchestrates chat-history import runs: validation,
// duplicate detection, status classification, and transactional persistence
// of contacts into the store.
package importer

import (
	"fmt"

	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/parse"
)

// ValidateClientData checks a parsed record and normalizes it in place.
// Hard errors (unparseable phone, inverted date range) make the record
// invalid; a missing name or unsupported language only produces a warning
// and a fallback value.
func ValidateClientData(data *model.ParsedClientData, defaultLanguage string) model.ValidationResult {
	result := model.ValidationResult{IsValid: true}

	normalized, err := parse.NormalizePhoneNumber(data.Phone)
	if err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("phone %q: %v", data.Phone, err))
	} else {
		data.Phone = normalized
	}

	if len(data.Messages) == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "no messages in conversation")
	}

	if !data.FirstMessageDate.IsZero() && !data.LastMessageDate.IsZero() &&
		data.LastMessageDate.Before(data.FirstMessageDate) {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("last message date %s precedes first message date %s",
				data.LastMessageDate.Format("2006-01-02"), data.FirstMessageDate.Format("2006-01-02")))
	}

	switch {
	case data.Name == "":
		result.Warnings = append(result.Warnings, "no usable name found, importing without one")
	case !parse.IsNameLike(data.Name, data.Phone):
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("name %q is not name-like, importing without one", data.Name))
		data.Name = ""
	}

	if !parse.IsSupportedLanguage(data.PreferredLanguage) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unsupported language %q, defaulting to %q", data.PreferredLanguage, defaultLanguage))
		if parse.IsSupportedLanguage(defaultLanguage) {
			data.PreferredLanguage = defaultLanguage
		} else {
			data.PreferredLanguage = parse.DefaultLanguage
		}
	}

	return result
}
