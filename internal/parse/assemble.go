package parse

import (
	"time"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// mediaPlaceholders stand in for message bodies the extractor could not
// transcribe.
var mediaPlaceholders = map[model.MediaType]string{
	model.MediaImage:    "[image]",
	model.MediaAudio:    "[audio]",
	model.MediaVideo:    "[video]",
	model.MediaDocument: "[document]",
}

// BuildClientData assembles a ParsedClientData from one extracted contact
// and its message history. Pure: no I/O, deterministic for a given input.
// Phone and dates are carried as-is; normalization happens in validation.
func BuildClientData(contact model.ExtractedContact, msgs []model.ExtractedMessage, defaultLanguage string) *model.ParsedClientData {
	parsed := make([]model.ParsedMessage, 0, len(msgs))
	var first, last time.Time

	for _, m := range msgs {
		content := m.Content
		if content == "" {
			if ph, ok := mediaPlaceholders[m.MediaType]; ok {
				content = ph
			}
		}

		direction := model.DirectionIncoming
		sender := model.SenderClient
		if m.FromOperator {
			direction = model.DirectionOutgoing
			sender = model.SenderHuman
		}

		parsed = append(parsed, model.ParsedMessage{
			Content:         content,
			Timestamp:       m.Timestamp,
			Direction:       direction,
			Sender:          sender,
			Language:        DetectLanguage(content),
			SourceMessageID: m.ID,
		})

		if first.IsZero() || m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}

	lang := DetectPrimaryLanguage(parsed)
	if !IsSupportedLanguage(lang) {
		lang = defaultLanguage
	}
	if lang == "" {
		lang = DefaultLanguage
	}

	return &model.ParsedClientData{
		Phone:             contact.Phone,
		Name:              ExtractBestName(contact.DisplayName, parsed, contact.Phone),
		PreferredLanguage: lang,
		Messages:          parsed,
		FirstMessageDate:  first,
		LastMessageDate:   last,
		CulturalContext:   DetectCulturalContext(lang, contact.Phone),
		Metadata: map[string]any{
			"source":        "chat_import",
			"message_count": len(msgs),
		},
	}
}
