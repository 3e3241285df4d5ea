package model

import "time"

// MediaType categorizes the payload of an extracted message.
type MediaType string

// Extracted media types.
const (
	MediaText     MediaType = "text"
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// ExtractedContact is a raw contact as delivered by the chat extractor.
// External input; never mutated.
type ExtractedContact struct {
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Ref returns a human-readable reference for error reporting, preferring
// the display name over the raw phone.
func (c ExtractedContact) Ref() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Phone
}

// ExtractedMessage is a raw message as delivered by the chat extractor,
// ordered by timestamp ascending within a contact. External input; never
// mutated.
type ExtractedMessage struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	FromOperator bool      `json:"from_operator"`
	MediaType    MediaType `json:"media_type"`
}
