// Package extract defines the contract with the chat-history extractor and
// provides a spreadsheet-backed implementation for offline imports. The
// live browser-automation client satisfies the same interface and is wired
// in by the CLI when a session is available.
package extract

import (
	"context"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// Extractor delivers a business's historical chat data. Implementations:
// the live automation client (external) and SpreadsheetExtractor (offline
// export files).
type Extractor interface {
	// ExtractContacts lists contacts, at most limit when limit > 0.
	ExtractContacts(ctx context.Context, limit int) ([]model.ExtractedContact, error)

	// ExtractMessages returns the full message history for a contact,
	// ordered by timestamp ascending.
	ExtractMessages(ctx context.Context, phone string) ([]model.ExtractedMessage, error)
}
