package extract

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// Sheet names expected in a chat export workbook.
const (
	contactsSheet = "Contacts"
	messagesSheet = "Messages"
)

// timestampLayouts are tried in order when parsing message timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
}

// SpreadsheetExtractor reads an exported chat workbook: a Contacts sheet
// (phone, display name, avatar url) and a Messages sheet (phone, message
// id, content, timestamp, from_operator, media type). The whole workbook
// is loaded once; extraction calls then work in memory.
type SpreadsheetExtractor struct {
	contacts []model.ExtractedContact
	messages map[string][]model.ExtractedMessage
}

// NewSpreadsheetExtractor loads the workbook at path.
func NewSpreadsheetExtractor(path string) (*SpreadsheetExtractor, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open workbook %s", path)
	}

	e := &SpreadsheetExtractor{messages: make(map[string][]model.ExtractedMessage)}
	if err := e.loadContacts(f); err != nil {
		return nil, err
	}
	if err := e.loadMessages(f); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *SpreadsheetExtractor) loadContacts(f *xlsx.File) error {
	sheet, ok := f.Sheet[contactsSheet]
	if !ok {
		return eris.Errorf("extract: workbook has no %q sheet", contactsSheet)
	}

	for i, row := range sheet.Rows {
		if i == 0 { // header
			continue
		}
		cells := rowStrings(row, 3)
		if cells[0] == "" {
			continue
		}
		e.contacts = append(e.contacts, model.ExtractedContact{
			Phone:       cells[0],
			DisplayName: cells[1],
			AvatarURL:   cells[2],
		})
	}
	return nil
}

func (e *SpreadsheetExtractor) loadMessages(f *xlsx.File) error {
	sheet, ok := f.Sheet[messagesSheet]
	if !ok {
		return eris.Errorf("extract: workbook has no %q sheet", messagesSheet)
	}

	for i, row := range sheet.Rows {
		if i == 0 { // header
			continue
		}
		cells := rowStrings(row, 6)
		phone := cells[0]
		if phone == "" {
			continue
		}

		ts, err := parseTimestamp(cells[3])
		if err != nil {
			return eris.Wrapf(err, "extract: messages row %d", i+1)
		}

		fromOperator, _ := strconv.ParseBool(strings.ToLower(cells[4]))

		mediaType := model.MediaType(strings.ToLower(cells[5]))
		if mediaType == "" {
			mediaType = model.MediaText
		}

		e.messages[phone] = append(e.messages[phone], model.ExtractedMessage{
			ID:           cells[1],
			Content:      cells[2],
			Timestamp:    ts,
			FromOperator: fromOperator,
			MediaType:    mediaType,
		})
	}

	// The extractor contract promises ascending timestamp order.
	for phone := range e.messages {
		msgs := e.messages[phone]
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
		e.messages[phone] = msgs
	}
	return nil
}

// ExtractContacts implements Extractor.
func (e *SpreadsheetExtractor) ExtractContacts(_ context.Context, limit int) ([]model.ExtractedContact, error) {
	contacts := e.contacts
	if limit > 0 && len(contacts) > limit {
		contacts = contacts[:limit]
	}
	out := make([]model.ExtractedContact, len(contacts))
	copy(out, contacts)
	return out, nil
}

// ExtractMessages implements Extractor.
func (e *SpreadsheetExtractor) ExtractMessages(_ context.Context, phone string) ([]model.ExtractedMessage, error) {
	msgs, ok := e.messages[phone]
	if !ok {
		return nil, nil
	}
	out := make([]model.ExtractedMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func rowStrings(row *xlsx.Row, width int) []string {
	cells := make([]string, width)
	for j := 0; j < width && j < len(row.Cells); j++ {
		cells[j] = strings.TrimSpace(row.Cells[j].String())
	}
	return cells
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	// Excel exports sometimes carry epoch seconds.
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, eris.Errorf("extract: unparseable timestamp %q", raw)
}
