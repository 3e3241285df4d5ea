package importer

import (
	"fmt"
	"strings"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// ValidationError means a parsed record failed validation and was not
// imported. Problems lists every hard error found.
type ValidationError struct {
	ContactRef string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.ContactRef, strings.Join(e.Problems, "; "))
}

// DuplicateConflict is advisory: the record matches an existing client.
// Depending on run settings the contact is either skipped or re-imported
// as an update.
type DuplicateConflict struct {
	ContactRef       string
	ExistingClientID string
	ConflictType     model.ConflictType
}

func (e *DuplicateConflict) Error() string {
	return fmt.Sprintf("duplicate %s conflict for %s with existing client %s", e.ConflictType, e.ContactRef, e.ExistingClientID)
}

// ClassificationError wraps a status-detection failure for one contact.
type ClassificationError struct {
	ContactRef string
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("status classification failed for %s: %v", e.ContactRef, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// PersistenceError wraps a transactional import failure; the transaction
// has been rolled back and no partial data was written for the contact.
type PersistenceError struct {
	ContactRef string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s failed: %v", e.ContactRef, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SessionIOError wraps a session artifact operation failure.
type SessionIOError struct {
	Op  string
	Err error
}

func (e *SessionIOError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Err)
}

func (e *SessionIOError) Unwrap() error { return e.Err }

// ExtractionError wraps a chat-extractor failure. A contacts-listing
// failure is fatal to the whole run; a per-contact history failure only
// fails that contact.
type ExtractionError struct {
	Stage string // "contacts" or "messages"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s failed: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
