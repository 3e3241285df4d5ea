// Package model defines the core domain types shared across the import
// pipeline: extracted chat data, parsed client records, classification
// results, and import run state.
package model

import "time"

// Direction indicates which side of the conversation sent a message.
type Direction string

// Message directions.
const (
	DirectionIncoming Direction = "incoming" // from the counterpart (prospective client)
	DirectionOutgoing Direction = "outgoing" // from the operator side
)

// Sender identifies who authored a message on either side.
type Sender string

// Message senders.
const (
	SenderClient Sender = "client"
	SenderAI     Sender = "ai"
	SenderHuman  Sender = "human"
)

// ParsedMessage is a single normalized chat message ready for import.
type ParsedMessage struct {
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Direction       Direction `json:"direction"`
	Sender          Sender    `json:"sender"`
	Language        string    `json:"language,omitempty"`
	SourceMessageID string    `json:"source_message_id,omitempty"`
}

// ParsedClientData is the fully parsed, classified record for one contact.
// It is built once per contact, normalized in place by validation, and
// consumed exactly once by the importer.
type ParsedClientData struct {
	Phone             string           `json:"phone"`
	Name              string           `json:"name,omitempty"`
	PreferredLanguage string           `json:"preferred_language"`
	DetectedStatus    ClientStatus     `json:"detected_status"`
	CulturalContext   *CulturalContext `json:"cultural_context,omitempty"`
	Messages          []ParsedMessage  `json:"messages"`
	FirstMessageDate  time.Time        `json:"first_message_date"`
	LastMessageDate   time.Time        `json:"last_message_date"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
}

// Client is a stored client record scoped to an organization.
type Client struct {
	ID                string       `json:"id"`
	OrganizationID    string       `json:"organization_id"`
	Phone             string       `json:"phone"`
	Name              string       `json:"name,omitempty"`
	PreferredLanguage string       `json:"preferred_language,omitempty"`
	Status            ClientStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Conversation groups imported messages for a client on one channel.
type Conversation struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelWhatsApp is the only channel produced by the current extractors.
const ChannelWhatsApp = "whatsapp"

// ValidationResult reports the outcome of validating a ParsedClientData.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ConflictType describes what field collided during duplicate detection.
type ConflictType string

// Duplicate conflict types.
const (
	ConflictPhone ConflictType = "phone"
	ConflictName  ConflictType = "name"
)

// DuplicateCheckResult reports whether a parsed record matches an existing
// client in the organization.
type DuplicateCheckResult struct {
	IsDuplicate      bool         `json:"is_duplicate"`
	ExistingClientID string       `json:"existing_client_id,omitempty"`
	ConflictType     ConflictType `json:"conflict_type,omitempty"`
}

// OrgSettings holds per-organization import defaults loaded from the store.
// CLI flags override these for a single run.
type OrgSettings struct {
	OrganizationID  string `json:"organization_id"`
	DefaultLanguage string `json:"default_language"`
	PreferLLM       bool   `json:"prefer_llm"`
	SkipDuplicates  bool   `json:"skip_duplicates"`
	LLMModel        string `json:"llm_model,omitempty"`
}
