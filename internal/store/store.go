// Package store persists clients, conversations, messages, session
// artifacts, organization settings, and import run results. Two drivers
// implement the same interface: postgres (production) and sqlite (local).
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// ErrSessionNotFound is returned by GetSessionArtifact when no payload is
// stored for the organization.
var ErrSessionNotFound = eris.New("store: session artifact not found")

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = eris.New("store: import run not found")

// RunFilter specifies criteria for listing import runs.
type RunFilter struct {
	OrganizationID string          `json:"organization_id,omitempty"`
	Status         model.RunStatus `json:"status,omitempty"`
	Limit          int             `json:"limit,omitempty"`
}

// ImportOutcome reports what one transactional client import touched.
type ImportOutcome struct {
	ClientID         string `json:"client_id"`
	ConversationID   string `json:"conversation_id"`
	MessagesInserted int64  `json:"messages_inserted"`
}

// Store defines the persistence interface for the import pipeline.
type Store interface {
	// Session artifacts (one row per organization, upsert semantics).
	HasSessionArtifact(ctx context.Context, orgID string) (bool, error)
	SaveSessionArtifact(ctx context.Context, orgID string, payload []byte) error
	GetSessionArtifact(ctx context.Context, orgID string) ([]byte, error)
	ClearSessionArtifact(ctx context.Context, orgID string) error

	// Clients. FindClientByPhone returns (nil, nil) when absent.
	FindClientByPhone(ctx context.Context, orgID, phone string) (*model.Client, error)

	// ImportClient persists client + conversation + messages in a single
	// transaction: client upsert by (org, phone), conversation
	// find-or-create by (client, channel), message batch insert skipping
	// conflicts on source message id.
	ImportClient(ctx context.Context, orgID string, data *model.ParsedClientData) (*ImportOutcome, error)

	// Organization settings. GetOrgSettings returns (nil, nil) when absent.
	GetOrgSettings(ctx context.Context, orgID string) (*model.OrgSettings, error)
	PutOrgSettings(ctx context.Context, settings model.OrgSettings) error

	// Import runs.
	SaveRunResult(ctx context.Context, result *model.ImportRunResult) error
	GetRun(ctx context.Context, runID string) (*model.ImportRunResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRunResult, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
