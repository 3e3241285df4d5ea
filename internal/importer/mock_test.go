package importer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) HasSessionArtifact(ctx context.Context, orgID string) (bool, error) {
	args := m.Called(ctx, orgID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SaveSessionArtifact(ctx context.Context, orgID string, payload []byte) error {
	return m.Called(ctx, orgID, payload).Error(0)
}

func (m *mockStore) GetSessionArtifact(ctx context.Context, orgID string) ([]byte, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStore) ClearSessionArtifact(ctx context.Context, orgID string) error {
	return m.Called(ctx, orgID).Error(0)
}

func (m *mockStore) FindClientByPhone(ctx context.Context, orgID, phone string) (*model.Client, error) {
	args := m.Called(ctx, orgID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockStore) ImportClient(ctx context.Context, orgID string, data *model.ParsedClientData) (*store.ImportOutcome, error) {
	args := m.Called(ctx, orgID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ImportOutcome), args.Error(1)
}

func (m *mockStore) GetOrgSettings(ctx context.Context, orgID string) (*model.OrgSettings, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrgSettings), args.Error(1)
}

func (m *mockStore) PutOrgSettings(ctx context.Context, settings model.OrgSettings) error {
	return m.Called(ctx, settings).Error(0)
}

func (m *mockStore) SaveRunResult(ctx context.Context, result *model.ImportRunResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.ImportRunResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportRunResult), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ImportRunResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ImportRunResult), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractContacts(ctx context.Context, limit int) ([]model.ExtractedContact, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExtractedContact), args.Error(1)
}

func (m *mockExtractor) ExtractMessages(ctx context.Context, phone string) ([]model.ExtractedMessage, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExtractedMessage), args.Error(1)
}
