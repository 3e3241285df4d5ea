package importer

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadvault/chatimport-cli/internal/classify"
	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/store"
)

func newTestImporter(st *mockStore, ex *mockExtractor) *Importer {
	detector := classify.NewDetector(classify.NewHeuristicClassifier(), nil, false, true)
	return New(st, ex, detector, NewDuplicateDetector(st, nil), NewSettingsLoader(st, nil))
}

func expectDefaults(st *mockStore) {
	st.On("GetOrgSettings", mock.Anything, testOrg).Return(nil, nil)
	st.On("SaveRunResult", mock.Anything, mock.Anything).Return(nil)
}

func recentHistory(content string) []model.ExtractedMessage {
	return []model.ExtractedMessage{
		{ID: "m1", Content: content, Timestamp: time.Now().Add(-2 * time.Hour)},
	}
}

func TestRunImportsNewContacts(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	contacts := []model.ExtractedContact{
		{Phone: "+79123456789", DisplayName: "Ivan"},
		{Phone: "+972541234567", DisplayName: "Yael"},
	}
	ex.On("ExtractContacts", mock.Anything, 0).Return(contacts, nil)
	ex.On("ExtractMessages", mock.Anything, "+79123456789").Return(recentHistory("хочу тур"), nil)
	ex.On("ExtractMessages", mock.Anything, "+972541234567").Return(recentHistory("hello"), nil)

	st.On("FindClientByPhone", mock.Anything, testOrg, mock.Anything).Return(nil, nil)
	st.On("ImportClient", mock.Anything, testOrg, mock.Anything).
		Return(&store.ImportOutcome{ClientID: "c1", ConversationID: "v1", MessagesInserted: 1}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.TotalContacts)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.SkippedDuplicates)
	assert.Empty(t, result.Errors)
	assert.False(t, result.FinishedAt.IsZero())
	st.AssertExpectations(t)
}

func TestRunQualifiedLeadEndToEnd(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).
		Return([]model.ExtractedContact{{Phone: "+15551234567"}}, nil)
	ex.On("ExtractMessages", mock.Anything, "+15551234567").
		Return([]model.ExtractedMessage{
			{ID: "m1", Content: "Hi, I'm Alice", Timestamp: time.Now().Add(-48 * time.Hour)},
			{ID: "m2", Content: "When is the tour available?", Timestamp: time.Now().Add(-24 * time.Hour)},
		}, nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+15551234567").Return(nil, nil)
	st.On("ImportClient", mock.Anything, testOrg, mock.MatchedBy(func(data *model.ParsedClientData) bool {
		return data.Name == "Alice" &&
			data.PreferredLanguage == "en" &&
			data.DetectedStatus == model.StatusQualified
	})).Return(&store.ImportOutcome{ClientID: "c1", MessagesInserted: 2}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	st.AssertExpectations(t)
}

func TestRunSkipsDuplicatesByDefault(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).
		Return([]model.ExtractedContact{{Phone: "+79123456789", DisplayName: "Ivan"}}, nil)
	ex.On("ExtractMessages", mock.Anything, "+79123456789").Return(recentHistory("привет"), nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+79123456789").
		Return(&model.Client{ID: "existing", Phone: "+79123456789"}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.SkippedDuplicates)
	assert.Equal(t, 0, result.Succeeded)
	st.AssertNotCalled(t, "ImportClient", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunReimportsDuplicatesWhenDisabled(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).
		Return([]model.ExtractedContact{{Phone: "+79123456789", DisplayName: "Ivan"}}, nil)
	ex.On("ExtractMessages", mock.Anything, "+79123456789").Return(recentHistory("привет"), nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+79123456789").
		Return(&model.Client{ID: "existing", Phone: "+79123456789"}, nil)
	st.On("ImportClient", mock.Anything, testOrg, mock.Anything).
		Return(&store.ImportOutcome{ClientID: "existing", MessagesInserted: 1}, nil)

	skip := false
	result, err := newTestImporter(st, ex).Run(context.Background(), Options{
		OrganizationID: testOrg,
		SkipDuplicates: &skip,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.SkippedDuplicates)
	assert.Equal(t, 1, result.Succeeded)
	st.AssertExpectations(t)
}

func TestRunCollectsPerContactFailures(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	contacts := []model.ExtractedContact{
		{Phone: "bad-phone", DisplayName: "Broken"},
		{Phone: "+972541234567", DisplayName: "Yael"},
	}
	ex.On("ExtractContacts", mock.Anything, 0).Return(contacts, nil)
	ex.On("ExtractMessages", mock.Anything, "bad-phone").Return(recentHistory("hi"), nil)
	ex.On("ExtractMessages", mock.Anything, "+972541234567").Return(recentHistory("hello"), nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+972541234567").Return(nil, nil)
	st.On("ImportClient", mock.Anything, testOrg, mock.Anything).
		Return(&store.ImportOutcome{ClientID: "c1"}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, result.Status, "per-contact failures never fail the run")
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Broken", result.Errors[0].ContactRef)
	assert.Contains(t, result.Errors[0].Message, "validation failed")
}

func TestRunPersistenceFailureRecordedPerContact(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).
		Return([]model.ExtractedContact{{Phone: "+79123456789", DisplayName: "Ivan"}}, nil)
	ex.On("ExtractMessages", mock.Anything, "+79123456789").Return(recentHistory("привет"), nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+79123456789").Return(nil, nil)
	st.On("ImportClient", mock.Anything, testOrg, mock.Anything).
		Return(nil, eris.New("deadlock detected"))

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "persisting")
}

func TestRunDryRunSkipsPersistence(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).
		Return([]model.ExtractedContact{{Phone: "+79123456789", DisplayName: "Ivan"}}, nil)
	ex.On("ExtractMessages", mock.Anything, "+79123456789").Return(recentHistory("привет"), nil)
	st.On("FindClientByPhone", mock.Anything, testOrg, "+79123456789").Return(nil, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{
		OrganizationID: testOrg,
		DryRun:         true,
	})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Succeeded)
	st.AssertNotCalled(t, "ImportClient", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunLimitPassedToExtractor(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 5).Return([]model.ExtractedContact{}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{
		OrganizationID: testOrg,
		Limit:          5,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalContacts)
	ex.AssertExpectations(t)
}

func TestRunContactListingFailureFailsRun(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	ex.On("ExtractContacts", mock.Anything, 0).Return(nil, eris.New("session expired"))

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.Error(t, err)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "contacts", extractErr.Stage)
	require.NotNil(t, result)
	assert.Equal(t, model.RunStatusFailed, result.Status)
}

func TestRunCancellationPausesRun(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)

	contacts := []model.ExtractedContact{
		{Phone: "+79123456789"},
		{Phone: "+972541234567"},
	}
	ex.On("ExtractContacts", mock.Anything, 0).Return(contacts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestImporter(st, ex).Run(ctx, Options{OrganizationID: testOrg})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusPaused, result.Status)
	assert.Equal(t, 2, result.TotalContacts)
	assert.Equal(t, 0, result.Processed, "no new contacts dispatched after cancellation")
	st.AssertNotCalled(t, "ImportClient", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSettingsFailureIsPreLoopFailure(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	st.On("GetOrgSettings", mock.Anything, testOrg).Return(nil, eris.New("db down"))

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{OrganizationID: testOrg})
	require.Error(t, err)
	assert.Nil(t, result)
	ex.AssertNotCalled(t, "ExtractContacts", mock.Anything, mock.Anything)
}

func TestRunUsesProvidedRunID(t *testing.T) {
	st := &mockStore{}
	ex := &mockExtractor{}
	expectDefaults(st)
	ex.On("ExtractContacts", mock.Anything, 0).Return([]model.ExtractedContact{}, nil)

	result, err := newTestImporter(st, ex).Run(context.Background(), Options{
		OrganizationID: testOrg,
		RunID:          "fixed-run-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-run-id", result.RunID)
}
