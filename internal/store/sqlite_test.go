package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadvault/chatimport-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Session artifacts ---

func TestSQLite_SessionArtifact_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	payload := []byte("opaque serialized login state \x00\x01\x02")
	require.NoError(t, st.SaveSessionArtifact(ctx, "org-1", payload))

	got, err := st.GetSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	has, err := st.HasSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSQLite_SessionArtifact_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetSessionArtifact(ctx, "org-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	has, err := st.HasSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLite_SessionArtifact_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSessionArtifact(ctx, "org-1", []byte("first")))
	require.NoError(t, st.SaveSessionArtifact(ctx, "org-1", []byte("second")))

	got, err := st.GetSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestSQLite_SessionArtifact_ClearInvalidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSessionArtifact(ctx, "org-1", []byte("state")))
	require.NoError(t, st.ClearSessionArtifact(ctx, "org-1"))

	// The row survives with a NULL payload.
	_, err := st.GetSessionArtifact(ctx, "org-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	has, err := st.HasSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, has)

	// Re-authentication reuses the same primary key.
	require.NoError(t, st.SaveSessionArtifact(ctx, "org-1", []byte("fresh")))
	got, err := st.GetSessionArtifact(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

// --- Clients / import transaction ---

func TestSQLite_FindClientByPhone_Absent(t *testing.T) {
	st := newTestSQLiteStore(t)

	client, err := st.FindClientByPhone(context.Background(), "org-1", "+15551234567")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestSQLite_ImportClient_CreatesEverything(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	data := importData()

	outcome, err := st.ImportClient(ctx, "org-1", data)
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.ClientID)
	assert.NotEmpty(t, outcome.ConversationID)
	assert.Equal(t, int64(2), outcome.MessagesInserted)

	client, err := st.FindClientByPhone(ctx, "org-1", data.Phone)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, outcome.ClientID, client.ID)
	assert.Equal(t, "Ivan", client.Name)
	assert.Equal(t, "ru", client.PreferredLanguage)
	assert.Equal(t, model.StatusQualified, client.Status)
}

func TestSQLite_ImportClient_ReimportIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	data := importData()

	first, err := st.ImportClient(ctx, "org-1", data)
	require.NoError(t, err)

	second, err := st.ImportClient(ctx, "org-1", data)
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, int64(0), second.MessagesInserted, "same source message ids must not duplicate")
}

func TestSQLite_ImportClient_UpdateKeepsExistingName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	data := importData()
	_, err := st.ImportClient(ctx, "org-1", data)
	require.NoError(t, err)

	// A re-import without an extracted name must not blank the stored one.
	update := importData()
	update.Name = ""
	update.DetectedStatus = model.StatusSold
	_, err = st.ImportClient(ctx, "org-1", update)
	require.NoError(t, err)

	client, err := st.FindClientByPhone(ctx, "org-1", data.Phone)
	require.NoError(t, err)
	assert.Equal(t, "Ivan", client.Name)
	assert.Equal(t, model.StatusSold, client.Status)
}

func TestSQLite_ImportClient_OrgsAreIsolated(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	data := importData()

	_, err := st.ImportClient(ctx, "org-1", data)
	require.NoError(t, err)

	client, err := st.FindClientByPhone(ctx, "org-2", data.Phone)
	require.NoError(t, err)
	assert.Nil(t, client, "same phone under another organization is a different client")
}

// --- Organization settings ---

func TestSQLite_OrgSettings_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	settings, err := st.GetOrgSettings(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, settings)

	in := model.OrgSettings{
		OrganizationID:  "org-1",
		DefaultLanguage: "he",
		PreferLLM:       true,
		SkipDuplicates:  false,
		LLMModel:        "claude-haiku-4-5-20251001",
	}
	require.NoError(t, st.PutOrgSettings(ctx, in))

	got, err := st.GetOrgSettings(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)

	in.DefaultLanguage = "ru"
	require.NoError(t, st.PutOrgSettings(ctx, in))
	got, err = st.GetOrgSettings(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "ru", got.DefaultLanguage)
}

// --- Import runs ---

func TestSQLite_RunResult_SaveGetUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	result := runResult("run-1", model.RunStatusRunning)
	require.NoError(t, st.SaveRunResult(ctx, result))

	result.Status = model.RunStatusCompleted
	result.FinishedAt = result.StartedAt.Add(time.Minute)
	require.NoError(t, st.SaveRunResult(ctx, result))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Succeeded)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLite_ListRuns_FiltersAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := runResult("run-1", model.RunStatusCompleted)
	older.StartedAt = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	newer := runResult("run-2", model.RunStatusFailed)
	newer.StartedAt = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	other := runResult("run-3", model.RunStatusCompleted)
	other.OrganizationID = "org-2"

	for _, r := range []*model.ImportRunResult{older, newer, other} {
		require.NoError(t, st.SaveRunResult(ctx, r))
	}

	runs, err := st.ListRuns(ctx, RunFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID, "newest first")
	assert.Equal(t, "run-1", runs[1].RunID)

	runs, err = st.ListRuns(ctx, RunFilter{OrganizationID: "org-1", Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].RunID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
