// Package session makes a browser-automation login portable across process
// restarts. The serialized login state is held as an opaque artifact in the
// database, one row per organization; the automation layer only ever sees
// local staging files that this package writes and cleans up.
package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadvault/chatimport-cli/internal/store"
)

// Manager is the only sanctioned path between the automation layer's local
// staging files and the session artifact rows in the store.
type Manager struct {
	store      store.Store
	stagingDir string
}

// NewManager creates a Manager staging artifacts under stagingDir. The
// directory is created on first use.
func NewManager(st store.Store, stagingDir string) *Manager {
	return &Manager{store: st, stagingDir: stagingDir}
}

// Exists reports whether a non-empty session artifact is stored for the
// organization.
func (m *Manager) Exists(ctx context.Context, orgID string) (bool, error) {
	return m.store.HasSessionArtifact(ctx, orgID)
}

// Save upserts the artifact for the organization. Concurrent saves are
// last-writer-wins; there are no partial writes.
func (m *Manager) Save(ctx context.Context, orgID string, payload []byte) error {
	if err := m.store.SaveSessionArtifact(ctx, orgID, payload); err != nil {
		return eris.Wrapf(err, "session: save artifact for org %s", orgID)
	}
	return nil
}

// Extract returns the stored payload, or store.ErrSessionNotFound when no
// artifact exists. An extract failure is fatal to session restoration: the
// caller must fall back to a fresh interactive login.
func (m *Manager) Extract(ctx context.Context, orgID string) ([]byte, error) {
	payload, err := m.store.GetSessionArtifact(ctx, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "session: extract artifact for org %s", orgID)
	}
	return payload, nil
}

// Delete soft-invalidates the artifact: the payload is cleared but the row
// stays, so re-authentication reuses the same primary key.
func (m *Manager) Delete(ctx context.Context, orgID string) error {
	if err := m.store.ClearSessionArtifact(ctx, orgID); err != nil {
		return eris.Wrapf(err, "session: delete artifact for org %s", orgID)
	}
	return nil
}

// Stage writes payload to a new staging file and returns its path. The
// file belongs to the caller until Commit or Discard.
func (m *Manager) Stage(payload []byte) (string, error) {
	if err := os.MkdirAll(m.stagingDir, 0o700); err != nil {
		return "", eris.Wrap(err, "session: create staging dir")
	}
	f, err := os.CreateTemp(m.stagingDir, "session-*.artifact")
	if err != nil {
		return "", eris.Wrap(err, "session: create staging file")
	}
	path := f.Name()
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(path)
		return "", eris.Wrap(err, "session: write staging file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", eris.Wrap(err, "session: close staging file")
	}
	return path, nil
}

// Commit reads a staged artifact, saves it to the store, and removes the
// staging file. The file is removed only after a successful save.
func (m *Manager) Commit(ctx context.Context, orgID, localPath string) error {
	payload, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrap(err, "session: read staged artifact")
	}
	if err := m.Save(ctx, orgID, payload); err != nil {
		return err
	}
	if err := os.Remove(localPath); err != nil {
		zap.L().Warn("session: staged artifact cleanup failed",
			zap.String("path", localPath),
			zap.Error(err),
		)
	}
	return nil
}

// Discard removes a staged artifact without saving it.
func (m *Manager) Discard(localPath string) {
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("session: discard staged artifact failed",
			zap.String("path", localPath),
			zap.Error(err),
		)
	}
}

// Restore extracts the stored artifact into a staging file for the
// automation layer to consume and returns its path.
func (m *Manager) Restore(ctx context.Context, orgID string) (string, error) {
	payload, err := m.Extract(ctx, orgID)
	if err != nil {
		return "", err
	}
	return m.Stage(payload)
}

// StagingDir returns the staging directory path.
func (m *Manager) StagingDir() string {
	return m.stagingDir
}

// CleanStaging removes leftover staging files, e.g. after a crash.
func (m *Manager) CleanStaging() error {
	matches, err := filepath.Glob(filepath.Join(m.stagingDir, "session-*.artifact"))
	if err != nil {
		return eris.Wrap(err, "session: glob staging dir")
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "session: remove stale staging file %s", path)
		}
	}
	return nil
}
