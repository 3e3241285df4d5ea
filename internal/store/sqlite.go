package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// development use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS session_artifacts (
	organization_id TEXT PRIMARY KEY,
	payload         BLOB,
	status          TEXT NOT NULL DEFAULT 'active',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	phone              TEXT NOT NULL,
	name               TEXT,
	preferred_language TEXT,
	status             TEXT NOT NULL DEFAULT 'new_lead',
	cultural_context   TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization_id, phone)
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL REFERENCES clients(id),
	channel    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (client_id, channel)
);

CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id),
	content           TEXT NOT NULL,
	direction         TEXT NOT NULL,
	sender            TEXT NOT NULL,
	language          TEXT,
	source_message_id TEXT,
	sent_at           DATETIME NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conv_source
	ON messages(conversation_id, source_message_id);

CREATE TABLE IF NOT EXISTS org_settings (
	organization_id  TEXT PRIMARY KEY,
	default_language TEXT NOT NULL DEFAULT 'en',
	prefer_llm       INTEGER NOT NULL DEFAULT 0,
	skip_duplicates  INTEGER NOT NULL DEFAULT 1,
	llm_model        TEXT,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_runs (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	status          TEXT NOT NULL,
	result          TEXT NOT NULL,
	started_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_clients_org_phone ON clients(organization_id, phone);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_org ON import_runs(organization_id, started_at DESC);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Session artifacts ---

func (s *SQLiteStore) HasSessionArtifact(ctx context.Context, orgID string) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx,
		`SELECT payload IS NOT NULL FROM session_artifacts WHERE organization_id = ?`,
		orgID,
	).Scan(&has)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has session artifact")
	}
	return has, nil
}

func (s *SQLiteStore) SaveSessionArtifact(ctx context.Context, orgID string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_artifacts (organization_id, payload, status, updated_at) VALUES (?, ?, 'active', datetime('now'))
		 ON CONFLICT (organization_id) DO UPDATE SET payload = excluded.payload, status = 'active', updated_at = datetime('now')`,
		orgID, payload,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save session artifact")
	}
	return nil
}

func (s *SQLiteStore) GetSessionArtifact(ctx context.Context, orgID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM session_artifacts WHERE organization_id = ?`,
		orgID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session artifact")
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	return payload, nil
}

func (s *SQLiteStore) ClearSessionArtifact(ctx context.Context, orgID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_artifacts SET payload = NULL, status = 'invalidated', updated_at = datetime('now') WHERE organization_id = ?`,
		orgID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: clear session artifact")
	}
	return nil
}

// --- Clients ---

func (s *SQLiteStore) FindClientByPhone(ctx context.Context, orgID, phone string) (*model.Client, error) {
	var (
		c    model.Client
		name sql.NullString
		lang sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, phone, name, preferred_language, status, created_at, updated_at FROM clients WHERE organization_id = ? AND phone = ?`,
		orgID, phone,
	).Scan(&c.ID, &c.OrganizationID, &c.Phone, &name, &lang, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find client by phone")
	}
	c.Name = name.String
	c.PreferredLanguage = lang.String
	return &c, nil
}

// --- Import transaction ---

func (s *SQLiteStore) ImportClient(ctx context.Context, orgID string, data *model.ParsedClientData) (*ImportOutcome, error) {
	var ctxJSON any
	if data.CulturalContext != nil {
		b, err := json.Marshal(data.CulturalContext)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal cultural context")
		}
		ctxJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: import client: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var clientID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO clients (id, organization_id, phone, name, preferred_language, status, cultural_context)
		 VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?)
		 ON CONFLICT (organization_id, phone) DO UPDATE SET
			name = COALESCE(NULLIF(excluded.name, ''), clients.name),
			preferred_language = excluded.preferred_language,
			status = excluded.status,
			cultural_context = COALESCE(excluded.cultural_context, clients.cultural_context),
			updated_at = datetime('now')
		 RETURNING id`,
		uuid.NewString(), orgID, data.Phone, data.Name, data.PreferredLanguage, string(data.DetectedStatus), ctxJSON,
	).Scan(&clientID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert client")
	}

	var conversationID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversations (id, client_id, channel) VALUES (?, ?, ?)
		 ON CONFLICT (client_id, channel) DO UPDATE SET channel = excluded.channel
		 RETURNING id`,
		uuid.NewString(), clientID, model.ChannelWhatsApp,
	).Scan(&conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find-or-create conversation")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO messages (id, conversation_id, content, direction, sender, language, source_message_id, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare message insert")
	}
	defer stmt.Close()

	var inserted int64
	for _, m := range data.Messages {
		var sourceID any
		if m.SourceMessageID != "" {
			sourceID = m.SourceMessageID
		}
		res, err := stmt.ExecContext(ctx,
			uuid.NewString(), conversationID, m.Content, string(m.Direction), string(m.Sender),
			m.Language, sourceID, m.Timestamp.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert message")
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: import client: commit tx")
	}

	return &ImportOutcome{
		ClientID:         clientID,
		ConversationID:   conversationID,
		MessagesInserted: inserted,
	}, nil
}

// --- Organization settings ---

func (s *SQLiteStore) GetOrgSettings(ctx context.Context, orgID string) (*model.OrgSettings, error) {
	var (
		settings model.OrgSettings
		llmModel sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT organization_id, default_language, prefer_llm, skip_duplicates, llm_model FROM org_settings WHERE organization_id = ?`,
		orgID,
	).Scan(&settings.OrganizationID, &settings.DefaultLanguage, &settings.PreferLLM, &settings.SkipDuplicates, &llmModel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get org settings")
	}
	settings.LLMModel = llmModel.String
	return &settings, nil
}

func (s *SQLiteStore) PutOrgSettings(ctx context.Context, settings model.OrgSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO org_settings (organization_id, default_language, prefer_llm, skip_duplicates, llm_model, updated_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), datetime('now'))
		 ON CONFLICT (organization_id) DO UPDATE SET
			default_language = excluded.default_language,
			prefer_llm = excluded.prefer_llm,
			skip_duplicates = excluded.skip_duplicates,
			llm_model = excluded.llm_model,
			updated_at = datetime('now')`,
		settings.OrganizationID, settings.DefaultLanguage, settings.PreferLLM, settings.SkipDuplicates, settings.LLMModel,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: put org settings")
	}
	return nil
}

// --- Import runs ---

func (s *SQLiteStore) SaveRunResult(ctx context.Context, result *model.ImportRunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, organization_id, status, result, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, result = excluded.result, updated_at = datetime('now')`,
		result.RunID, result.OrganizationID, string(result.Status), string(payload), result.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save run result")
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ImportRunResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM import_runs WHERE id = ?`,
		runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}

	var result model.ImportRunResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run result")
	}
	return &result, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRunResult, error) {
	query := `SELECT result FROM import_runs WHERE 1=1`
	var args []any
	if filter.OrganizationID != "" {
		query += ` AND organization_id = ?`
		args = append(args, filter.OrganizationID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var results []model.ImportRunResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run row")
		}
		var result model.ImportRunResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run row")
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return results, nil
}
