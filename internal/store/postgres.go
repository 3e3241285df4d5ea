package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadvault/chatimport-cli/internal/db"
	"github.com/leadvault/chatimport-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of the import loop.
var preparedStatements = map[string]string{
	"find_client_by_phone": `SELECT id, organization_id, phone, name, preferred_language, status, created_at, updated_at FROM clients WHERE organization_id = $1 AND phone = $2`,
	"has_session":          `SELECT payload IS NOT NULL FROM session_artifacts WHERE organization_id = $1`,
	"get_session":          `SELECT payload FROM session_artifacts WHERE organization_id = $1`,
	"save_session":         `INSERT INTO session_artifacts (organization_id, payload, status, updated_at) VALUES ($1, $2, 'active', now()) ON CONFLICT (organization_id) DO UPDATE SET payload = EXCLUDED.payload, status = 'active', updated_at = now()`,
	"clear_session":        `UPDATE session_artifacts SET payload = NULL, status = 'invalidated', updated_at = now() WHERE organization_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS session_artifacts (
	organization_id TEXT PRIMARY KEY,
	payload         BYTEA,
	status          TEXT NOT NULL DEFAULT 'active',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	phone              TEXT NOT NULL,
	name               TEXT,
	preferred_language TEXT,
	status             TEXT NOT NULL DEFAULT 'new_lead',
	cultural_context   JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, phone)
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL REFERENCES clients(id),
	channel    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	sent_at           TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conv_source
	ON messages(conversation_id, source_message_id);

CREATE TABLE IF NOT EXISTS org_settings (
	organization_id  TEXT PRIMARY KEY,
	default_language TEXT NOT NULL DEFAULT 'en',
	prefer_llm       BOOLEAN NOT NULL DEFAULT false,
	skip_duplicates  BOOLEAN NOT NULL DEFAULT true,
	llm_model        TEXT,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_runs (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	status          TEXT NOT NULL,
	result          JSONB NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_clients_org_phone ON clients(organization_id, phone);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_org ON import_runs(organization_id, started_at DESC);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Session artifacts ---

func (s *PostgresStore) HasSessionArtifact(ctx context.Context, orgID string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT payload IS NOT NULL FROM session_artifacts WHERE organization_id = $1`,
		orgID,
	).Scan(&has)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: has session artifact")
	}
	return has, nil
}

func (s *PostgresStore) SaveSessionArtifact(ctx context.Context, orgID string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_artifacts (organization_id, payload, status, updated_at) VALUES ($1, $2, 'active', now())
		 ON CONFLICT (organization_id) DO UPDATE SET payload = EXCLUDED.payload, status = 'active', updated_at = now()`,
		orgID, payload,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save session artifact")
	}
	return nil
}

func (s *PostgresStore) GetSessionArtifact(ctx context.Context, orgID string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM session_artifacts WHERE organization_id = $1`,
		orgID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get session artifact")
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	return payload, nil
}

func (s *PostgresStore) ClearSessionArtifact(ctx context.Context, orgID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE session_artifacts SET payload = NULL, status = 'invalidated', updated_at = now() WHERE organization_id = $1`,
		orgID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: clear session artifact")
	}
	return nil
}

// --- Clients ---

func (s *PostgresStore) FindClientByPhone(ctx context.Context, orgID, phone string) (*model.Client, error) {
	var (
		c    model.Client
		name *string
		lang *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, phone, name, preferred_language, status, created_at, updated_at FROM clients WHERE organization_id = $1 AND phone = $2`,
		orgID, phone,
	).Scan(&c.ID, &c.OrganizationID, &c.Phone, &name, &lang, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find client by phone")
	}
	if name != nil {
		c.Name = *name
	}
	if lang != nil {
		c.PreferredLanguage = *lang
	}
	return &c, nil
}

// --- Import transaction ---

func (s *PostgresStore) ImportClient(ctx context.Context, orgID string, data *model.ParsedClientData) (*ImportOutcome, error) {
	ctxJSON, err := marshalNullable(data.CulturalContext)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal cultural context")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: import client: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var clientID string
	err = tx.QueryRow(ctx,
		`INSERT INTO clients (id, organization_id, phone, name, preferred_language, status, cultural_context)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		 ON CONFLICT (organization_id, phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), clients.name),
			preferred_language = EXCLUDED.preferred_language,
			status = EXCLUDED.status,
			cultural_context = COALESCE(EXCLUDED.cultural_context, clients.cultural_context),
			updated_at = now()
		 RETURNING id`,
		uuid.NewString(), orgID, data.Phone, data.Name, data.PreferredLanguage, string(data.DetectedStatus), ctxJSON,
	).Scan(&clientID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert client")
	}

	var conversationID string
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (id, client_id, channel) VALUES ($1, $2, $3)
		 ON CONFLICT (client_id, channel) DO UPDATE SET channel = EXCLUDED.channel
		 RETURNING id`,
		uuid.NewString(), clientID, model.ChannelWhatsApp,
	).Scan(&conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find-or-create conversation")
	}

	rows := make([][]any, 0, len(data.Messages))
	for _, m := range data.Messages {
		var sourceID any
		if m.SourceMessageID != "" {
			sourceID = m.SourceMessageID
		}
		rows = append(rows, []any{
			uuid.NewString(), conversationID, m.Content, string(m.Direction), string(m.Sender),
			m.Language, sourceID, m.Timestamp,
		})
	}
	inserted, err := db.InsertIgnoreTx(ctx, tx, "messages",
		[]string{"id", "conversation_id", "content", "direction", "sender", "language", "source_message_id", "sent_at"},
		[]string{"conversation_id", "source_message_id"},
		rows,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert messages")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: import client: commit tx")
	}

	return &ImportOutcome{
		ClientID:         clientID,
		ConversationID:   conversationID,
		MessagesInserted: inserted,
	}, nil
}

// --- Organization settings ---

func (s *PostgresStore) GetOrgSettings(ctx context.Context, orgID string) (*model.OrgSettings, error) {
	var (
		settings model.OrgSettings
		llmModel *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT organization_id, default_language, prefer_llm, skip_duplicates, llm_model FROM org_settings WHERE organization_id = $1`,
		orgID,
	).Scan(&settings.OrganizationID, &settings.DefaultLanguage, &settings.PreferLLM, &settings.SkipDuplicates, &llmModel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get org settings")
	}
	if llmModel != nil {
		settings.LLMModel = *llmModel
	}
	return &settings, nil
}

func (s *PostgresStore) PutOrgSettings(ctx context.Context, settings model.OrgSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO org_settings (organization_id, default_language, prefer_llm, skip_duplicates, llm_model, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
		 ON CONFLICT (organization_id) DO UPDATE SET
			default_language = EXCLUDED.default_language,
			prefer_llm = EXCLUDED.prefer_llm,
			skip_duplicates = EXCLUDED.skip_duplicates,
			llm_model = EXCLUDED.llm_model,
			updated_at = now()`,
		settings.OrganizationID, settings.DefaultLanguage, settings.PreferLLM, settings.SkipDuplicates, settings.LLMModel,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: put org settings")
	}
	return nil
}

// --- Import runs ---

func (s *PostgresStore) SaveRunResult(ctx context.Context, result *model.ImportRunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, organization_id, status, result, started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, result = EXCLUDED.result, updated_at = now()`,
		result.RunID, result.OrganizationID, string(result.Status), payload, result.StartedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save run result")
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ImportRunResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM import_runs WHERE id = $1`,
		runID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}

	var result model.ImportRunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run result")
	}
	return &result, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRunResult, error) {
	query := `SELECT result FROM import_runs WHERE 1=1`
	var args []any
	if filter.OrganizationID != "" {
		args = append(args, filter.OrganizationID)
		query += ` AND organization_id = $1`
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var results []model.ImportRunResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run row")
		}
		var result model.ImportRunResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run row")
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return results, nil
}

func marshalNullable(ctx *model.CulturalContext) (any, error) {
	if ctx == nil {
		return nil, nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return nil, err
	}
	return b, nil
}
