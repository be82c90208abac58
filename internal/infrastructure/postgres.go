package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

// NewPostgresClient opens a pool against the hosted project's Postgres (DATABASE_URL).
func NewPostgresClient(ctx context.Context, connString string, maxConns int32) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresClient{Pool: pool}, nil
}

// ApplySchema creates every table and function the API relies on, in one transaction.
func (p *PostgresClient) ApplySchema(ctx context.Context, dims int) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, ddl := range SchemaStatements(dims) {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			ObserveUpstream("postgres", err)
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		ObserveUpstream("postgres", err)
		return fmt.Errorf("commit schema: %w", err)
	}
	ObserveUpstream("postgres", nil)
	return nil
}

func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}

// SchemaScript returns the schema as a single script for running in the project's SQL editor.
func SchemaScript(dims int) string {
	return strings.Join(SchemaStatements(dims), ";\n\n") + ";\n"
}

// SchemaStatements lists the DDL in execution order.
func SchemaStatements(dims int) []string {
	if dims <= 0 {
		dims = 1536
	}
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS agents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS bots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT 'telegram',
			token TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			agent_id UUID REFERENCES agents(id) ON DELETE SET NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			webhook_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			bot_id UUID REFERENCES bots(id) ON DELETE CASCADE,
			platform_user_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE NULLS NOT DISTINCT (bot_id, platform_user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			bot_id UUID REFERENCES bots(id) ON DELETE SET NULL,
			contact_id UUID REFERENCES contacts(id) ON DELETE SET NULL,
			chat_id TEXT NOT NULL,
			direction TEXT NOT NULL CHECK (direction IN ('inbound', 'outbound')),
			content TEXT NOT NULL,
			sentiment TEXT,
			sentiment_score DOUBLE PRECISION,
			platform_message_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages (bot_id, chat_id, created_at DESC)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			agent_id UUID REFERENCES agents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding VECTOR(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dims),

		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_documents(
			query_embedding VECTOR(%d),
			match_count INT DEFAULT 5,
			filter_agent_id UUID DEFAULT NULL
		)
		RETURNS TABLE (id UUID, agent_id UUID, content TEXT, similarity DOUBLE PRECISION)
		LANGUAGE sql STABLE AS $$
			SELECT d.id, d.agent_id, d.content, 1 - (d.embedding <=> query_embedding) AS similarity
			FROM documents d
			WHERE filter_agent_id IS NULL OR d.agent_id = filter_agent_id
			ORDER BY d.embedding <=> query_embedding
			LIMIT match_count;
		$$`, dims),

		`CREATE OR REPLACE FUNCTION exec_sql(query TEXT)
		RETURNS JSONB
		LANGUAGE plpgsql SECURITY DEFINER AS $$
		DECLARE
			result JSONB;
		BEGIN
			IF query ~* '^\s*(select|with|values|table)\s' THEN
				EXECUTE format('SELECT COALESCE(jsonb_agg(t), ''[]''::jsonb) FROM (%s) t', query) INTO result;
				RETURN result;
			END IF;
			EXECUTE query;
			RETURN '[]'::jsonb;
		END;
		$$`,

		`REVOKE EXECUTE ON FUNCTION exec_sql(TEXT) FROM PUBLIC, anon, authenticated`,
	}
}
