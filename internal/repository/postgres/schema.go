package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS integrations (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT        NOT NULL,
		description   TEXT        NOT NULL DEFAULT '',
		type          TEXT        NOT NULL CHECK (type IN ('API', 'Database', 'File', 'Message Queue', 'Custom')),
		status        TEXT        NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Inactive', 'Error')),
		config        JSONB       NOT NULL DEFAULT '{}',
		source        TEXT        NOT NULL,
		destination   TEXT        NOT NULL,
		created_by    TEXT        NOT NULL DEFAULT 'system',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_modified TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id             BIGSERIAL PRIMARY KEY,
		integration_id BIGINT      NOT NULL REFERENCES integrations (id) ON DELETE CASCADE,
		timestamp      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status         TEXT        NOT NULL CHECK (status IN ('Success', 'Failure', 'Warning', 'Processing')),
		response_time  BIGINT      NOT NULL DEFAULT 0 CHECK (response_time >= 0),
		data_volume    BIGINT      NOT NULL DEFAULT 0 CHECK (data_volume >= 0),
		error_message  TEXT        NOT NULL DEFAULT '',
		metadata       JSONB       NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS metrics_integration_ts_idx ON metrics (integration_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS metrics_ts_idx ON metrics (timestamp DESC)`,
}

// Migrate создает таблицы и индексы, если их еще нет. Идемпотентна.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable(fmt.Sprintf("migrate step %d", i+1), err)
		}
	}
	return nil
}
