package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xela07ax/integrationhub/internal/domain"
)

const integrationColumns = `id, name, description, type, status, config, source, destination, created_by, created_at, last_modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (*domain.Integration, error) {
	var (
		in           domain.Integration
		cfg          []byte
		lastModified sql.NullTime
	)
	err := row.Scan(
		&in.ID, &in.Name, &in.Description, &in.Type, &in.Status, &cfg,
		&in.Source, &in.Destination, &in.CreatedBy, &in.CreatedAt, &lastModified,
	)
	if err != nil {
		return nil, err
	}
	if lastModified.Valid {
		val := lastModified.Time
		in.LastModified = &val
	}
	in.Config, err = domain.DecodeConfig(in.Type, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: integration %d has malformed config: %w", in.ID, err)
	}
	return &in, nil
}

// CreateIntegration вставляет интеграцию и возвращает ее с присвоенным id.
func (s *Store) CreateIntegration(ctx context.Context, in *domain.Integration) (*domain.Integration, error) {
	cfg, err := domain.EncodeConfig(in.Config)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO integrations (name, description, type, status, config, source, destination, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	out := *in
	err = s.db.QueryRowContext(ctx, query,
		in.Name, in.Description, string(in.Type), string(in.Status), string(cfg),
		in.Source, in.Destination, in.CreatedBy, in.CreatedAt,
	).Scan(&out.ID)
	if err != nil {
		return nil, unavailable("create integration", err)
	}
	return &out, nil
}

func (s *Store) GetIntegration(ctx context.Context, id int64) (*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`

	in, err := scanIntegration(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres: integration %d: %w", id, domain.ErrNotFound)
		}
		return nil, unavailable("get integration", err)
	}
	return in, nil
}

// ListIntegrations возвращает все интеграции, новые первыми.
func (s *Store) ListIntegrations(ctx context.Context) ([]domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("list integrations", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]domain.Integration, 0)
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, unavailable("scan integration", err)
		}
		results = append(results, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows iteration", err)
	}
	return results, nil
}

// UpdateIntegration читает строку под FOR UPDATE, применяет mutate и пишет результат
// в той же транзакции. Параллельный RecordMetric ждет блокировку строки,
// поэтому выставленный им статус Error не перетирается устаревшей копией.
func (s *Store) UpdateIntegration(ctx context.Context, id int64, mutate domain.IntegrationMutation) (*domain.Integration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin update", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1 FOR UPDATE`
	cur, err := scanIntegration(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres: integration %d: %w", id, domain.ErrNotFound)
		}
		return nil, unavailable("lock integration", err)
	}

	next, err := mutate(*cur)
	if err != nil {
		return nil, err
	}
	cfg, err := domain.EncodeConfig(next.Config)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE integrations
		SET name = $1,
		    description = $2,
		    type = $3,
		    status = $4,
		    config = $5,
		    source = $6,
		    destination = $7,
		    last_modified = $8
		WHERE id = $9`

	_, err = tx.ExecContext(ctx, update,
		next.Name, next.Description, string(next.Type), string(next.Status), string(cfg),
		next.Source, next.Destination, next.LastModified, id,
	)
	if err != nil {
		return nil, unavailable("update integration", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit update", err)
	}
	out := *next
	out.ID = id
	return &out, nil
}

// DeleteIntegration удаляет метрики и саму интеграцию в одной транзакции.
func (s *Store) DeleteIntegration(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE integration_id = $1`, id); err != nil {
		return unavailable("delete metrics", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete integration", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("postgres: integration %d: %w", id, domain.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit delete", err)
	}
	return nil
}
