package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

const metricColumns = `id, integration_id, timestamp, status, response_time, data_volume, error_message, metadata`

func scanMetric(row rowScanner, extra ...any) (*domain.Metric, error) {
	var (
		m    domain.Metric
		meta []byte
	)
	dest := append([]any{
		&m.ID, &m.IntegrationID, &m.Timestamp, &m.Status,
		&m.ResponseTime, &m.DataVolume, &m.ErrorMessage, &meta,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: metric %d has malformed metadata: %w", m.ID, err)
		}
	}
	return &m, nil
}

func encodeMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %v", domain.ErrInvalidInput, err)
	}
	return string(data), nil
}

// RecordMetric атомарно сохраняет метрику и применяет переход статуса владельца.
// Ошибка на любом шаге откатывает оба изменения.
func (s *Store) RecordMetric(ctx context.Context, m *domain.Metric, t *domain.StatusTransition) (*domain.Metric, *domain.Integration, error) {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, unavailable("begin ingest", err)
	}
	defer tx.Rollback()

	stored := *m
	err = tx.QueryRowContext(ctx, `
		INSERT INTO metrics (integration_id, timestamp, status, response_time, data_volume, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		m.IntegrationID, m.Timestamp, string(m.Status), m.ResponseTime, m.DataVolume, m.ErrorMessage, meta,
	).Scan(&stored.ID)
	if err != nil {
		// интеграцию удалили между проверкой и вставкой
		if isForeignKeyViolation(err) {
			return nil, nil, fmt.Errorf("postgres: integration %d: %w", m.IntegrationID, domain.ErrNotFound)
		}
		return nil, nil, unavailable("insert metric", err)
	}

	var updated *domain.Integration
	if t != nil {
		row := tx.QueryRowContext(ctx, `
			UPDATE integrations
			SET status = $1, last_modified = $2
			WHERE id = $3
			RETURNING `+integrationColumns,
			string(t.To), t.At, t.IntegrationID,
		)
		updated, err = scanIntegration(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, fmt.Errorf("postgres: integration %d: %w", t.IntegrationID, domain.ErrNotFound)
			}
			return nil, nil, unavailable("apply status transition", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, unavailable("commit ingest", err)
	}
	return &stored, updated, nil
}

// whereMetrics собирает WHERE по фильтру; prefix нужен для запросов с join.
func whereMetrics(f domain.MetricFilter, prefix string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.IntegrationID != 0 {
		args = append(args, f.IntegrationID)
		conds = append(conds, fmt.Sprintf("%sintegration_id = $%d", prefix, len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("%stimestamp >= $%d", prefix, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindMetrics выборка по фильтру, новые первыми.
func (s *Store) FindMetrics(ctx context.Context, f domain.MetricFilter) ([]domain.Metric, error) {
	where, args := whereMetrics(f, "")
	query := `SELECT ` + metricColumns + ` FROM metrics` + where + ` ORDER BY timestamp DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("find metrics", err)
	}
	defer rows.Close()

	results := make([]domain.Metric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, unavailable("scan metric", err)
		}
		results = append(results, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows iteration", err)
	}
	return results, nil
}

func (s *Store) CountMetrics(ctx context.Context, f domain.MetricFilter) (int64, error) {
	where, args := whereMetrics(f, "")

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metrics`+where, args...).Scan(&n); err != nil {
		return 0, unavailable("count metrics", err)
	}
	return n, nil
}

// InsertMetricsBatch пакетная вставка без побочных эффектов на статус.
// Используется генератором тестовых данных, а не путем приема.
func (s *Store) InsertMetricsBatch(ctx context.Context, metrics []domain.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	// Количество колонок во вставке
	numFields := 7
	placeholders := make([]string, 0, len(metrics))
	vals := make([]any, 0, len(metrics)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, m := range metrics {
		p := i * numFields
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7))

		meta, err := encodeMetadata(m.Metadata)
		if err != nil {
			return err
		}
		vals = append(vals,
			m.IntegrationID, m.Timestamp, string(m.Status), m.ResponseTime, m.DataVolume, m.ErrorMessage, meta,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO metrics (integration_id, timestamp, status, response_time, data_volume, error_message, metadata) VALUES %s",
		strings.Join(placeholders, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, vals...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("postgres: batch references a missing integration: %w", domain.ErrNotFound)
		}
		return unavailable("insert metrics batch", err)
	}
	s.logger.Debug("metrics batch written", zap.Int("count", len(metrics)))
	return nil
}
