package postgres

import (
	"context"
	"time"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// IntegrationCounts счетчики по текущему состоянию, без окна.
func (s *Store) IntegrationCounts(ctx context.Context) (domain.IntegrationCounts, error) {
	var c domain.IntegrationCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Active'),
			COUNT(*) FILTER (WHERE status = 'Error'),
			COUNT(*) FILTER (WHERE status = 'Inactive')
		FROM integrations`).Scan(&c.Total, &c.Active, &c.Error, &c.Inactive)
	if err != nil {
		return domain.IntegrationCounts{}, unavailable("integration counts", err)
	}
	return c, nil
}

// CountMetricsByStatus распределение метрик по статусам в окне.
func (s *Store) CountMetricsByStatus(ctx context.Context, since time.Time) ([]domain.StatusCount, error) {
	where, args := whereMetrics(domain.MetricFilter{Since: since}, "")

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM metrics`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, unavailable("count by status", err)
	}
	defer rows.Close()

	counts := make(map[domain.MetricStatus]int64)
	for rows.Next() {
		var (
			st domain.MetricStatus
			n  int64
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, unavailable("scan status count", err)
		}
		counts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows iteration", err)
	}

	// стабильный порядок по перечислению статусов
	results := make([]domain.StatusCount, 0, len(counts))
	for _, st := range domain.MetricStatuses {
		if n, ok := counts[st]; ok {
			results = append(results, domain.StatusCount{Status: st, Count: n})
		}
	}
	return results, nil
}

// AggregateByIntegration сырые суммы по интеграциям в окне, с join текущего имени и статуса.
func (s *Store) AggregateByIntegration(ctx context.Context, since time.Time) ([]domain.MetricRollup, error) {
	where, args := whereMetrics(domain.MetricFilter{Since: since}, "m.")

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			m.integration_id, i.name, i.status,
			COUNT(*),
			COUNT(*) FILTER (WHERE m.status = 'Success'),
			COUNT(*) FILTER (WHERE m.status = 'Failure'),
			COUNT(*) FILTER (WHERE m.status = 'Warning'),
			COALESCE(SUM(m.response_time), 0)::BIGINT,
			COALESCE(MAX(m.response_time), 0)::BIGINT,
			COALESCE(SUM(m.data_volume), 0)::BIGINT
		FROM metrics m
		JOIN integrations i ON i.id = m.integration_id`+where+`
		GROUP BY m.integration_id, i.name, i.status
		ORDER BY m.integration_id`, args...)
	if err != nil {
		return nil, unavailable("aggregate by integration", err)
	}
	defer rows.Close()

	results := make([]domain.MetricRollup, 0)
	for rows.Next() {
		var r domain.MetricRollup
		err := rows.Scan(
			&r.IntegrationID, &r.IntegrationName, &r.IntegrationStatus,
			&r.Total, &r.Success, &r.Failure, &r.Warning,
			&r.SumResponseTime, &r.MaxResponseTime, &r.TotalDataVolume,
		)
		if err != nil {
			return nil, unavailable("scan rollup", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows iteration", err)
	}
	return results, nil
}

// LatestMetrics последние события по всем интеграциям с именем владельца.
func (s *Store) LatestMetrics(ctx context.Context, limit int) ([]domain.LatestEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.integration_id, m.timestamp, m.status, m.response_time, m.data_volume,
		       m.error_message, m.metadata, i.name
		FROM metrics m
		JOIN integrations i ON i.id = m.integration_id
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable("latest metrics", err)
	}
	defer rows.Close()

	results := make([]domain.LatestEvent, 0, limit)
	for rows.Next() {
		var name string
		m, err := scanMetric(rows, &name)
		if err != nil {
			return nil, unavailable("scan latest metric", err)
		}
		results = append(results, domain.LatestEvent{Metric: *m, IntegrationName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows iteration", err)
	}
	return results, nil
}
