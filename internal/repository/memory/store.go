// Package memory хранилище записей в оперативной памяти.
// Используется для локального запуска (database.driver=memory) и в тестах ядра.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/integrationhub/internal/domain"
)

type Store struct {
	mu           sync.RWMutex
	integrations map[int64]domain.Integration
	metrics      []domain.Metric
	nextIntID    int64
	nextMetricID int64
}

func NewStore() *Store {
	return &Store{
		integrations: make(map[int64]domain.Integration),
		nextIntID:    1,
		nextMetricID: 1,
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateIntegration(ctx context.Context, in *domain.Integration) (*domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *in
	out.ID = s.nextIntID
	s.nextIntID++
	s.integrations[out.ID] = out
	return &out, nil
}

func (s *Store) GetIntegration(ctx context.Context, id int64) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.integrations[id]
	if !ok {
		return nil, fmt.Errorf("memory: integration %d: %w", id, domain.ErrNotFound)
	}
	return &in, nil
}

// ListIntegrations по убыванию даты создания.
func (s *Store) ListIntegrations(ctx context.Context) ([]domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Integration, 0, len(s.integrations))
	for _, in := range s.integrations {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateIntegration применяет mutate к текущему состоянию под блокировкой стора.
func (s *Store) UpdateIntegration(ctx context.Context, id int64, mutate domain.IntegrationMutation) (*domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.integrations[id]
	if !ok {
		return nil, fmt.Errorf("memory: integration %d: %w", id, domain.ErrNotFound)
	}
	next, err := mutate(cur)
	if err != nil {
		return nil, err
	}
	out := *next
	out.ID = id
	s.integrations[id] = out
	return &out, nil
}

// DeleteIntegration удаляет интеграцию вместе с ее метриками.
func (s *Store) DeleteIntegration(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[id]; !ok {
		return fmt.Errorf("memory: integration %d: %w", id, domain.ErrNotFound)
	}
	delete(s.integrations, id)

	kept := s.metrics[:0]
	for _, m := range s.metrics {
		if m.IntegrationID != id {
			kept = append(kept, m)
		}
	}
	s.metrics = kept
	return nil
}

// IntegrationCounts счетчики по текущему статусу интеграций.
func (s *Store) IntegrationCounts(ctx context.Context) (domain.IntegrationCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c domain.IntegrationCounts
	for _, in := range s.integrations {
		c.Total++
		switch in.Status {
		case domain.StatusActive:
			c.Active++
		case domain.StatusError:
			c.Error++
		case domain.StatusInactive:
			c.Inactive++
		}
	}
	return c, nil
}

// InsertMetricsBatch вставка без побочных эффектов на статус (генератор данных).
func (s *Store) InsertMetricsBatch(ctx context.Context, metrics []domain.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range metrics {
		if _, ok := s.integrations[m.IntegrationID]; !ok {
			return fmt.Errorf("memory: integration %d: %w", m.IntegrationID, domain.ErrNotFound)
		}
	}
	for _, m := range metrics {
		m.ID = s.nextMetricID
		m.Metadata = maps.Clone(m.Metadata)
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
		s.nextMetricID++
		s.metrics = append(s.metrics, m)
	}
	return nil
}

// RecordMetric вставка метрики и применение перехода статуса под одной блокировкой.
func (s *Store) RecordMetric(ctx context.Context, m *domain.Metric, t *domain.StatusTransition) (*domain.Metric, *domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.integrations[m.IntegrationID]
	if !ok {
		return nil, nil, fmt.Errorf("memory: integration %d: %w", m.IntegrationID, domain.ErrNotFound)
	}

	stored := *m
	stored.ID = s.nextMetricID
	stored.Metadata = maps.Clone(m.Metadata)
	s.nextMetricID++
	s.metrics = append(s.metrics, stored)

	var updated *domain.Integration
	if t != nil {
		at := t.At
		owner.Status = t.To
		owner.LastModified = &at
		s.integrations[owner.ID] = owner
		updated = &owner
	}
	return &stored, updated, nil
}

func (s *Store) match(m domain.Metric, f domain.MetricFilter) bool {
	if f.IntegrationID != 0 && m.IntegrationID != f.IntegrationID {
		return false
	}
	if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// FindMetrics по убыванию timestamp, при равенстве по убыванию id.
func (s *Store) FindMetrics(ctx context.Context, f domain.MetricFilter) ([]domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Metric, 0)
	for _, m := range s.metrics {
		if s.match(m, f) {
			out = append(out, m)
		}
	}
	sortDesc(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountMetrics(ctx context.Context, f domain.MetricFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.metrics {
		if s.match(m, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountMetricsByStatus(ctx context.Context, since time.Time) ([]domain.StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.MetricStatus]int64)
	for _, m := range s.metrics {
		if s.match(m, domain.MetricFilter{Since: since}) {
			counts[m.Status]++
		}
	}
	out := make([]domain.StatusCount, 0, len(counts))
	for _, st := range domain.MetricStatuses {
		if n, ok := counts[st]; ok {
			out = append(out, domain.StatusCount{Status: st, Count: n})
		}
	}
	return out, nil
}

// AggregateByIntegration group-by по интеграции с присоединением имени и статуса.
// Метрики без живой интеграции пропускаются (inner join).
func (s *Store) AggregateByIntegration(ctx context.Context, since time.Time) ([]domain.MetricRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[int64]*domain.MetricRollup)
	for _, m := range s.metrics {
		if !s.match(m, domain.MetricFilter{Since: since}) {
			continue
		}
		owner, ok := s.integrations[m.IntegrationID]
		if !ok {
			continue
		}
		r, ok := groups[m.IntegrationID]
		if !ok {
			r = &domain.MetricRollup{
				IntegrationID:     owner.ID,
				IntegrationName:   owner.Name,
				IntegrationStatus: owner.Status,
			}
			groups[m.IntegrationID] = r
		}
		r.Total++
		switch m.Status {
		case domain.MetricSuccess:
			r.Success++
		case domain.MetricFailure:
			r.Failure++
		case domain.MetricWarning:
			r.Warning++
		}
		r.SumResponseTime += m.ResponseTime
		r.MaxResponseTime = max(r.MaxResponseTime, m.ResponseTime)
		r.TotalDataVolume += m.DataVolume
	}

	out := make([]domain.MetricRollup, 0, len(groups))
	for _, r := range groups {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntegrationID < out[j].IntegrationID })
	return out, nil
}

func (s *Store) LatestMetrics(ctx context.Context, limit int) ([]domain.LatestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Metric, 0, len(s.metrics))
	for _, m := range s.metrics {
		if _, ok := s.integrations[m.IntegrationID]; ok {
			all = append(all, m)
		}
	}
	sortDesc(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]domain.LatestEvent, 0, len(all))
	for _, m := range all {
		out = append(out, domain.LatestEvent{Metric: m, IntegrationName: s.integrations[m.IntegrationID].Name})
	}
	return out, nil
}

func sortDesc(ms []domain.Metric) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].ID > ms[j].ID
		}
		return ms[i].Timestamp.After(ms[j].Timestamp)
	})
}
