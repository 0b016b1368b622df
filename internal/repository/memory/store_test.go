package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/integrationhub/internal/domain"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedIntegration(t *testing.T, s *Store, name string, created time.Time) *domain.Integration {
	t.Helper()
	in, err := s.CreateIntegration(context.Background(), &domain.Integration{
		Name:      name,
		Type:      domain.TypeAPI,
		Status:    domain.StatusActive,
		Config:    domain.APIConfig{},
		Source:    "a",
		CreatedAt: created,
	})
	require.NoError(t, err)
	return in
}

func record(t *testing.T, s *Store, id int64, ts time.Time, st domain.MetricStatus, rt int64) *domain.Metric {
	t.Helper()
	m, _, err := s.RecordMetric(context.Background(), &domain.Metric{
		IntegrationID: id, Timestamp: ts, Status: st, ResponseTime: rt, Metadata: map[string]any{},
	}, nil)
	require.NoError(t, err)
	return m
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)
	b := seedIntegration(t, s, "b", base)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
}

func TestListIntegrationsNewestFirst(t *testing.T) {
	s := NewStore()
	seedIntegration(t, s, "old", base)
	seedIntegration(t, s, "new", base.Add(time.Hour))

	list, err := s.ListIntegrations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Name)
}

func TestGetMissingIntegration(t *testing.T) {
	_, err := NewStore().GetIntegration(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordMetricRejectsUnknownIntegration(t *testing.T) {
	s := NewStore()
	_, _, err := s.RecordMetric(context.Background(), &domain.Metric{IntegrationID: 9, Status: domain.MetricSuccess}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.CountMetrics(context.Background(), domain.MetricFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordMetricAppliesTransition(t *testing.T) {
	s := NewStore()
	in := seedIntegration(t, s, "orders", base)

	at := base.Add(time.Minute)
	_, updated, err := s.RecordMetric(context.Background(),
		&domain.Metric{IntegrationID: in.ID, Timestamp: at, Status: domain.MetricFailure},
		&domain.StatusTransition{IntegrationID: in.ID, To: domain.StatusError, At: at})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.StatusError, updated.Status)

	got, err := s.GetIntegration(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.LastModified)
	assert.True(t, got.LastModified.Equal(at))
}

func TestStoredMetadataIsIsolated(t *testing.T) {
	s := NewStore()
	in := seedIntegration(t, s, "orders", base)

	meta := map[string]any{"k": "v"}
	_, _, err := s.RecordMetric(context.Background(),
		&domain.Metric{IntegrationID: in.ID, Timestamp: base, Status: domain.MetricSuccess, Metadata: meta}, nil)
	require.NoError(t, err)
	meta["k"] = "mutated"

	found, err := s.FindMetrics(context.Background(), domain.MetricFilter{IntegrationID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, "v", found[0].Metadata["k"])
}

func TestFindMetricsFilterOrderLimit(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)
	b := seedIntegration(t, s, "b", base)

	record(t, s, a.ID, base.Add(-48*time.Hour), domain.MetricSuccess, 10)
	first := record(t, s, a.ID, base, domain.MetricSuccess, 20)
	second := record(t, s, a.ID, base, domain.MetricWarning, 30)
	record(t, s, b.ID, base, domain.MetricSuccess, 40)

	found, err := s.FindMetrics(context.Background(), domain.MetricFilter{
		IntegrationID: a.ID,
		Since:         base.Add(-time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	// одинаковый timestamp: сначала больший id
	assert.Equal(t, second.ID, found[0].ID)
	assert.Equal(t, first.ID, found[1].ID)

	limited, err := s.FindMetrics(context.Background(), domain.MetricFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteCascadesMetrics(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)
	b := seedIntegration(t, s, "b", base)
	record(t, s, a.ID, base, domain.MetricSuccess, 10)
	record(t, s, b.ID, base, domain.MetricSuccess, 10)

	require.NoError(t, s.DeleteIntegration(context.Background(), a.ID))
	assert.ErrorIs(t, s.DeleteIntegration(context.Background(), a.ID), domain.ErrNotFound)

	n, err := s.CountMetrics(context.Background(), domain.MetricFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAggregateByIntegration(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)
	record(t, s, a.ID, base, domain.MetricSuccess, 100)
	record(t, s, a.ID, base, domain.MetricSuccess, 200)
	record(t, s, a.ID, base, domain.MetricFailure, 300)
	record(t, s, a.ID, base.Add(-72*time.Hour), domain.MetricWarning, 900)

	rollups, err := s.AggregateByIntegration(context.Background(), base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, int64(3), r.Total)
	assert.Equal(t, int64(2), r.Success)
	assert.Equal(t, int64(1), r.Failure)
	assert.Equal(t, int64(600), r.SumResponseTime)
	assert.Equal(t, int64(300), r.MaxResponseTime)
	assert.Equal(t, "a", r.IntegrationName)
}

func TestIntegrationCountsAndStatusCounts(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)
	b := seedIntegration(t, s, "b", base)

	_, err := s.UpdateIntegration(context.Background(), b.ID, func(cur domain.Integration) (*domain.Integration, error) {
		cur.Status = domain.StatusInactive
		return &cur, nil
	})
	require.NoError(t, err)

	record(t, s, a.ID, base, domain.MetricSuccess, 1)
	record(t, s, a.ID, base, domain.MetricProcessing, 1)

	counts, err := s.IntegrationCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationCounts{Total: 2, Active: 1, Inactive: 1}, counts)

	byStatus, err := s.CountMetricsByStatus(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []domain.StatusCount{
		{Status: domain.MetricSuccess, Count: 1},
		{Status: domain.MetricProcessing, Count: 1},
	}, byStatus)
}

func TestLatestMetricsCarriesName(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "orders", base)
	for i := range 5 {
		record(t, s, a.ID, base.Add(time.Duration(i)*time.Minute), domain.MetricSuccess, 1)
	}

	latest, err := s.LatestMetrics(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, "orders", latest[0].IntegrationName)
	assert.True(t, latest[0].Timestamp.After(latest[1].Timestamp))
}

func TestInsertMetricsBatchIsAllOrNothing(t *testing.T) {
	s := NewStore()
	a := seedIntegration(t, s, "a", base)

	err := s.InsertMetricsBatch(context.Background(), []domain.Metric{
		{IntegrationID: a.ID, Timestamp: base, Status: domain.MetricSuccess},
		{IntegrationID: 99, Timestamp: base, Status: domain.MetricSuccess},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.CountMetrics(context.Background(), domain.MetricFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateIntegrationRejectedMutationKeepsState(t *testing.T) {
	s := NewStore()
	in := seedIntegration(t, s, "a", base)

	_, err := s.UpdateIntegration(context.Background(), in.ID, func(domain.Integration) (*domain.Integration, error) {
		return nil, domain.ErrInvalidInput
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := s.GetIntegration(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, *in, *got)

	_, err = s.UpdateIntegration(context.Background(), 999, func(cur domain.Integration) (*domain.Integration, error) {
		return &cur, nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
