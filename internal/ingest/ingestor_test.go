package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/monitor"
	"github.com/xela07ax/integrationhub/internal/repository/memory"
)

type announced struct {
	kind  domain.EventKind
	data  any
	scope int64
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	events []announced
}

func (r *recordingAnnouncer) Announce(kind domain.EventKind, payload any, integrationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, announced{kind: kind, data: payload, scope: integrationID})
}

func (r *recordingAnnouncer) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Ingestor, *memory.Store, *recordingAnnouncer, *domain.Integration) {
	t.Helper()
	store := memory.NewStore()
	in, err := store.CreateIntegration(context.Background(), &domain.Integration{
		Name:      "Orders API",
		Type:      domain.TypeAPI,
		Status:    domain.StatusActive,
		Config:    domain.APIConfig{},
		Source:    "shop",
		CreatedAt: clock.Add(-time.Hour),
	})
	require.NoError(t, err)

	ann := &recordingAnnouncer{}
	ing := NewIngestor(store, ann, monitor.NewMetrics(nil), zap.NewNop())
	ing.now = func() time.Time { return clock }
	return ing, store, ann, in
}

func ptr[T any](v T) *T { return &v }

func TestDeriveStatusEffect(t *testing.T) {
	tests := []struct {
		status domain.MetricStatus
		want   bool
	}{
		{domain.MetricFailure, true},
		{domain.MetricSuccess, false},
		{domain.MetricWarning, false},
		{domain.MetricProcessing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tr := DeriveStatusEffect(domain.MetricEvent{IntegrationID: 3, Status: tt.status})
			if !tt.want {
				assert.Nil(t, tr)
				return
			}
			require.NotNil(t, tr)
			assert.Equal(t, int64(3), tr.IntegrationID)
			assert.Equal(t, domain.StatusError, tr.To)
		})
	}
}

func TestIngestFailureFlipsStatusToError(t *testing.T) {
	ing, store, ann, in := setup(t)

	m, err := ing.Ingest(context.Background(), domain.MetricEvent{
		IntegrationID: in.ID,
		Status:        domain.MetricFailure,
		ResponseTime:  ptr(int64(1200)),
		ErrorMessage:  "upstream timeout",
	})
	require.NoError(t, err)
	assert.Equal(t, clock, m.Timestamp)

	got, err := store.GetIntegration(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.LastModified)
	assert.Equal(t, clock, *got.LastModified)

	assert.Equal(t, []domain.EventKind{domain.EventMetricCreated, domain.EventIntegrationUpdated}, ann.kinds())
	assert.Equal(t, in.ID, ann.events[0].scope)
	assert.Equal(t, in.ID, ann.events[1].scope)
}

func TestIngestNonFailureKeepsStatus(t *testing.T) {
	for _, st := range []domain.MetricStatus{domain.MetricSuccess, domain.MetricWarning, domain.MetricProcessing} {
		t.Run(string(st), func(t *testing.T) {
			ing, store, ann, in := setup(t)

			_, err := ing.Ingest(context.Background(), domain.MetricEvent{IntegrationID: in.ID, Status: st})
			require.NoError(t, err)

			got, err := store.GetIntegration(context.Background(), in.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusActive, got.Status)
			assert.Nil(t, got.LastModified)
			assert.Equal(t, []domain.EventKind{domain.EventMetricCreated}, ann.kinds())
		})
	}
}

func TestIngestFailureOnErroredIntegrationStillTouchesLastModified(t *testing.T) {
	ing, store, _, in := setup(t)
	ev := domain.MetricEvent{IntegrationID: in.ID, Status: domain.MetricFailure}

	_, err := ing.Ingest(context.Background(), ev)
	require.NoError(t, err)

	later := clock.Add(time.Minute)
	ing.now = func() time.Time { return later }
	_, err = ing.Ingest(context.Background(), ev)
	require.NoError(t, err)

	got, err := store.GetIntegration(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, later, *got.LastModified)
}

func TestIngestKeepsExplicitTimestampAndDefaults(t *testing.T) {
	ing, _, _, in := setup(t)
	ts := clock.Add(-30 * time.Minute)

	m, err := ing.Ingest(context.Background(), domain.MetricEvent{
		IntegrationID: in.ID,
		Timestamp:     &ts,
		Status:        domain.MetricSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, ts, m.Timestamp)
	assert.Zero(t, m.ResponseTime)
	assert.Zero(t, m.DataVolume)
	assert.NotNil(t, m.Metadata)
}

func TestIngestRejectsBeforePersistence(t *testing.T) {
	tests := []struct {
		name    string
		ev      domain.MetricEvent
		wantErr error
	}{
		{"unknown status", domain.MetricEvent{IntegrationID: 1, Status: "Exploded"}, domain.ErrInvalidInput},
		{"negative response time", domain.MetricEvent{IntegrationID: 1, Status: domain.MetricSuccess, ResponseTime: ptr(int64(-1))}, domain.ErrInvalidInput},
		{"negative data volume", domain.MetricEvent{IntegrationID: 1, Status: domain.MetricSuccess, DataVolume: ptr(int64(-5))}, domain.ErrInvalidInput},
		{"missing integration", domain.MetricEvent{IntegrationID: 404, Status: domain.MetricFailure}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing, store, ann, _ := setup(t)

			_, err := ing.Ingest(context.Background(), tt.ev)
			assert.ErrorIs(t, err, tt.wantErr)

			n, err := store.CountMetrics(context.Background(), domain.MetricFilter{})
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Empty(t, ann.kinds())
		})
	}
}

func TestIngestAfterDeleteIsNotFound(t *testing.T) {
	ing, store, _, in := setup(t)
	_, err := ing.Ingest(context.Background(), domain.MetricEvent{IntegrationID: in.ID, Status: domain.MetricSuccess})
	require.NoError(t, err)

	require.NoError(t, store.DeleteIntegration(context.Background(), in.ID))

	n, err := store.CountMetrics(context.Background(), domain.MetricFilter{IntegrationID: in.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ing.Ingest(context.Background(), domain.MetricEvent{IntegrationID: in.ID, Status: domain.MetricSuccess})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type brokenRepo struct{}

func (brokenRepo) GetIntegration(ctx context.Context, id int64) (*domain.Integration, error) {
	return &domain.Integration{ID: id}, nil
}

func (brokenRepo) RecordMetric(ctx context.Context, m *domain.Metric, t *domain.StatusTransition) (*domain.Metric, *domain.Integration, error) {
	return nil, nil, errors.Join(domain.ErrUnavailable, errors.New("connection reset"))
}

func TestIngestSurfacesUnavailable(t *testing.T) {
	metrics := monitor.NewMetrics(nil)
	ann := &recordingAnnouncer{}
	ing := NewIngestor(brokenRepo{}, ann, metrics, zap.NewNop())

	_, err := ing.Ingest(context.Background(), domain.MetricEvent{IntegrationID: 1, Status: domain.MetricSuccess})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Empty(t, ann.kinds())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.IngestErrors.WithLabelValues("unavailable")))
}
