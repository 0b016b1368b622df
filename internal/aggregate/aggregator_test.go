package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/repository/memory"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newAggregator(repo Repository) *Aggregator {
	a := NewAggregator(repo, nil, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

func createIntegration(t *testing.T, s *memory.Store, name string) int64 {
	t.Helper()
	in, err := s.CreateIntegration(context.Background(), &domain.Integration{
		Name: name, Type: domain.TypeCustom, Status: domain.StatusActive, CreatedAt: now,
	})
	require.NoError(t, err)
	return in.ID
}

func addMetric(t *testing.T, s *memory.Store, id int64, ts time.Time, st domain.MetricStatus, rt int64) {
	t.Helper()
	_, _, err := s.RecordMetric(context.Background(), &domain.Metric{
		IntegrationID: id, Timestamp: ts, Status: st, ResponseTime: rt, DataVolume: 100,
	}, nil)
	require.NoError(t, err)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(200.0/3))
	assert.Equal(t, 33.33, Round2(100.0/3))
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, 200.0, Round2(200))
}

func TestSummarizeEmptyWindow(t *testing.T) {
	s := memory.NewStore()
	id := createIntegration(t, s, "orders")

	report, err := newAggregator(s).Summarize(context.Background(), id, domain.WindowDay)
	require.NoError(t, err)
	assert.Zero(t, report.TotalEvents)
	assert.Equal(t, 100.0, report.SuccessRate)
	assert.Equal(t, 0.0, report.AvgResponseTime)
	assert.NotNil(t, report.Metrics)
	assert.Empty(t, report.Metrics)
}

func TestSummarizeScenario(t *testing.T) {
	s := memory.NewStore()
	id := createIntegration(t, s, "orders")
	addMetric(t, s, id, now.Add(-3*time.Hour), domain.MetricSuccess, 100)
	addMetric(t, s, id, now.Add(-2*time.Hour), domain.MetricFailure, 200)
	addMetric(t, s, id, now.Add(-1*time.Hour), domain.MetricSuccess, 300)

	report, err := newAggregator(s).Summarize(context.Background(), id, domain.WindowDay)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.TotalEvents)
	assert.Equal(t, int64(2), report.SuccessEvents)
	assert.Equal(t, int64(1), report.FailureEvents)
	assert.Equal(t, 66.67, report.SuccessRate)
	assert.Equal(t, 200.0, report.AvgResponseTime)
	assert.Equal(t, int64(300), report.MaxResponseTime)
	assert.Equal(t, int64(300), report.TotalDataVolume)
	require.Len(t, report.Metrics, 3)
	assert.Equal(t, int64(300), report.Metrics[0].ResponseTime)
}

func TestSummarizeWindowFiltersAndUnknownMeansAllTime(t *testing.T) {
	s := memory.NewStore()
	id := createIntegration(t, s, "orders")
	addMetric(t, s, id, now.Add(-30*time.Minute), domain.MetricSuccess, 10)
	addMetric(t, s, id, now.Add(-10*24*time.Hour), domain.MetricWarning, 20)
	addMetric(t, s, id, now.Add(-400*24*time.Hour), domain.MetricFailure, 30)

	a := newAggregator(s)
	cases := map[domain.Window]int64{
		domain.WindowHour:  1,
		domain.WindowDay:   1,
		domain.WindowWeek:  1,
		domain.WindowMonth: 2,
	}
	for w, want := range cases {
		report, err := a.Summarize(context.Background(), id, w)
		require.NoError(t, err)
		assert.Equal(t, want, report.TotalEvents, "window %s", w)
	}

	unknown, err := a.Summarize(context.Background(), id, "fortnight")
	require.NoError(t, err)
	allTime, err := a.Summarize(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unknown.TotalEvents)
	assert.Equal(t, allTime.Summary, unknown.Summary)
}

func TestSummarizeKeepsTenMostRecent(t *testing.T) {
	s := memory.NewStore()
	id := createIntegration(t, s, "orders")
	for i := range 15 {
		addMetric(t, s, id, now.Add(-time.Duration(i)*time.Minute), domain.MetricSuccess, int64(i))
	}

	report, err := newAggregator(s).Summarize(context.Background(), id, domain.WindowHour)
	require.NoError(t, err)
	assert.Equal(t, int64(15), report.TotalEvents)
	require.Len(t, report.Metrics, RecentLimit)
	assert.Equal(t, int64(0), report.Metrics[0].ResponseTime)
}

func TestSummarizeAllSortsByName(t *testing.T) {
	s := memory.NewStore()
	zeta := createIntegration(t, s, "zeta")
	alpha := createIntegration(t, s, "Alpha")
	beta := createIntegration(t, s, "beta")
	createIntegration(t, s, "idle")

	addMetric(t, s, zeta, now, domain.MetricSuccess, 10)
	addMetric(t, s, alpha, now, domain.MetricFailure, 30)
	addMetric(t, s, alpha, now, domain.MetricSuccess, 20)
	addMetric(t, s, beta, now, domain.MetricSuccess, 5)

	rows, err := newAggregator(s).SummarizeAll(context.Background(), domain.WindowDay)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// байтовое сравнение: заглавные раньше строчных
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, []string{rows[0].IntegrationName, rows[1].IntegrationName, rows[2].IntegrationName})
	assert.Equal(t, 50.0, rows[0].SuccessRate)
	assert.Equal(t, 25.0, rows[0].AvgResponseTime)
}

type failingRepo struct{}

func (failingRepo) FindMetrics(context.Context, domain.MetricFilter) ([]domain.Metric, error) {
	return nil, errors.Join(domain.ErrUnavailable, errors.New("down"))
}

func (failingRepo) AggregateByIntegration(context.Context, time.Time) ([]domain.MetricRollup, error) {
	return nil, errors.Join(domain.ErrUnavailable, errors.New("down"))
}

func (failingRepo) LatestMetrics(context.Context, int) ([]domain.LatestEvent, error) {
	return nil, errors.Join(domain.ErrUnavailable, errors.New("down"))
}

func TestAggregatorPropagatesUnavailable(t *testing.T) {
	a := newAggregator(failingRepo{})

	_, err := a.Summarize(context.Background(), 1, domain.WindowDay)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = a.SummarizeAll(context.Background(), domain.WindowDay)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = a.Latest(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
