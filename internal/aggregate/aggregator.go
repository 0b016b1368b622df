// Package aggregate считает сводки по метрикам за окно. Ничего не кеширует:
// каждый вызов заново читает окно из хранилища.
package aggregate

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/monitor"
)

const (
	// RecentLimit сколько последних метрик отдается вместе со сводкой интеграции.
	RecentLimit = 10
	// LatestLimit размер ленты последних метрик по всей системе.
	LatestLimit = 100
)

type Repository interface {
	FindMetrics(ctx context.Context, f domain.MetricFilter) ([]domain.Metric, error)
	AggregateByIntegration(ctx context.Context, since time.Time) ([]domain.MetricRollup, error)
	LatestMetrics(ctx context.Context, limit int) ([]domain.LatestEvent, error)
}

type Aggregator struct {
	repo    Repository
	metrics *monitor.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewAggregator(repo Repository, metrics *monitor.Metrics, logger *zap.Logger) *Aggregator {
	if metrics == nil {
		metrics = monitor.NewMetrics(nil)
	}
	return &Aggregator{
		repo:    repo,
		metrics: metrics,
		logger:  logger.Named("aggregator"),
		now:     time.Now,
	}
}

// Round2 единое правило округления: 2 знака, половина от нуля.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SuccessRate доля успешных в процентах; 100, если событий нет.
func SuccessRate(success, total int64) float64 {
	if total == 0 {
		return 100
	}
	return Round2(float64(success) / float64(total) * 100)
}

func avg(sum, total int64) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(sum) / float64(total))
}

func summaryFromMetrics(ms []domain.Metric) domain.Summary {
	var (
		s   domain.Summary
		sum int64
	)
	for _, m := range ms {
		s.TotalEvents++
		switch m.Status {
		case domain.MetricSuccess:
			s.SuccessEvents++
		case domain.MetricFailure:
			s.FailureEvents++
		case domain.MetricWarning:
			s.WarningEvents++
		}
		sum += m.ResponseTime
		s.MaxResponseTime = max(s.MaxResponseTime, m.ResponseTime)
		s.TotalDataVolume += m.DataVolume
	}
	s.SuccessRate = SuccessRate(s.SuccessEvents, s.TotalEvents)
	s.AvgResponseTime = avg(sum, s.TotalEvents)
	return s
}

func summaryFromRollup(r domain.MetricRollup) domain.Summary {
	return domain.Summary{
		TotalEvents:     r.Total,
		SuccessEvents:   r.Success,
		FailureEvents:   r.Failure,
		WarningEvents:   r.Warning,
		SuccessRate:     SuccessRate(r.Success, r.Total),
		AvgResponseTime: avg(r.SumResponseTime, r.Total),
		MaxResponseTime: r.MaxResponseTime,
		TotalDataVolume: r.TotalDataVolume,
	}
}

// Summarize сводка по одной интеграции за окно плюс последние метрики.
// Существование интеграции не проверяется: для неизвестного id сводка пустая.
func (a *Aggregator) Summarize(ctx context.Context, integrationID int64, window domain.Window) (*domain.HealthReport, error) {
	defer a.observe("integration", a.now())

	ms, err := a.repo.FindMetrics(ctx, domain.MetricFilter{
		IntegrationID: integrationID,
		Since:         window.Since(a.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: summarize integration %d: %w", integrationID, err)
	}

	recent := make([]domain.Metric, 0, min(len(ms), RecentLimit))
	recent = append(recent, ms[:min(len(ms), RecentLimit)]...)
	return &domain.HealthReport{
		IntegrationID: integrationID,
		Window:        window,
		Summary:       summaryFromMetrics(ms),
		Metrics:       recent,
	}, nil
}

// SummarizeAll системная сводка по интеграциям, по возрастанию имени.
func (a *Aggregator) SummarizeAll(ctx context.Context, window domain.Window) ([]domain.IntegrationSummary, error) {
	defer a.observe("system", a.now())

	rollups, err := a.repo.AggregateByIntegration(ctx, window.Since(a.now()))
	if err != nil {
		return nil, fmt.Errorf("aggregate: summarize all: %w", err)
	}

	results := make([]domain.IntegrationSummary, 0, len(rollups))
	for _, r := range rollups {
		results = append(results, domain.IntegrationSummary{
			IntegrationID:     r.IntegrationID,
			IntegrationName:   r.IntegrationName,
			IntegrationStatus: r.IntegrationStatus,
			Summary:           summaryFromRollup(r),
		})
	}
	slices.SortStableFunc(results, func(x, y domain.IntegrationSummary) int {
		return cmp.Or(
			cmp.Compare(x.IntegrationName, y.IntegrationName),
			cmp.Compare(x.IntegrationID, y.IntegrationID),
		)
	})
	return results, nil
}

// Metrics сырые метрики интеграции за окно, новые первыми.
func (a *Aggregator) Metrics(ctx context.Context, integrationID int64, window domain.Window) ([]domain.Metric, error) {
	ms, err := a.repo.FindMetrics(ctx, domain.MetricFilter{
		IntegrationID: integrationID,
		Since:         window.Since(a.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: metrics of integration %d: %w", integrationID, err)
	}
	return ms, nil
}

// Latest лента последних метрик по всем интеграциям.
func (a *Aggregator) Latest(ctx context.Context, limit int) ([]domain.LatestEvent, error) {
	if limit <= 0 {
		limit = LatestLimit
	}
	events, err := a.repo.LatestMetrics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate: latest metrics: %w", err)
	}
	return events, nil
}

func (a *Aggregator) observe(scope string, start time.Time) {
	a.metrics.AggregationDuration.WithLabelValues(scope).Observe(a.now().Sub(start).Seconds())
}
