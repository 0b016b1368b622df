// Package dashboard собирает срез для верхнего экрана из агрегатора и хранилища.
// Собственной логики нет, только композиция чтений.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/integrationhub/internal/aggregate"
	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/monitor"
)

// LatestLimit сколько последних событий попадает в срез.
const LatestLimit = 10

type Repository interface {
	CountMetricsByStatus(ctx context.Context, since time.Time) ([]domain.StatusCount, error)
	IntegrationCounts(ctx context.Context) (domain.IntegrationCounts, error)
}

// Summarizer системная сводка и лента последних событий.
type Summarizer interface {
	SummarizeAll(ctx context.Context, window domain.Window) ([]domain.IntegrationSummary, error)
	Latest(ctx context.Context, limit int) ([]domain.LatestEvent, error)
}

type Composer struct {
	repo       Repository
	summarizer Summarizer
	metrics    *monitor.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewComposer(repo Repository, summarizer Summarizer, metrics *monitor.Metrics, logger *zap.Logger) *Composer {
	if metrics == nil {
		metrics = monitor.NewMetrics(nil)
	}
	return &Composer{
		repo:       repo,
		summarizer: summarizer,
		metrics:    metrics,
		logger:     logger.Named("dashboard"),
		now:        time.Now,
	}
}

// Compose параллельно выполняет четыре независимых чтения.
// Первая ошибка отменяет остальные, частичный срез не возвращается.
func (c *Composer) Compose(ctx context.Context, window domain.Window) (*domain.DashboardSnapshot, error) {
	now := c.now()
	defer func() {
		c.metrics.AggregationDuration.WithLabelValues("dashboard").Observe(c.now().Sub(now).Seconds())
	}()

	since := window.Since(now)
	snap := &domain.DashboardSnapshot{
		Window:      window,
		GeneratedAt: now,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 1. Распределение по статусам за окно
	g.Go(func() error {
		counts, err := c.repo.CountMetricsByStatus(gctx, since)
		if err != nil {
			return fmt.Errorf("status counts: %w", err)
		}
		snap.StatusCounts = counts
		return nil
	})

	// 2. Производительность по интеграциям
	g.Go(func() error {
		rows, err := c.summarizer.SummarizeAll(gctx, window)
		if err != nil {
			return fmt.Errorf("performance: %w", err)
		}
		perf := make([]domain.IntegrationPerformance, 0, len(rows))
		for _, r := range rows {
			perf = append(perf, domain.IntegrationPerformance{
				IntegrationID:   r.IntegrationID,
				IntegrationName: r.IntegrationName,
				AvgResponseTime: r.AvgResponseTime,
				SuccessRate:     r.SuccessRate,
			})
		}
		snap.ResponseTimesByIntegration = perf
		return nil
	})

	// 3. Счетчики интеграций без окна
	g.Go(func() error {
		counts, err := c.repo.IntegrationCounts(gctx)
		if err != nil {
			return fmt.Errorf("integration counts: %w", err)
		}
		snap.IntegrationCounts = counts
		return nil
	})

	// 4. Последние события
	g.Go(func() error {
		latest, err := c.summarizer.Latest(gctx, LatestLimit)
		if err != nil {
			return fmt.Errorf("latest events: %w", err)
		}
		snap.LatestEvents = latest
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("dashboard compose failed", zap.String("window", string(window)), zap.Error(err))
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	snap.OverallSuccessRate = overallSuccessRate(snap.StatusCounts)
	if snap.StatusCounts == nil {
		snap.StatusCounts = make([]domain.StatusCount, 0)
	}
	if snap.LatestEvents == nil {
		snap.LatestEvents = make([]domain.LatestEvent, 0)
	}
	return snap, nil
}

func overallSuccessRate(counts []domain.StatusCount) float64 {
	var success, total int64
	for _, c := range counts {
		total += c.Count
		if c.Status == domain.MetricSuccess {
			success = c.Count
		}
	}
	return aggregate.SuccessRate(success, total)
}
