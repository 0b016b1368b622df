// Package repository выбирает реализацию хранилища записей по конфигурации.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/infra"
	"github.com/xela07ax/integrationhub/internal/repository/memory"
	"github.com/xela07ax/integrationhub/internal/repository/postgres"
)

// Store полный контракт хранилища записей: интеграции, метрики, агрегаты.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	CreateIntegration(ctx context.Context, in *domain.Integration) (*domain.Integration, error)
	GetIntegration(ctx context.Context, id int64) (*domain.Integration, error)
	ListIntegrations(ctx context.Context) ([]domain.Integration, error)
	UpdateIntegration(ctx context.Context, id int64, mutate domain.IntegrationMutation) (*domain.Integration, error)
	DeleteIntegration(ctx context.Context, id int64) error
	IntegrationCounts(ctx context.Context) (domain.IntegrationCounts, error)

	RecordMetric(ctx context.Context, m *domain.Metric, t *domain.StatusTransition) (*domain.Metric, *domain.Integration, error)
	InsertMetricsBatch(ctx context.Context, metrics []domain.Metric) error
	FindMetrics(ctx context.Context, f domain.MetricFilter) ([]domain.Metric, error)
	CountMetrics(ctx context.Context, f domain.MetricFilter) (int64, error)
	CountMetricsByStatus(ctx context.Context, since time.Time) ([]domain.StatusCount, error)
	AggregateByIntegration(ctx context.Context, since time.Time) ([]domain.MetricRollup, error)
	LatestMetrics(ctx context.Context, limit int) ([]domain.LatestEvent, error)
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open открывает хранилище; для postgres дополнительно применяет схему.
func Open(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		logger.Info("postgres store ready")
		return pg, nil
	}
	return nil, fmt.Errorf("repository: unknown driver %q", cfg.Driver)
}
