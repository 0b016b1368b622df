// Package ingest принимает события исполнения интеграций, сохраняет их
// и выводит из них побочные эффекты на статус интеграции.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/monitor"
)

// Repository часть хранилища, нужная приему.
type Repository interface {
	GetIntegration(ctx context.Context, id int64) (*domain.Integration, error)
	RecordMetric(ctx context.Context, m *domain.Metric, t *domain.StatusTransition) (*domain.Metric, *domain.Integration, error)
}

// Announcer получатель анонсов (маршрутизатор подписок).
type Announcer interface {
	Announce(kind domain.EventKind, payload any, integrationID int64)
}

type Ingestor struct {
	repo      Repository
	announcer Announcer
	metrics   *monitor.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewIngestor(repo Repository, announcer Announcer, metrics *monitor.Metrics, logger *zap.Logger) *Ingestor {
	if metrics == nil {
		metrics = monitor.NewMetrics(nil)
	}
	return &Ingestor{
		repo:      repo,
		announcer: announcer,
		metrics:   metrics,
		logger:    logger.Named("ingestor"),
		now:       time.Now,
	}
}

// DeriveStatusEffect чистое правило: Failure переводит интеграцию в Error.
// Остальные статусы статус не трогают. Время перехода проставляет вызывающий.
func DeriveStatusEffect(ev domain.MetricEvent) *domain.StatusTransition {
	if ev.Status != domain.MetricFailure {
		return nil
	}
	return &domain.StatusTransition{IntegrationID: ev.IntegrationID, To: domain.StatusError}
}

// Ingest обрабатывает одно событие.
// 1. Валидация (до любой записи)
// 2. Проверка существования интеграции
// 3. Атомарная запись метрики и перехода статуса
// 4. Анонсы: metricCreated и, если был переход, integrationUpdated
func (i *Ingestor) Ingest(ctx context.Context, ev domain.MetricEvent) (*domain.Metric, error) {
	start := i.now()
	defer func() {
		i.metrics.IngestDuration.Observe(i.now().Sub(start).Seconds())
	}()

	// 1. Валидация
	if err := ev.Validate(); err != nil {
		i.reject("invalid_input", err)
		return nil, err
	}

	// 2. Владелец должен существовать
	if _, err := i.repo.GetIntegration(ctx, ev.IntegrationID); err != nil {
		i.reject(reason(err), err)
		return nil, err
	}

	// 3. Запись
	now := i.now()
	metric := ev.ToMetric(now)
	transition := DeriveStatusEffect(ev)
	if transition != nil {
		transition.At = now
	}

	stored, updated, err := i.repo.RecordMetric(ctx, metric, transition)
	if err != nil {
		i.reject(reason(err), err)
		return nil, fmt.Errorf("ingest: record metric for integration %d: %w", ev.IntegrationID, err)
	}
	i.metrics.IngestTotal.WithLabelValues(string(stored.Status)).Inc()

	// 4. Анонсы уходят только после успешного коммита
	i.announcer.Announce(domain.EventMetricCreated, stored, stored.IntegrationID)
	if updated != nil {
		i.metrics.StatusTransitions.WithLabelValues(string(updated.Status)).Inc()
		i.announcer.Announce(domain.EventIntegrationUpdated, updated, updated.ID)
		i.logger.Info("integration status changed by metric",
			zap.Int64("integration_id", updated.ID),
			zap.String("status", string(updated.Status)),
			zap.Int64("metric_id", stored.ID),
		)
	}

	i.logger.Debug("metric ingested",
		zap.Int64("integration_id", stored.IntegrationID),
		zap.Int64("metric_id", stored.ID),
		zap.String("status", string(stored.Status)),
	)
	return stored, nil
}

func (i *Ingestor) reject(reason string, err error) {
	i.metrics.IngestErrors.WithLabelValues(reason).Inc()
	if reason == "unavailable" || reason == "internal" {
		i.logger.Error("metric rejected", zap.String("reason", reason), zap.Error(err))
		return
	}
	i.logger.Debug("metric rejected", zap.String("reason", reason), zap.Error(err))
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}
