// Package seed наполняет хранилище правдоподобными тестовыми данными для дашборда.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

var (
	sources      = []string{"Salesforce", "SAP", "Website", "HubSpot", "Shopify", "AWS", "Azure", "Google Cloud"}
	destinations = []string{"Data Warehouse", "Marketo", "Stripe", "Snowflake", "BigQuery", "SQL Server", "MongoDB", "ElasticSearch"}
)

type Store interface {
	ListIntegrations(ctx context.Context) ([]domain.Integration, error)
	CreateIntegration(ctx context.Context, in *domain.Integration) (*domain.Integration, error)
	DeleteIntegration(ctx context.Context, id int64) error
	InsertMetricsBatch(ctx context.Context, metrics []domain.Metric) error
}

type Options struct {
	Integrations          int
	MetricsPerIntegration int
	Span                  time.Duration // метрики распределяются по [now-Span, now]
	Reset                 bool          // удалить существующие интеграции перед генерацией
	BatchSize             int
}

type Result struct {
	Integrations int
	Metrics      int
}

type Generator struct {
	store  Store
	rnd    *rand.Rand
	now    func() time.Time
	logger *zap.Logger
}

func NewGenerator(store Store, seed uint64, logger *zap.Logger) *Generator {
	return &Generator{
		store:  store,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
		logger: logger.Named("seed"),
	}
}

// Run генерирует интеграции и их метрики.
// 1. Опционально чистит хранилище (метрики уходят каскадом)
// 2. Создает интеграции со случайным типом и статусом
// 3. Пишет метрики пачками, без побочных эффектов на статус
func (g *Generator) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Span <= 0 {
		opts.Span = 30 * 24 * time.Hour
	}

	// 1. Очистка
	if opts.Reset {
		existing, err := g.store.ListIntegrations(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("seed: list: %w", err)
		}
		for _, in := range existing {
			if err := g.store.DeleteIntegration(ctx, in.ID); err != nil {
				return Result{}, fmt.Errorf("seed: reset integration %d: %w", in.ID, err)
			}
		}
		g.logger.Info("existing data removed", zap.Int("integrations", len(existing)))
	}

	// 2. Интеграции
	now := g.now()
	var res Result
	batch := make([]domain.Metric, 0, opts.BatchSize)
	for range opts.Integrations {
		in, err := g.store.CreateIntegration(ctx, g.integration(now))
		if err != nil {
			return res, fmt.Errorf("seed: create integration: %w", err)
		}
		res.Integrations++

		// 3. Метрики
		for range opts.MetricsPerIntegration {
			batch = append(batch, g.metric(in, now, opts.Span))
			if len(batch) >= opts.BatchSize {
				if err := g.store.InsertMetricsBatch(ctx, batch); err != nil {
					return res, fmt.Errorf("seed: insert metrics: %w", err)
				}
				res.Metrics += len(batch)
				batch = batch[:0]
			}
		}
	}
	if len(batch) > 0 {
		if err := g.store.InsertMetricsBatch(ctx, batch); err != nil {
			return res, fmt.Errorf("seed: insert metrics: %w", err)
		}
		res.Metrics += len(batch)
	}

	g.logger.Info("mock data generated",
		zap.Int("integrations", res.Integrations),
		zap.Int("metrics", res.Metrics),
	)
	return res, nil
}

func pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func (g *Generator) between(lo, hi int64) int64 {
	return lo + g.rnd.Int64N(hi-lo+1)
}

func (g *Generator) integration(now time.Time) *domain.Integration {
	src, dst := pick(g.rnd, sources), pick(g.rnd, destinations)
	typ := pick(g.rnd, domain.IntegrationTypes)

	// 80% Active, остальное поровну Inactive и Error
	status := domain.StatusActive
	if g.rnd.Float64() > 0.8 {
		status = domain.StatusInactive
		if g.rnd.Float64() > 0.5 {
			status = domain.StatusError
		}
	}

	var cfg domain.IntegrationConfig
	slug := strings.ToLower(strings.ReplaceAll(src, " ", "-"))
	switch typ {
	case domain.TypeAPI:
		cfg = domain.APIConfig{URL: "https://api.example.com/" + slug, AuthType: "oauth2"}
	case domain.TypeDatabase:
		cfg = domain.DatabaseConfig{ConnectionString: "postgres://localhost:5432/" + slug, DBType: "postgres"}
	case domain.TypeFile:
		cfg = domain.FileConfig{Path: "/data/" + slug, FileType: "csv"}
	case domain.TypeMessageQueue:
		cfg = domain.MessageQueueConfig{QueueURL: "amqp://localhost:5672/" + slug, QueueType: "rabbitmq"}
	default:
		cfg = domain.CustomConfig{}
	}

	created := now.Add(-time.Duration(g.rnd.Int64N(int64(90 * 24 * time.Hour))))
	return &domain.Integration{
		Name:        fmt.Sprintf("%s to %s Integration", src, dst),
		Description: fmt.Sprintf("Integration between %s and %s for data synchronization", src, dst),
		Type:        typ,
		Status:      status,
		Config:      cfg,
		Source:      src,
		Destination: dst,
		CreatedBy:   "system",
		CreatedAt:   created,
	}
}

func (g *Generator) metric(in *domain.Integration, now time.Time, span time.Duration) domain.Metric {
	status := pick(g.rnd, domain.MetricStatuses)
	m := domain.Metric{
		IntegrationID: in.ID,
		Timestamp:     now.Add(-time.Duration(g.rnd.Int64N(int64(span)))),
		Status:        status,
		ResponseTime:  g.between(50, 2000),
		DataVolume:    g.between(1000, 1000000),
		Metadata: map[string]any{
			"records": g.between(1, 1000),
		},
	}
	if status == domain.MetricFailure {
		m.ErrorMessage = "Connection timeout"
	}
	if in.Type == domain.TypeAPI {
		m.Metadata["endpoint"] = "/api/data"
	}
	return m
}
