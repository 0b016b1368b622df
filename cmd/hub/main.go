package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/aggregate"
	"github.com/xela07ax/integrationhub/internal/console/handler"
	"github.com/xela07ax/integrationhub/internal/console/server"
	"github.com/xela07ax/integrationhub/internal/console/service"
	"github.com/xela07ax/integrationhub/internal/dashboard"
	"github.com/xela07ax/integrationhub/internal/infra"
	"github.com/xela07ax/integrationhub/internal/ingest"
	"github.com/xela07ax/integrationhub/internal/monitor"
	"github.com/xela07ax/integrationhub/internal/realtime"
	"github.com/xela07ax/integrationhub/internal/repository"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Хранилище записей
	store, err := repository.Open(appCtx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("record store unavailable", zap.Error(err))
	}
	defer store.Close()

	// 3. Метрики процесса
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(reg)
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	// 4. Маршрутизатор подписок (единственный экземпляр на процесс)
	router := realtime.NewRouter(realtime.Options{
		MailboxSize:     cfg.Realtime.MailboxSize,
		DeliveryTimeout: cfg.Realtime.DeliveryTimeout,
	}, metrics, logger)

	// 5. Ядро
	ingestor := ingest.NewIngestor(store, router, metrics, logger)
	aggregator := aggregate.NewAggregator(store, metrics, logger)
	composer := dashboard.NewComposer(store, aggregator, metrics, logger)
	integrations := service.NewIntegrationService(store, router, logger)

	// 6. Redis: зеркало анонсов и второй вход приема
	var relay *realtime.RedisRelay
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		relay = realtime.NewRedisRelay(realtime.NewRedisPublisher(rdb), realtime.RelayOptions{
			Channel:       infra.RedisChanEvents,
			BatchSize:     cfg.Realtime.RelayBatchSize,
			FlushInterval: cfg.Realtime.RelayFlushInterval,
		}, metrics, logger)
		relay.Start()
		router.JoinBroadcast(relay)

		if cfg.Redis.IngestEnabled {
			listener := ingest.NewRedisListener(rdb, ingestor, infra.RedisChanMetricsIngest, logger)
			go listener.Run(appCtx)
		}
	}

	// 7. HTTP
	var inlineMetrics http.Handler
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			inlineMetrics = metricsHandler
		} else {
			// Экспортируем метрики для Prometheus на отдельном адресе
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metricsHandler)
				if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
					logger.Error("metrics listener failed", zap.Error(err))
				}
			}()
		}
	}

	hub := server.NewHubServer(
		logger,
		store,
		handler.NewIntegrationHandler(integrations, aggregator, logger),
		handler.NewMetricHandler(ingestor, aggregator, logger),
		handler.NewDashboardHandler(composer, logger),
		realtime.NewSocketHandler(router, realtime.SocketOptions{
			BroadcastByDefault: cfg.Realtime.BroadcastByDefault,
			InboundRate:        cfg.Realtime.InboundRate,
			InboundBurst:       cfg.Realtime.InboundBurst,
			PingInterval:       cfg.Realtime.PingInterval,
			WriteTimeout:       cfg.Server.WriteTimeout,
		}, logger),
		inlineMetrics,
	)

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     hub,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout не ставим: он рвет долгоживущие WebSocket-соединения
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("integration hub started", zap.String("addr", srv.Addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("integration hub stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	cancel()
	router.Close()
	if relay != nil {
		relay.Stop()
	}
	logger.Info("integration hub exited properly")
}
