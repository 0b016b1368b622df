package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/console/handler"
)

// Pinger проверка готовности хранилища для /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HubServer struct {
	router *chi.Mux
	logger *zap.Logger
	store  Pinger

	// Обработчики
	integrationHandler *handler.IntegrationHandler // /api/integrations
	metricHandler      *handler.MetricHandler      // /api/metrics
	dashHandler        *handler.DashboardHandler   // /api/metrics/dashboard
	socket             http.Handler                // /ws
	metrics            http.Handler                // /metrics, nil если экспорт на отдельном адресе
}

// NewHubServer собирает HTTP-поверхность хаба со всеми зависимостями
func NewHubServer(
	logger *zap.Logger,
	store Pinger,
	integrationH *handler.IntegrationHandler,
	metricH *handler.MetricHandler,
	dashH *handler.DashboardHandler,
	socket http.Handler,
	metrics http.Handler,
) *HubServer {
	s := &HubServer{
		router:             chi.NewRouter(),
		logger:             logger.Named("hub-api"),
		store:              store,
		integrationHandler: integrationH,
		metricHandler:      metricH,
		dashHandler:        dashH,
		socket:             socket,
		metrics:            metrics,
	}

	s.routes()
	return s
}

func (s *HubServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Handle("/ws", s.socket)

	// --- 3. Интеграции ---
	r.Route("/api/integrations", func(r chi.Router) {
		r.Get("/", s.integrationHandler.List)
		r.Post("/", s.integrationHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.integrationHandler.Get)
			r.Put("/", s.integrationHandler.Update)
			r.Delete("/", s.integrationHandler.Delete)
			r.Get("/health", s.integrationHandler.Health) // сводка за окно + последние 10
		})
	})

	// --- 4. Метрики ---
	r.Route("/api/metrics", func(r chi.Router) {
		r.Get("/", s.metricHandler.Latest)
		r.Post("/", s.metricHandler.Create)
		r.Get("/integration/{integrationId}", s.metricHandler.ForIntegration)
		r.Get("/dashboard", s.dashHandler.GetStats)
		r.Get("/summary", s.metricHandler.Summary)
	})
}

func (s *HubServer) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ServeHTTP позволяет использовать HubServer как стандартный http.Handler
func (s *HubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
