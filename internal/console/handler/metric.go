package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// Ingestor прием одного события.
type Ingestor interface {
	Ingest(ctx context.Context, ev domain.MetricEvent) (*domain.Metric, error)
}

// MetricReader чтения метрик и системная сводка.
type MetricReader interface {
	Metrics(ctx context.Context, integrationID int64, window domain.Window) ([]domain.Metric, error)
	Latest(ctx context.Context, limit int) ([]domain.LatestEvent, error)
	SummarizeAll(ctx context.Context, window domain.Window) ([]domain.IntegrationSummary, error)
}

type MetricHandler struct {
	ingestor Ingestor
	reader   MetricReader
	logger   *zap.Logger
}

func NewMetricHandler(ingestor Ingestor, reader MetricReader, logger *zap.Logger) *MetricHandler {
	return &MetricHandler{ingestor: ingestor, reader: reader, logger: logger.Named("metric-handler")}
}

// Create POST /api/metrics
func (h *MetricHandler) Create(w http.ResponseWriter, r *http.Request) {
	var ev domain.MetricEvent
	if err := decode(r, &ev); err != nil {
		writeError(w, h.logger, err)
		return
	}
	m, err := h.ingestor.Ingest(r.Context(), ev)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Latest GET /api/metrics
func (h *MetricHandler) Latest(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.Latest(r.Context(), 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ForIntegration GET /api/metrics/integration/{integrationId}?timeframe=
// Без timeframe отдается вся история.
func (h *MetricHandler) ForIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "integrationId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ms, err := h.reader.Metrics(r.Context(), id, window(r, ""))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// Summary GET /api/metrics/summary?timeframe=day
func (h *MetricHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reader.SummarizeAll(r.Context(), window(r, domain.WindowDay))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
