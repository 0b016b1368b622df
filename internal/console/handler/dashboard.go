package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// DashboardService Описываем, что нам нужно от сборщика дашборда
type DashboardService interface {
	Compose(ctx context.Context, window domain.Window) (*domain.DashboardSnapshot, error)
}

type DashboardHandler struct {
	service DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(s DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logger: logger.Named("dashboard-handler")}
}

// GetStats GET /api/metrics/dashboard?timeframe=day
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Compose(r.Context(), window(r, domain.WindowDay))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
