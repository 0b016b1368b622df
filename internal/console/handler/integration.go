package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// IntegrationService Описываем, что нам нужно от сервиса интеграций
type IntegrationService interface {
	List(ctx context.Context) ([]domain.Integration, error)
	Get(ctx context.Context, id int64) (*domain.Integration, error)
	Create(ctx context.Context, input domain.IntegrationInput) (*domain.Integration, error)
	Update(ctx context.Context, id int64, patch domain.IntegrationPatch) (*domain.Integration, error)
	Delete(ctx context.Context, id int64) error
}

// HealthReporter сводка здоровья одной интеграции.
type HealthReporter interface {
	Summarize(ctx context.Context, integrationID int64, window domain.Window) (*domain.HealthReport, error)
}

type IntegrationHandler struct {
	service IntegrationService
	health  HealthReporter
	logger  *zap.Logger
}

func NewIntegrationHandler(s IntegrationService, health HealthReporter, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{service: s, health: health, logger: logger.Named("integration-handler")}
}

// List GET /api/integrations
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get GET /api/integrations/{id}
func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// Create POST /api/integrations
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.IntegrationInput
	if err := decode(r, &input); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := h.service.Create(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

// Update PUT /api/integrations/{id}
func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var patch domain.IntegrationPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// Delete DELETE /api/integrations/{id}
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Integration removed"})
}

// Health GET /api/integrations/{id}/health?timeframe=day
func (h *IntegrationHandler) Health(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	report, err := h.health.Summarize(r.Context(), id, window(r, domain.WindowDay))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
