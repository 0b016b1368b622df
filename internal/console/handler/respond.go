package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// errorBody формат ошибки, который ожидает клиент дашборда.
type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменную ошибку в HTTP-статус.
// Детали внутренних ошибок наружу не отдаются.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, msg := http.StatusInternalServerError, "Server Error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "Integration not found"
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrUnavailable):
		status, msg = http.StatusServiceUnavailable, "Storage unavailable"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Message: msg})
}

// pathID разбирает числовой идентификатор из пути chi.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}

// window окно из ?timeframe. Пустое значение заменяется на def;
// неизвестное передается как есть и означает "вся история".
func window(r *http.Request, def domain.Window) domain.Window {
	tf := r.URL.Query().Get("timeframe")
	if tf == "" {
		return def
	}
	return domain.Window(tf)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
