package domain

import (
	"fmt"
	"strings"
	"time"
)

// MetricStatus исход одного запуска интеграции.
type MetricStatus string

const (
	MetricSuccess    MetricStatus = "Success"
	MetricFailure    MetricStatus = "Failure"
	MetricWarning    MetricStatus = "Warning"
	MetricProcessing MetricStatus = "Processing"
)

var MetricStatuses = []MetricStatus{MetricSuccess, MetricFailure, MetricWarning, MetricProcessing}

func (s MetricStatus) Valid() bool {
	for _, known := range MetricStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Metric неизменяемая запись о событии исполнения.
type Metric struct {
	ID            int64          `json:"id"`
	IntegrationID int64          `json:"integrationId"`
	Timestamp     time.Time      `json:"timestamp"`
	Status        MetricStatus   `json:"status"`
	ResponseTime  int64          `json:"responseTime"` // мс
	DataVolume    int64          `json:"dataVolume"`   // байты
	ErrorMessage  string         `json:"errorMessage"`
	Metadata      map[string]any `json:"metadata"`
}

// MetricEvent входящее событие до валидации. Указатели отличают "не передано" от нуля.
type MetricEvent struct {
	IntegrationID int64          `json:"integrationId"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
	Status        MetricStatus   `json:"status"`
	ResponseTime  *int64         `json:"responseTime,omitempty"`
	DataVolume    *int64         `json:"dataVolume,omitempty"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate проверяет закрытые перечисления и знаки до любой записи в хранилище.
func (e MetricEvent) Validate() error {
	var problems []string
	if e.IntegrationID <= 0 {
		problems = append(problems, "integrationId is required")
	}
	if !e.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", e.Status))
	}
	if e.ResponseTime != nil && *e.ResponseTime < 0 {
		problems = append(problems, "responseTime must be non-negative")
	}
	if e.DataVolume != nil && *e.DataVolume < 0 {
		problems = append(problems, "dataVolume must be non-negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// ToMetric материализует событие с дефолтами: время приема, нулевые счетчики.
func (e MetricEvent) ToMetric(now time.Time) *Metric {
	m := &Metric{
		IntegrationID: e.IntegrationID,
		Timestamp:     now,
		Status:        e.Status,
		ErrorMessage:  e.ErrorMessage,
		Metadata:      e.Metadata,
	}
	if e.Timestamp != nil && !e.Timestamp.IsZero() {
		m.Timestamp = *e.Timestamp
	}
	if e.ResponseTime != nil {
		m.ResponseTime = *e.ResponseTime
	}
	if e.DataVolume != nil {
		m.DataVolume = *e.DataVolume
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	return m
}

// StatusTransition побочный эффект метрики на статус интеграции.
type StatusTransition struct {
	IntegrationID int64
	To            IntegrationStatus
	At            time.Time
}

// MetricFilter условия выборки метрик. Нулевые значения означают "без ограничения".
// Порядок всегда по убыванию timestamp.
type MetricFilter struct {
	IntegrationID int64
	Since         time.Time
	Limit         int
}
