package domain

// EventKind тип анонса для подписчиков реального времени.
type EventKind string

const (
	EventIntegrationCreated EventKind = "integrationCreated"
	EventIntegrationUpdated EventKind = "integrationUpdated"
	EventIntegrationDeleted EventKind = "integrationDeleted"
	EventMetricCreated      EventKind = "metricCreated"
)

// Unscoped анонс только в глобальный канал.
const Unscoped int64 = 0

// IntegrationDeleted полезная нагрузка анонса удаления.
type IntegrationDeleted struct {
	ID int64 `json:"id"`
}
