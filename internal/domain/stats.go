package domain

// Summary статистическая свертка метрик за окно. Не хранится, считается при чтении.
type Summary struct {
	TotalEvents     int64   `json:"totalEvents"`
	SuccessEvents   int64   `json:"successEvents"`
	FailureEvents   int64   `json:"failureEvents"`
	WarningEvents   int64   `json:"warningEvents"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	MaxResponseTime int64   `json:"maxResponseTime"`
	TotalDataVolume int64   `json:"totalDataVolume"`
}

// HealthReport сводка по одной интеграции плюс последние метрики для отображения.
type HealthReport struct {
	IntegrationID int64  `json:"integrationId"`
	Window        Window `json:"window"`
	Summary
	Metrics []Metric `json:"metrics"`
}

// IntegrationSummary строка системной сводки, сгруппированной по интеграции.
type IntegrationSummary struct {
	IntegrationID     int64             `json:"integrationId"`
	IntegrationName   string            `json:"integrationName"`
	IntegrationStatus IntegrationStatus `json:"integrationStatus"`
	Summary
}

// MetricRollup сырые суммы group-by из хранилища. Средние и доли
// считаются в одном месте (aggregate), чтобы округление было единым.
type MetricRollup struct {
	IntegrationID     int64
	IntegrationName   string
	IntegrationStatus IntegrationStatus
	Total             int64
	Success           int64
	Failure           int64
	Warning           int64
	SumResponseTime   int64
	MaxResponseTime   int64
	TotalDataVolume   int64
}

type StatusCount struct {
	Status MetricStatus `json:"status"`
	Count  int64        `json:"count"`
}
