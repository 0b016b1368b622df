package domain

import "time"

// DashboardSnapshot согласованный срез для верхнего экрана.
type DashboardSnapshot struct {
	Window                     Window                   `json:"window"`
	StatusCounts               []StatusCount            `json:"statusCounts"`               // за окно
	ResponseTimesByIntegration []IntegrationPerformance `json:"responseTimesByIntegration"` // за окно
	OverallSuccessRate         float64                  `json:"overallSuccessRate"`         // за окно
	IntegrationCounts          IntegrationCounts        `json:"integrationCounts"`          // текущее состояние
	LatestEvents               []LatestEvent            `json:"latestEvents"`
	GeneratedAt                time.Time                `json:"generatedAt"`
}

type IntegrationPerformance struct {
	IntegrationID   int64   `json:"integrationId"`
	IntegrationName string  `json:"integrationName"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	SuccessRate     float64 `json:"successRate"`
}

type IntegrationCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Error    int64 `json:"error"`
	Inactive int64 `json:"inactive"`
}

// LatestEvent метрика с именем владельца.
type LatestEvent struct {
	Metric
	IntegrationName string `json:"integrationName"`
}
