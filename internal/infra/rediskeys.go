package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "integrationhub"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanEvents зеркало анонсов маршрутизатора для внешних потребителей.
	RedisChanEvents = RedisNamespace + ":events"
	// RedisChanMetricsIngest входящие метрики от коннекторов, которые не ходят по HTTP.
	RedisChanMetricsIngest = RedisNamespace + ":metrics:ingest"
)
