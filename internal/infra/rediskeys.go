package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "epigate"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanDecisions — канал трансляции принятых решений о допуске.
	// Подписчики: табло у турникетов, дашборды операторов.
	RedisChanDecisions = RedisNamespace + ":decisions"
)
