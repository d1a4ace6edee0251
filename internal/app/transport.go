package app

// Notification transports selectable with notifications.transport.
const (
	TransportDirect = "direct"
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
)
