package constants

// ServiceName 是本服务的标识，用于 Kafka ClientID、DLQ 事件溯源等。
const ServiceName = "discourse-sift"
