package constants

import "time"

const (
	KafkaProducerMaxSendRetries = 3               // 发送结果到Kafka的最大重试次数
	KafkaProducerSendRetryDelay = 1 * time.Second // 每次重试的延迟时间
)

// Kafka 任务名称。入队 (enqueue-job) 与消费侧共用同一组常量。
const (
	JobReportPostAction  = "report_post_action"  // 向分类服务回报版主裁决
	JobSendSystemMessage = "send_system_message" // 请求宿主论坛向用户发送系统消息
)
