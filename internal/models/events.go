package models

import (
	"encoding/json"
	"time"
)

// PostPendingClassificationEvent 宿主论坛在发帖/编辑帖子时投递到
// pending_classification 主题的事件。帖子快照随事件携带，
// 消费侧先落库再触发分类。
type PostPendingClassificationEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Post      Post      `json:"post"`
	Author    User      `json:"author"`
}

// ReportActionJob 裁决上报的持久化任务 (report_actions 主题)。
// 由状态机在裁决落定时入队，由 Action Reporter 消费。
// ModeratorID 为 0 时，消费侧从帖子举报记录的 agreed_by/disagreed_by
// 反推版主身份。
type ReportActionJob struct {
	JobID              string    `json:"job_id"`
	Action             string    `json:"action"` // agree / false_positive / too_strict / user_edited / other
	PostID             uint64    `json:"post_id"`
	ModeratorID        int64     `json:"moderator_id,omitempty"`
	ExtraReasonRemarks string    `json:"extra_reason_remarks,omitempty"`
	EnqueuedAt         time.Time `json:"enqueued_at"`
}

// ModerationEvent 审核生命周期事件的统一信封 (moderation_events 主题)，
// 供聊天通知等下游订阅者消费。
type ModerationEvent struct {
	EventID   string          `json:"event_id"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ReviewCountsPayload sift_counts 事件的载荷。
type ReviewCountsPayload struct {
	SiftReviewCount int64 `json:"sift_review_count"`
}

// PostEventPayload 帖子相关事件的通用载荷。
type PostEventPayload struct {
	PostID      uint64 `json:"post_id"`
	TopicID     uint64 `json:"topic_id"`
	TopicString string `json:"topic_string,omitempty"`
}

// NotificationJob 请求宿主向用户发送系统消息的任务 (notifications 主题)。
type NotificationJob struct {
	JobID          string            `json:"job_id"`
	JobName        string            `json:"job_name"` // 宿主侧任务分发用，恒为 send_system_message
	UserID         int64             `json:"user_id"`
	MessageType    string            `json:"message_type"`
	MessageOptions map[string]string `json:"message_options,omitempty"`
}

// DeadLetterEvent 定义了发送到死信队列的消息结构。
type DeadLetterEvent struct {
	DLQEventID           string `json:"dlq_event_id"`                   // 死信队列事件自身的唯一ID (由发送方生成)
	OriginalTopic        string `json:"original_topic"`                 // 原始消息所在的主题
	OriginalPartition    int32  `json:"original_partition"`             // 原始消息所在的分区
	OriginalOffset       int64  `json:"original_offset"`                // 原始消息的偏移量
	OriginalMessageKey   string `json:"original_message_key,omitempty"` // 原始消息的Key (如果存在，转换为字符串)
	OriginalMessageValue string `json:"original_message_value"`         // 原始消息体 (可以是JSON字符串或Base64编码的字节)
	FailureReason        string `json:"failure_reason"`                 // 处理失败的原因
	FailedAt             int64  `json:"failed_at"`                      // 失败发生的时间戳 (Unix Milliseconds)
	ProcessingService    string `json:"processing_service"`             // 处理失败的服务名称
}
