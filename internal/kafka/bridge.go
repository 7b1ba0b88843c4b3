package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/moderation"
)

// HostBridge 把状态机的宿主协作面 (事件广播、任务入队、用户通知)
// 落到 Kafka 生产者上。状态机自身不感知传输细节。
type HostBridge struct {
	producer EventProducer
	logger   *zap.Logger
}

// 编译期检查桥接器满足状态机的三个协作契约。
var (
	_ moderation.EventBus = (*HostBridge)(nil)
	_ moderation.JobQueue = (*HostBridge)(nil)
	_ moderation.Notifier = (*HostBridge)(nil)
)

func NewHostBridge(producer EventProducer, logger *zap.Logger) *HostBridge {
	return &HostBridge{producer: producer, logger: logger}
}

// Raise 把生命周期事件包进统一信封后广播。
func (b *HostBridge) Raise(ctx context.Context, name string, payload any) error {
	var payloadJSON json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化事件 %s 载荷失败: %w", name, err)
		}
		payloadJSON = data
	}
	b.logger.Debug("广播审核生命周期事件", zap.String("event_name", name))
	return b.producer.SendModerationEvent(ctx, &models.ModerationEvent{
		EventID:   uuid.NewString(),
		Name:      name,
		Timestamp: time.Now(),
		Payload:   payloadJSON,
	})
}

// Enqueue 按任务名分发到对应主题。
func (b *HostBridge) Enqueue(ctx context.Context, name string, payload any) error {
	switch name {
	case constants.JobReportPostAction:
		job, ok := payload.(models.ReportActionJob)
		if !ok {
			return fmt.Errorf("任务 %s 载荷类型错误: %T", name, payload)
		}
		return b.producer.SendReportJob(ctx, &job)
	default:
		return fmt.Errorf("未知的任务类型: %s", name)
	}
}

// NotifyUser 把系统消息请求投入通知主题，由宿主侧的投递器消费。
func (b *HostBridge) NotifyUser(ctx context.Context, userID int64, messageType string, opts map[string]string) error {
	return b.producer.SendNotification(ctx, &models.NotificationJob{
		JobID:          uuid.NewString(),
		JobName:        constants.JobSendSystemMessage,
		UserID:         userID,
		MessageType:    messageType,
		MessageOptions: opts,
	})
}
