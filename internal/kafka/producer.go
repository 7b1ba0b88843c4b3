package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/Xushengqwer/go-common/core"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
)

// EventProducer 定义了本服务的全部出站 Kafka 面:
// 审核生命周期事件、裁决上报任务、用户通知任务与死信。
type EventProducer interface {
	// SendModerationEvent 发送审核生命周期事件到 moderation_events 主题。
	SendModerationEvent(ctx context.Context, event *models.ModerationEvent) error

	// SendReportJob 把裁决上报任务投入 report_actions 持久化队列。
	SendReportJob(ctx context.Context, job *models.ReportActionJob) error

	// SendNotification 请求宿主向用户发送系统消息 (notifications 主题)。
	SendNotification(ctx context.Context, job *models.NotificationJob) error

	// SendToDLQ 将处理失败的原始消息发送到死信队列。
	SendToDLQ(ctx context.Context, originalMessage *sarama.ConsumerMessage, failureReason string) error

	// Close 关闭生产者并释放资源。
	Close() error
}

// kafkaProducer 实现了 EventProducer 接口，使用 Sarama 同步生产者。
type kafkaProducer struct {
	producer sarama.SyncProducer
	topics   config.KafkaTopics
	logger   *core.ZapLogger
}

// NewKafkaProducer 创建同步生产者。
// 同步生产者要求 Return.Successes 和 Return.Errors 同时为 true。
func NewKafkaProducer(brokers []string, saramaCfg *sarama.Config, appTopics config.KafkaTopics, logger *core.ZapLogger) (EventProducer, error) {
	if !saramaCfg.Producer.Return.Successes || !saramaCfg.Producer.Return.Errors {
		logger.Error("Kafka生产者配置错误: 同步生产者需要 Return.Successes=true 和 Return.Errors=true")
		return nil, fmt.Errorf("kafka生产者配置错误: 同步生产者需要 Return.Successes=true 和 Return.Errors=true")
	}

	producer, err := sarama.NewSyncProducer(brokers, saramaCfg)
	if err != nil {
		logger.Error("创建 Kafka 同步生产者失败",
			zap.Strings("brokers", brokers),
			zap.Error(err),
		)
		return nil, fmt.Errorf("创建 Kafka 同步生产者失败: %w", err)
	}
	logger.Info("Kafka 同步生产者创建成功", zap.Strings("brokers", brokers))

	return &kafkaProducer{
		producer: producer,
		topics:   appTopics,
		logger:   logger,
	}, nil
}

// sendJSON 序列化并同步发送。Key 用于分区粘性与日志压缩。
func (p *kafkaProducer) sendJSON(topic, key string, payload any) error {
	if topic == "" {
		p.logger.Error("发送失败: 目标主题未在配置中定义")
		return fmt.Errorf("目标主题未配置")
	}

	valueJSON, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("序列化出站消息失败",
			zap.String("主题(topic)", topic),
			zap.String("消息键(key)", key),
			zap.Error(err),
		)
		return fmt.Errorf("序列化出站消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueJSON),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("发送消息到 Kafka 失败",
			zap.String("主题(topic)", topic),
			zap.String("消息键(key)", key),
			zap.Error(err),
		)
		return fmt.Errorf("发送消息到主题 %s 失败: %w", topic, err)
	}

	p.logger.Info("消息已发送到 Kafka",
		zap.String("主题(topic)", topic),
		zap.String("消息键(key)", key),
		zap.Int32("分区(partition)", partition),
		zap.Int64("偏移量(offset)", offset),
	)
	return nil
}

// SendModerationEvent 实现 EventProducer 接口。
func (p *kafkaProducer) SendModerationEvent(ctx context.Context, event *models.ModerationEvent) error {
	if event == nil {
		p.logger.Warn("SendModerationEvent: 尝试发送空的审核事件")
		return fmt.Errorf("审核事件不能为空")
	}
	return p.sendJSON(p.topics.ModerationEvents, event.EventID, event)
}

// SendReportJob 实现 EventProducer 接口。
func (p *kafkaProducer) SendReportJob(ctx context.Context, job *models.ReportActionJob) error {
	if job == nil {
		p.logger.Warn("SendReportJob: 尝试发送空的上报任务")
		return fmt.Errorf("上报任务不能为空")
	}
	return p.sendJSON(p.topics.ReportActions, job.JobID, job)
}

// SendNotification 实现 EventProducer 接口。
func (p *kafkaProducer) SendNotification(ctx context.Context, job *models.NotificationJob) error {
	if job == nil {
		p.logger.Warn("SendNotification: 尝试发送空的通知任务")
		return fmt.Errorf("通知任务不能为空")
	}
	return p.sendJSON(p.topics.Notifications, job.JobID, job)
}

// SendToDLQ 实现 EventProducer 接口，将处理失败的原始消息发送到死信队列。
func (p *kafkaProducer) SendToDLQ(ctx context.Context, originalMessage *sarama.ConsumerMessage, failureReason string) error {
	if originalMessage == nil {
		p.logger.Warn("SendToDLQ: 尝试发送空的原始消息到DLQ")
		return fmt.Errorf("发送到DLQ的原始消息不能为空")
	}

	dlqEventID := uuid.NewString()
	dlqEvent := models.DeadLetterEvent{
		DLQEventID:           dlqEventID,
		OriginalTopic:        originalMessage.Topic,
		OriginalPartition:    originalMessage.Partition,
		OriginalOffset:       originalMessage.Offset,
		OriginalMessageKey:   string(originalMessage.Key),
		OriginalMessageValue: string(originalMessage.Value),
		FailureReason:        failureReason,
		FailedAt:             time.Now().UnixMilli(),
		ProcessingService:    constants.ServiceName,
	}

	if err := p.sendJSON(p.topics.DeadLetterQueue, dlqEventID, dlqEvent); err != nil {
		return err
	}
	p.logger.Info("失败消息已转入死信队列",
		zap.String("DLQ事件ID(dlq_event_id)", dlqEventID),
		zap.String("原始主题(original_topic)", originalMessage.Topic),
		zap.Int64("原始偏移量(original_offset)", originalMessage.Offset),
		zap.String("失败原因(failure_reason)", failureReason),
	)
	return nil
}

// Close 实现 EventProducer 接口，关闭同步生产者。
func (p *kafkaProducer) Close() error {
	if p.producer != nil {
		p.logger.Info("正在关闭 Kafka 同步生产者...")
		if err := p.producer.Close(); err != nil {
			p.logger.Error("关闭 Kafka 同步生产者失败", zap.Error(err))
			return err
		}
		p.logger.Info("Kafka 同步生产者已成功关闭。")
	}
	return nil
}
