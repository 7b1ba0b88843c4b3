package kafka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
)

// ErrBadMessage 标记不可重试的脏消息 (无法反序列化、指向已消失的
// 实体等)。消费循环据此把消息转入死信队列而不是无限重投。
var ErrBadMessage = errors.New("消息无法处理")

// Pipeline 入站消息的业务处理面，按主题分两条路径。
type Pipeline interface {
	// HandlePendingClassification 处理一条待分类事件。
	HandlePendingClassification(ctx context.Context, value []byte) error
	// HandleReportAction 处理一条裁决上报任务。
	HandleReportAction(ctx context.Context, value []byte) error
}

// SiftConsumerGroupHandler 实现了 sarama.ConsumerGroupHandler 接口。
// 与批处理不同，分类事件逐条处理并逐条标记偏移量:
// 同一帖子的编辑事件有先后语义，批内乱序会造成旧内容覆盖新结论。
type SiftConsumerGroupHandler struct {
	logger    *core.ZapLogger
	ready     chan bool // 用于通知消费者组已准备好开始消费
	readyOnce sync.Once // 重平衡会再次触发 Setup，只通知一次
	topics    config.KafkaTopics
	pipeline  Pipeline
	producer  EventProducer
}

// NewSiftConsumerGroupHandler 创建一个新的 SiftConsumerGroupHandler 实例。
func NewSiftConsumerGroupHandler(logger *core.ZapLogger, topics config.KafkaTopics, pipeline Pipeline, producer EventProducer) *SiftConsumerGroupHandler {
	return &SiftConsumerGroupHandler{
		logger:   logger,
		ready:    make(chan bool),
		topics:   topics,
		pipeline: pipeline,
		producer: producer,
	}
}

// Setup 在消费者会话开始时被调用。
func (handler *SiftConsumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	handler.logger.Info("Kafka 消费者组: 会话 Setup 已启动",
		zap.Any("声明的分区(claims)", session.Claims()),
		zap.String("成员ID(member_id)", session.MemberID()),
	)
	handler.readyOnce.Do(func() { close(handler.ready) })
	return nil
}

// Cleanup 在消费者会话结束时被调用。
func (handler *SiftConsumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	handler.logger.Info("Kafka 消费者组: 会话 Cleanup 已启动",
		zap.String("成员ID(member_id)", session.MemberID()),
	)
	return nil
}

// ConsumeClaim 是核心的消息处理循环。
// 处理成功或转入死信后标记偏移量；基础设施故障不标记，
// 直接返回错误让会话重启后重投。
func (handler *SiftConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	handler.logger.Info("Kafka 消费者组: ConsumeClaim 已启动",
		zap.String("主题(topic)", claim.Topic()),
		zap.Int32("分区(partition)", claim.Partition()),
		zap.Int64("初始偏移量(initial_offset)", claim.InitialOffset()),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				handler.logger.Info("Kafka 消费者组: 消息通道已关闭，退出 ConsumeClaim",
					zap.String("主题(topic)", claim.Topic()),
					zap.Int32("分区(partition)", claim.Partition()),
				)
				return nil
			}

			handler.logger.Debug("Kafka 消费者组: 收到消息",
				zap.String("主题(topic)", message.Topic),
				zap.Int32("分区(partition)", message.Partition),
				zap.Int64("偏移量(offset)", message.Offset),
			)

			err := handler.dispatch(session.Context(), message)
			if err == nil {
				session.MarkMessage(message, "")
				continue
			}

			if errors.Is(err, ErrBadMessage) {
				handler.logger.Error("Kafka 消费者组: 不可重试的脏消息，转入死信队列并标记偏移量",
					zap.String("主题(topic)", message.Topic),
					zap.Int64("偏移量(offset)", message.Offset),
					zap.Error(err),
				)
				if dlqErr := handler.producer.SendToDLQ(session.Context(), message, err.Error()); dlqErr != nil {
					handler.logger.Error("Kafka 消费者组: 发送消息到DLQ失败",
						zap.String("主题(topic)", message.Topic),
						zap.Int64("偏移量(offset)", message.Offset),
						zap.Error(dlqErr),
					)
					// 即使转入DLQ失败也标记偏移量，避免脏消息卡死分区。
				}
				session.MarkMessage(message, "")
				continue
			}

			handler.logger.Error("Kafka 消费者组: 消息处理失败，不标记偏移量，等待重投",
				zap.String("主题(topic)", message.Topic),
				zap.Int64("偏移量(offset)", message.Offset),
				zap.Error(err),
			)
			return err

		case <-session.Context().Done():
			handler.logger.Info("Kafka 消费者组: 会话上下文已完成，退出 ConsumeClaim",
				zap.String("主题(topic)", claim.Topic()),
				zap.Int32("分区(partition)", claim.Partition()),
			)
			return nil
		}
	}
}

// dispatch 按主题路由到对应的业务处理路径。
func (handler *SiftConsumerGroupHandler) dispatch(ctx context.Context, message *sarama.ConsumerMessage) error {
	switch message.Topic {
	case handler.topics.PendingClassification:
		return handler.pipeline.HandlePendingClassification(ctx, message.Value)
	case handler.topics.ReportActions:
		return handler.pipeline.HandleReportAction(ctx, message.Value)
	default:
		return fmt.Errorf("%w: 未订阅的主题 %s", ErrBadMessage, message.Topic)
	}
}

// StartConsumerGroup 创建消费者组并阻塞运行，直到收到终止信号
// 或父上下文取消。
func StartConsumerGroup(
	appCfg *config.AppConfig,
	zapLogger *core.ZapLogger,
	pipeline Pipeline,
	producer EventProducer,
) error {
	kafkaCfg := appCfg.Kafka

	saramaConfig, err := GetSaramaConfig(kafkaCfg, zapLogger)
	if err != nil {
		zapLogger.Error("创建 Sarama 消费者组配置失败", zap.Error(err))
		return fmt.Errorf("创建 Sarama 配置失败: %w", err)
	}
	if saramaConfig.Consumer.Offsets.AutoCommit.Enable {
		zapLogger.Warn("Sarama 配置指示消费者启用了自动提交。对于 ConsumerGroupHandler，推荐手动提交。")
	}
	if !saramaConfig.Version.IsAtLeast(sarama.V0_10_2_0) {
		msg := "配置中的 Kafka 版本不支持消费者组 (需要 >= 0.10.2.0)"
		zapLogger.Error(msg, zap.String("配置的版本(configured_version)", saramaConfig.Version.String()))
		return errors.New(msg)
	}

	handler := NewSiftConsumerGroupHandler(zapLogger, kafkaCfg.Topics, pipeline, producer)

	consumerGroup, err := sarama.NewConsumerGroup(kafkaCfg.Brokers, kafkaCfg.ConsumerGroupID, saramaConfig)
	if err != nil {
		zapLogger.Error("创建 Kafka 消费者组客户端失败",
			zap.Strings("brokers", kafkaCfg.Brokers),
			zap.String("组ID(group_id)", kafkaCfg.ConsumerGroupID),
			zap.Error(err),
		)
		return fmt.Errorf("创建消费者组客户端失败: %w", err)
	}
	zapLogger.Info("Kafka 消费者组客户端创建成功",
		zap.Strings("brokers", kafkaCfg.Brokers),
		zap.String("组ID(group_id)", kafkaCfg.ConsumerGroupID),
	)
	defer func() {
		if err := consumerGroup.Close(); err != nil {
			zapLogger.Error("关闭 Kafka 消费者组客户端失败", zap.Error(err))
		} else {
			zapLogger.Info("Kafka 消费者组客户端已成功关闭。")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		topics := []string{kafkaCfg.Topics.PendingClassification, kafkaCfg.Topics.ReportActions}
		zapLogger.Info("启动 Kafka 消费者组消费...",
			zap.Strings("订阅主题(topics)", topics),
			zap.String("组ID(group_id)", kafkaCfg.ConsumerGroupID),
		)

		for {
			if err := consumerGroup.Consume(ctx, topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					zapLogger.Info("Kafka 消费者组 Consume 循环优雅退出 (ErrClosedConsumerGroup)。")
					return
				}
				zapLogger.Error("Kafka 消费者组 Consume 过程中发生错误",
					zap.Error(err),
					zap.Strings("订阅主题(topics)", topics),
				)
				if ctx.Err() != nil {
					return
				}
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-handler.ready // 等待 Setup 完成
	zapLogger.Info("Kafka 消费者组已启动并运行！")

	select {
	case <-ctx.Done():
		zapLogger.Info("父上下文已取消，正在关闭消费者组...")
	case s := <-sigterm:
		zapLogger.Info("收到关闭信号，正在关闭消费者组...", zap.String("信号(signal)", s.String()))
	}

	cancel()
	wg.Wait()

	zapLogger.Info("Kafka 消费者组处理流程已完成关闭。")
	return nil
}
