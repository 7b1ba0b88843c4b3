package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/Xushengqwer/go-common/core"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/kafka"
	"github.com/featheredtoast/discourse-sift/internal/models"
)

// 本地联调用的测试生产者: 向待分类主题投递伪造的帖子事件，
// 观察消费侧的分类与入队行为。
func main() {
	var configFile string
	var numMessages int

	flag.StringVar(&configFile, "config", "internal/config/config.development.yaml", "指定配置文件的路径")
	flag.IntVar(&numMessages, "n", 10, "要发送的测试消息数量")
	flag.Parse()

	var appCfg config.AppConfig
	if err := core.LoadConfig(configFile, &appCfg); err != nil {
		log.Fatalf("致命错误: 加载配置文件 '%s' 失败: %v", configFile, err)
	}

	logger, loggerErr := core.NewZapLogger(appCfg.ZapConfig)
	if loggerErr != nil {
		log.Fatalf("致命错误: 初始化 ZapLogger 失败: %v", loggerErr)
	}
	defer func() {
		_ = logger.Logger().Sync()
	}()

	saramaCfg, err := kafka.GetSaramaConfig(appCfg.Kafka, logger)
	if err != nil {
		logger.Fatal("创建 Kafka Sarama 配置失败", zap.Error(err))
	}
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true

	syncProducer, err := sarama.NewSyncProducer(appCfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		logger.Fatal("创建 Kafka 同步生产者失败",
			zap.Strings("brokers", appCfg.Kafka.Brokers),
			zap.Error(err),
		)
	}
	defer func() {
		if err := syncProducer.Close(); err != nil {
			logger.Error("关闭 Kafka 同步生产者失败", zap.Error(err))
		}
	}()

	targetTopic := appCfg.Kafka.Topics.PendingClassification
	if targetTopic == "" {
		logger.Fatal("配置错误: kafka topics.pending_classification 未定义")
	}
	logger.Info("将向主题发送测试事件", zap.String("topic", targetTopic))

	for i := 1; i <= numMessages; i++ {
		postID := uint64(time.Now().UnixNano()/1000000 + int64(i))
		authorID := int64((i % 5) + 100)

		event := models.PostPendingClassificationEvent{
			EventID:   uuid.NewString(),
			Timestamp: time.Now(),
			Post: models.Post{
				ID:         postID,
				TopicID:    uint64(1000 + i),
				TopicTitle: fmt.Sprintf("测试主题 %d - %s", i, time.Now().Format("15:04:05")),
				CategoryID: uint64((i % 3) + 1),
				PostNumber: (i % 4) + 1,
				UserID:     authorID,
				Raw:        fmt.Sprintf("这是帖子 %d 的正文，用于验证分类链路。当前时间: %s", i, time.Now().String()),
				Cooked:     fmt.Sprintf("<p>这是帖子 %d 的正文。</p>", i),
			},
			Author: models.User{
				ID:       authorID,
				Username: fmt.Sprintf("test_user_%d", authorID),
				Name:     fmt.Sprintf("测试用户%d", authorID),
			},
		}

		// 每第 3 条掺入一段带引用块与越界措辞的内容，观察降噪与拦截路径。
		if i%3 == 0 {
			event.Post.Raw = "[quote=\"someone\"]被引用的旧内容[/quote] 这条消息带有攻击性措辞，预期被标记。"
		}

		eventJSON, err := json.Marshal(event)
		if err != nil {
			logger.Error("序列化测试事件失败", zap.Uint64("post_id", postID), zap.Error(err))
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: targetTopic,
			Key:   sarama.StringEncoder(event.EventID),
			Value: sarama.ByteEncoder(eventJSON),
		}

		partition, offset, err := syncProducer.SendMessage(msg)
		if err != nil {
			logger.Error("发送测试事件失败",
				zap.String("topic", targetTopic),
				zap.Uint64("post_id", postID),
				zap.Error(err),
			)
		} else {
			logger.Info("测试事件已发送",
				zap.String("topic", targetTopic),
				zap.Uint64("post_id", postID),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
			)
		}
		time.Sleep(200 * time.Millisecond)
	}

	logger.Info("所有测试消息已发送完毕。")
}
