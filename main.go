package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/admin"
	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/kafka"
	"github.com/featheredtoast/discourse-sift/internal/moderation"
	"github.com/featheredtoast/discourse-sift/internal/reporter"
	"github.com/featheredtoast/discourse-sift/internal/review"
	"github.com/featheredtoast/discourse-sift/internal/sift"
	"github.com/featheredtoast/discourse-sift/internal/store"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "internal/config/config.development.yaml", "指定配置文件的路径")
	flag.Parse()

	var cfg config.AppConfig
	if err := core.LoadConfig(configFile, &cfg); err != nil {
		log.Fatalf("致命错误: 加载配置文件 '%s' 失败: %v", configFile, err)
	}

	logger, loggerErr := core.NewZapLogger(cfg.ZapConfig)
	if loggerErr != nil {
		log.Fatalf("致命错误: 初始化 ZapLogger 失败: %v", loggerErr)
	}
	defer func() {
		if err := logger.Logger().Sync(); err != nil {
			log.Printf("警告: ZapLogger Sync 操作失败: %v\n", err)
		}
	}()
	logger.Info("Logger 初始化成功。")

	// --- 持久层初始化 ---
	contentStore, err := store.NewStore(cfg.Database.URL, logger.Logger())
	if err != nil {
		logger.Fatal("初始化持久层失败", zap.String("url", cfg.Database.URL), zap.Error(err))
	}
	defer func() {
		if err := contentStore.Close(); err != nil {
			logger.Error("关闭持久层失败", zap.Error(err))
		}
	}()
	logger.Info("持久层初始化成功。")

	// --- 分类客户端与风险阈值 ---
	siftClient := sift.NewClient(cfg.Sift, contentStore, logger.Logger())
	thresholds := sift.NewThresholdConfig(cfg.Sift.DenyLevels, logger.Logger())
	if !cfg.Sift.ClassificationConfigured() {
		logger.Warn("分类功能未完整配置，入站帖子将全部跳过分类",
			zap.Bool("enabled", cfg.Sift.Enabled))
	}

	// --- Kafka 相关初始化 ---
	saramaCfg, err := kafka.GetSaramaConfig(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("创建 Kafka Sarama 配置失败", zap.Error(err))
	}

	kafkaProd, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, saramaCfg, cfg.Kafka.Topics, logger)
	if err != nil {
		logger.Fatal("初始化 Kafka 生产者失败", zap.Error(err))
	}
	defer func() {
		if err := kafkaProd.Close(); err != nil {
			logger.Error("关闭 Kafka 生产者失败", zap.Error(err))
		}
	}()
	logger.Info("Kafka 生产者初始化成功。")

	// --- 审核引擎与上报器 ---
	bridge := kafka.NewHostBridge(kafkaProd, logger.Logger())
	router := review.Select(cfg.Sift, contentStore, logger.Logger())
	logger.Info("审核队列路由策略已选定", zap.String("strategy", router.Name()))

	engine := moderation.NewEngine(
		logger.Logger(),
		cfg.Sift,
		thresholds,
		siftClient,
		contentStore,
		router,
		bridge,
		bridge,
		bridge,
	)
	actionReporter := reporter.NewReporter(cfg.Sift, contentStore, siftClient, logger.Logger())
	pipeline := kafka.NewSiftPipeline(contentStore, engine, actionReporter, logger)
	logger.Info("业务逻辑处理器 (SiftPipeline) 初始化成功。")

	// --- 管理面 HTTP 服务 ---
	adminServer := admin.NewServer(engine, logger.Logger())
	go func() {
		addr := cfg.Admin.ListenAddr
		if addr == "" {
			addr = ":8787"
		}
		if err := adminServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("管理面 HTTP 服务退出", zap.Error(err))
		}
	}()

	// --- 启动 Kafka 消费者组 ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := kafka.StartConsumerGroup(&cfg, logger, pipeline, kafkaProd); err != nil {
			logger.Error("Kafka 消费者组运行出错或已停止", zap.Error(err))
		}
	}()
	logger.Info("Kafka 消费者组已在后台启动。")

	select {
	case receivedSignal := <-sigChan:
		logger.Info("收到关闭信号，开始优雅关闭服务...", zap.String("信号", receivedSignal.String()))
	case <-consumerDone:
		logger.Error("Kafka 消费者组意外退出，开始关闭服务...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭管理面 HTTP 服务失败", zap.Error(err))
	}

	// StartConsumerGroup 内部监听同样的信号并自行退出。
	<-consumerDone
	logger.Info("服务已成功关闭。")
}
