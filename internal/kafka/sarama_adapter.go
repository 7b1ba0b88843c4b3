package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
)

// zapToSaramaAdapter 把 core.ZapLogger 桥接到 sarama.StdLogger，
// 让 Sarama 的内部日志也走统一的结构化输出。
type zapToSaramaAdapter struct {
	logger *core.ZapLogger
}

// NewZapToSaramaAdapter 创建桥接器。传入 nil 时返回 nil，
// Sarama 会退回它自带的 stderr logger。
func NewZapToSaramaAdapter(logger *core.ZapLogger) sarama.StdLogger {
	if logger == nil {
		return nil
	}
	return &zapToSaramaAdapter{logger: logger}
}

func (a *zapToSaramaAdapter) Print(v ...interface{}) {
	a.logger.Info("Sarama", zap.String("internal_log", fmt.Sprint(v...)))
}

func (a *zapToSaramaAdapter) Printf(format string, v ...interface{}) {
	a.logger.Info("Sarama", zap.String("internal_log", fmt.Sprintf(format, v...)))
}

func (a *zapToSaramaAdapter) Println(v ...interface{}) {
	a.logger.Info("Sarama", zap.String("internal_log", fmt.Sprintln(v...)))
}

// GetSaramaConfig 把应用侧的 config.KafkaConfig 翻译为 sarama.Config。
// 分类事件与裁决上报任务都不允许丢失，所以这里统一强制:
// 消费从 earliest 开始；acks=all 时启用幂等生产者。
func GetSaramaConfig(cfg config.KafkaConfig, zapLogger *core.ZapLogger) (*sarama.Config, error) {
	if adapter := NewZapToSaramaAdapter(zapLogger); adapter != nil {
		sarama.Logger = adapter
	}

	saramaCfg := sarama.NewConfig()

	// Sarama 需要明确的协议版本，缺省值容易踩兼容性坑。
	if cfg.Version == "" {
		return nil, fmt.Errorf("kafka.version 未在配置中指定")
	}
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("无效的 Kafka 版本配置 '%s': %w", cfg.Version, err)
	}
	saramaCfg.Version = version

	// 生产者确认级别。
	switch cfg.Producer.RequiredAcks {
	case "no_response":
		saramaCfg.Producer.RequiredAcks = sarama.NoResponse
	case "wait_for_local":
		saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	case "wait_for_all", "":
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
		zapLogger.Warn("生产者 RequiredAcks 配置无效，回退到 WaitForAll",
			zap.String("configured_acks", cfg.Producer.RequiredAcks))
	}
	saramaCfg.Producer.Timeout = cfg.Producer.TimeoutMs * time.Millisecond
	saramaCfg.Producer.Return.Successes = cfg.Producer.ReturnSuccesses
	saramaCfg.Producer.Return.Errors = cfg.Producer.ReturnErrors
	saramaCfg.Producer.Retry.Max = constants.KafkaProducerMaxSendRetries
	saramaCfg.Producer.Retry.Backoff = constants.KafkaProducerSendRetryDelay
	if cfg.Producer.MaxMessageBytes > 0 {
		saramaCfg.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	}

	// 幂等生产者: 裁决上报任务重复写入会造成重复上报，
	// 满足条件 (acks=all 且 broker >= 0.11) 时启用。
	if saramaCfg.Producer.RequiredAcks == sarama.WaitForAll {
		if saramaCfg.Version.IsAtLeast(sarama.V0_11_0_0) {
			saramaCfg.Producer.Idempotent = true
			saramaCfg.Net.MaxOpenRequests = 1 // 幂等生产要求每连接串行
		} else {
			zapLogger.Warn("Kafka 版本过低，幂等生产者不启用",
				zap.String("configured_version", saramaCfg.Version.String()))
		}
	}

	// 消费起点: 漏掉一条待分类事件意味着一个帖子永远停在未分类，
	// 无论配置怎么写都强制 earliest。
	if cfg.Consumer.Offsets.Initial != "earliest" && cfg.Consumer.Offsets.Initial != "" {
		zapLogger.Info("消费起点被强制覆盖为 earliest",
			zap.String("original_configured_offset", cfg.Consumer.Offsets.Initial))
	}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	saramaCfg.Consumer.Offsets.AutoCommit.Enable = cfg.Consumer.Offsets.AutoCommitEnable
	if cfg.Consumer.Offsets.AutoCommitEnable {
		saramaCfg.Consumer.Offsets.AutoCommit.Interval = cfg.Consumer.Offsets.AutoCommitIntervalMs * time.Millisecond
		zapLogger.Warn("偏移量自动提交已启用，建议改为手动标记以保证处理可靠性",
			zap.Duration("interval", saramaCfg.Consumer.Offsets.AutoCommit.Interval))
	}

	saramaCfg.Consumer.Group.Session.Timeout = cfg.Consumer.SessionTimeoutMs * time.Millisecond
	if cfg.Consumer.HeartbeatIntervalMs > 0 {
		saramaCfg.Consumer.Group.Heartbeat.Interval = cfg.Consumer.HeartbeatIntervalMs * time.Millisecond
	} else if saramaCfg.Consumer.Group.Session.Timeout > 0 {
		saramaCfg.Consumer.Group.Heartbeat.Interval = saramaCfg.Consumer.Group.Session.Timeout / 3
	}

	// Sticky 重平衡，减少分区迁移带来的重复消费窗口。
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}

	if cfg.EnableSASL {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SASLUser
		saramaCfg.Net.SASL.Password = cfg.SASLPassword
		switch cfg.SASLMechanism {
		case "PLAIN", "":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "SCRAM-SHA-512":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		default:
			return nil, fmt.Errorf("不支持的 SASL 机制: '%s'", cfg.SASLMechanism)
		}
	}

	if cfg.EnableTLS {
		saramaCfg.Net.TLS.Enable = true
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLSInsecureSkipVerify {
			tlsConfig.InsecureSkipVerify = true
			zapLogger.Warn("TLS InsecureSkipVerify 已启用，不应在生产环境使用")
		}
		if cfg.TLSCaFile != "" {
			caCert, err := os.ReadFile(cfg.TLSCaFile)
			if err != nil {
				return nil, fmt.Errorf("读取 CA 证书文件失败 %s: %w", cfg.TLSCaFile, err)
			}
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("无法将 CA 证书添加到证书池 (文件: %s)", cfg.TLSCaFile)
			}
			tlsConfig.RootCAs = caCertPool
		}
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			clientCert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
			if err != nil {
				return nil, fmt.Errorf("加载客户端证书和密钥失败: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{clientCert}
		} else if cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" {
			return nil, fmt.Errorf("TLS 客户端认证配置错误: TLSCertFile 和 TLSKeyFile 必须成对提供")
		}
		saramaCfg.Net.TLS.Config = tlsConfig
	}

	saramaCfg.ClientID = constants.ServiceName

	return saramaCfg, nil
}
