// Package store 是本服务唯一的持久层实现，基于 gorm，
// 同时满足状态机、审核路由与裁决上报三方的存储契约。
// URL 方案决定方言: sqlite:// 用于本地与测试，postgres:// 用于生产。
package store

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/moderation"
	"github.com/featheredtoast/discourse-sift/internal/reporter"
	"github.com/featheredtoast/discourse-sift/internal/review"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// 编译期检查存储层满足各协作方的契约。
var (
	_ moderation.ContentStore = (*Store)(nil)
	_ review.Store            = (*Store)(nil)
	_ reporter.Store          = (*Store)(nil)
	_ sift.FieldStore         = (*Store)(nil)
)

// ErrPostNotFound 帖子不存在。消费侧据此区分可重试的基础设施
// 故障与不可重试的脏消息。
var ErrPostNotFound = errors.New("帖子不存在")

// Store 基于 gorm 的持久层。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore 按 URL 方案打开数据库并迁移表结构。
func NewStore(dbURL string, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	isSqlite := false

	if strings.HasPrefix(dbURL, "sqlite://") {
		dialector = sqlite.Open(dbURL[len("sqlite://"):])
		isSqlite = true
	} else if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		dialector = postgres.Open(dbURL)
	} else {
		return nil, fmt.Errorf("不支持的数据库 URL 方案: 须以 sqlite:// 、postgres:// 或 postgresql:// 开头")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if isSqlite {
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA busy_timeout=10000;")
	}

	if err := db.AutoMigrate(
		&models.Post{},
		&models.User{},
		&models.PostCustomField{},
		&models.PostAction{},
		&models.ReviewQueueEntry{},
	); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// DB 暴露底层连接，仅供测试数据准备使用。
func (s *Store) DB() *gorm.DB { return s.db }

// Close 关闭底层连接池。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
