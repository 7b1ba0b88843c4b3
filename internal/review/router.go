// Package review 实现审核队列路由: 根据启动配置在
// (标准队列|专用队列) × (reviewable 抽象|旧式 flag 抽象)
// 两个独立维度上选定一个策略，而不是在每次调用时分支。
package review

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// flagMessagePrefix 展示给版主的可读原因前缀，后接主题风险摘要。
const flagMessagePrefix = "帖子未通过内容分类:"

// inappropriateFlag 标准队列使用的举报类型。
const inappropriateFlag = "inappropriate"

// Store 路由器对宿主队列后端的依赖面。
// Find* 系列未命中时返回 (nil, nil)。
type Store interface {
	FindPendingEntry(ctx context.Context, entryType string, postID uint64, createdByID int64) (*models.ReviewQueueEntry, error)
	CreateEntry(ctx context.Context, entry *models.ReviewQueueEntry) error
	// BumpEntry 复用已有条目: 刷新原因并累加分数。
	BumpEntry(ctx context.Context, entryID uint64, score float64, reason string) error

	FindFlag(ctx context.Context, postID uint64, userID int64) (*models.PostAction, error)
	CreateFlag(ctx context.Context, flag *models.PostAction) error
	// ResetFlag 清空已有举报的处置时间戳，等效于重新举报。
	ResetFlag(ctx context.Context, flagID uint64) error

	// ActOnPost 旧式 act 原语: 直接以组合消息举报帖子。
	ActOnPost(ctx context.Context, postID uint64, userID int64, message string) error
}

// Router 把一个非 Pass 的分类结论落为一条审核队列条目。
// 所有实现对同一 (帖子, 行动者) 在 unclassified 窗口内幂等:
// 重复路由返回同一条仍然打开的条目，不产生第二条。
type Router interface {
	Route(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) (*models.ReviewQueueEntry, error)
	Name() string
}

// Select 按两个配置维度选定策略，启动时调用一次。
func Select(cfg config.SiftConfig, store Store, logger *zap.Logger) Router {
	base := routerBase{
		store:        store,
		logger:       logger,
		systemUserID: cfg.SystemUserID,
		forceReview:  cfg.ForceReview,
	}
	switch {
	case cfg.UseStandardQueue && cfg.ReviewableAPIEnabled:
		return &standardReviewableRouter{routerBase: base}
	case cfg.UseStandardQueue:
		return &standardLegacyRouter{routerBase: base}
	case cfg.ReviewableAPIEnabled:
		return &customReviewableRouter{customQueueRouter{routerBase: base}}
	default:
		return &customLegacyRouter{customQueueRouter{routerBase: base}}
	}
}

type routerBase struct {
	store        Store
	logger       *zap.Logger
	systemUserID int64
	forceReview  bool
}

// reason 组合展示给版主的可读原因。
func reason(eval sift.Evaluation) string {
	return strings.TrimSpace(flagMessagePrefix + eval.TopicString)
}

// findOrCreateEntry 幂等的条目落库: 已有打开条目则复用并刷新，
// 否则新建并由系统行动者加上初始分数。
func (b *routerBase) findOrCreateEntry(ctx context.Context, entryType string, post *models.Post, entryReason, payload string) (*models.ReviewQueueEntry, error) {
	existing, err := b.store.FindPendingEntry(ctx, entryType, post.ID, b.systemUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := b.store.BumpEntry(ctx, existing.ID, 1, entryReason); err != nil {
			return nil, err
		}
		existing.Reason = entryReason
		existing.Score++
		b.logger.Debug("复用已打开的审核队列条目",
			zap.Uint64("post_id", post.ID),
			zap.Uint64("entry_id", existing.ID),
		)
		return existing, nil
	}

	entry := &models.ReviewQueueEntry{
		Type:        entryType,
		TargetID:    post.ID,
		CreatedByID: b.systemUserID,
		TopicID:     post.TopicID,
		Status:      models.EntryStatusPending,
		Reason:      entryReason,
		Payload:     payload,
		Score:       1,
		ForceReview: b.forceReview,
	}
	if err := b.store.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// flagPost 标准队列共用的举报处理: 同一行动者已有举报则复位处置字段，
// 避免重复举报；否则新建。
func (b *routerBase) flagPost(ctx context.Context, post *models.Post, message string) error {
	flag, err := b.store.FindFlag(ctx, post.ID, b.systemUserID)
	if err != nil {
		return err
	}
	if flag != nil {
		return b.store.ResetFlag(ctx, flag.ID)
	}
	return b.store.CreateFlag(ctx, &models.PostAction{
		PostID:     post.ID,
		UserID:     b.systemUserID,
		ActionType: inappropriateFlag,
		Message:    message,
	})
}
