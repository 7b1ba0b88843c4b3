package review

import (
	"context"

	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// standardReviewableRouter 走宿主标准举报队列的 reviewable 抽象:
// 由系统行动者打一条 inappropriate 举报，再落一条 flagged_post 条目。
type standardReviewableRouter struct {
	routerBase
}

func (r *standardReviewableRouter) Name() string { return "standard_reviewable" }

func (r *standardReviewableRouter) Route(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) (*models.ReviewQueueEntry, error) {
	msg := reason(eval)
	if err := r.flagPost(ctx, post, msg); err != nil {
		r.logger.Error("标准队列举报失败",
			zap.Uint64("post_id", post.ID),
			zap.Error(err),
		)
		return nil, err
	}
	return r.findOrCreateEntry(ctx, models.EntryTypeFlaggedPost, post, msg, "")
}

// standardLegacyRouter 标准队列 + 旧式 act 原语。宿主不支持
// reviewable 抽象时直接以组合消息举报，再落条目以便追踪裁决。
type standardLegacyRouter struct {
	routerBase
}

func (r *standardLegacyRouter) Name() string { return "standard_legacy" }

func (r *standardLegacyRouter) Route(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) (*models.ReviewQueueEntry, error) {
	msg := reason(eval)

	// act 本身不幂等，先查再举报。
	flag, err := r.store.FindFlag(ctx, post.ID, r.systemUserID)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		if err := r.store.ActOnPost(ctx, post.ID, r.systemUserID, msg); err != nil {
			r.logger.Error("旧式举报失败",
				zap.Uint64("post_id", post.ID),
				zap.Error(err),
			)
			return nil, err
		}
	} else if err := r.store.ResetFlag(ctx, flag.ID); err != nil {
		return nil, err
	}

	return r.findOrCreateEntry(ctx, models.EntryTypeFlaggedPost, post, msg, "")
}
