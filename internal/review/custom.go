package review

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// customQueueRouter 专用分类队列的共用实现: 不打举报，直接落一条
// sift_post 条目并携带内容与分类响应的快照，供专门的审核界面展示。
type customQueueRouter struct {
	routerBase
}

func (r *customQueueRouter) Route(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) (*models.ReviewQueueEntry, error) {
	payload, err := json.Marshal(models.ReviewEntryPayload{
		PostCooked: post.Cooked,
		Sift:       risk.Raw,
	})
	if err != nil {
		// 快照序列化失败不应拦住入队，降级为无快照条目。
		r.logger.Warn("审核条目快照序列化失败",
			zap.Uint64("post_id", post.ID),
			zap.Error(err),
		)
		payload = nil
	}
	return r.findOrCreateEntry(ctx, models.EntryTypeSiftPost, post, reason(eval), string(payload))
}

// customReviewableRouter 专用队列 + reviewable 抽象。
type customReviewableRouter struct {
	customQueueRouter
}

func (r *customReviewableRouter) Name() string { return "custom_reviewable" }

// customLegacyRouter 专用队列 + 旧式抽象。条目结构与 reviewable
// 变体一致，区别只在宿主消费条目的方式。
type customLegacyRouter struct {
	customQueueRouter
}

func (r *customLegacyRouter) Name() string { return "custom_legacy" }
