package moderation

import (
	"context"

	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// 本文件定义审核核心对宿主平台的全部依赖面。核心只消费这些
// 最小契约，路由挂载、权限、序列化注入等宿主胶水不在其内。

// ContentStore 内容与用户的读写面。
type ContentStore interface {
	// FetchPost 取回帖子，并装载其分类原始响应与累计标记数。
	FetchPost(ctx context.Context, id uint64) (*models.Post, error)
	FetchUser(ctx context.Context, id int64) (*models.User, error)

	// SaveCustomField 持久化帖子上的键值自定义字段。
	SaveCustomField(ctx context.Context, postID uint64, name, value string) error
	// CustomField 读取自定义字段值，不存在返回空串。
	CustomField(ctx context.Context, postID uint64, name string) (string, error)

	RemovePost(ctx context.Context, postID uint64, actorID int64) error
	RestorePost(ctx context.Context, postID uint64, actorID int64) error
	HidePost(ctx context.Context, postID uint64, reason string) error

	// ResolveReviewEntry 把单个队列条目从 pending 置为终态。
	ResolveReviewEntry(ctx context.Context, entryID uint64, status string, moderatorID int64) error
	// ResolvePendingEntries 关闭帖子上所有 pending 的队列条目。
	ResolvePendingEntries(ctx context.Context, postID uint64, status string, moderatorID int64) error

	// StateCounts 按审核状态字段的值分组计数。
	StateCounts(ctx context.Context) (map[State]int64, error)
	// CountPostsInState 单一状态的计数 (sift_counts 事件用)。
	CountPostsInState(ctx context.Context, state State) (int64, error)
}

// EventBus 向下游订阅者广播生命周期事件 (raise-event)。
type EventBus interface {
	Raise(ctx context.Context, name string, payload any) error
}

// JobQueue 持久化任务队列 (enqueue-job)。重试属于队列实现，
// 核心自身从不重试。
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// Notifier 请求宿主向用户发送系统消息。
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, messageType string, opts map[string]string) error
}

// Classifier 是引擎消费的分类客户端契约 (便于测试替身)。
type Classifier interface {
	SubmitForClassification(ctx context.Context, post *models.Post, author *models.User) sift.Risk
}
