package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/review"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// ErrNotAwaitingVerdict 裁决操作只对 requires_moderation 状态合法。
var ErrNotAwaitingVerdict = errors.New("帖子不在等待人工裁决的状态")

// ErrUnknownReason 不认可裁决必须携带四个细分原因之一。
var ErrUnknownReason = errors.New("未知的不认可原因")

// disagreeReasons 不认可 (confirmed_passed) 的合法细分原因。
var disagreeReasons = map[string]bool{
	constants.ReasonFalsePositive: true,
	constants.ReasonTooStrict:     true,
	constants.ReasonUserEdited:    true,
	constants.ReasonOther:         true,
}

// Engine 串联分类客户端、风险评估器、状态机与队列路由。
// 每次调用处理单个内容项事件，内部不派生并发。
type Engine struct {
	logger     *zap.Logger
	cfg        config.SiftConfig
	thresholds sift.ThresholdConfig
	classifier Classifier
	store      ContentStore
	router     review.Router
	events     EventBus
	jobs       JobQueue
	notifier   Notifier
}

// NewEngine 创建审核引擎。router 由启动时按配置选定的策略注入。
func NewEngine(
	logger *zap.Logger,
	cfg config.SiftConfig,
	thresholds sift.ThresholdConfig,
	classifier Classifier,
	store ContentStore,
	router review.Router,
	events EventBus,
	jobs JobQueue,
	notifier Notifier,
) *Engine {
	return &Engine{
		logger:     logger,
		cfg:        cfg,
		thresholds: thresholds,
		classifier: classifier,
		store:      store,
		router:     router,
		events:     events,
		jobs:       jobs,
		notifier:   notifier,
	}
}

// ShouldClassify 该帖是否参与分类: 功能已配置、帖子有所属主题、
// 非私信、去空白后非空。不参与分类不是错误。
func (e *Engine) ShouldClassify(post *models.Post) bool {
	if post == nil || !e.cfg.ClassificationConfigured() {
		return false
	}
	if post.TopicID == 0 || post.Private {
		return false
	}
	return strings.TrimSpace(post.Raw) != ""
}

// ClassifyPost 对单个帖子执行完整的分类决策流程。
// 帖子被编辑后同一流程整体重跑，先前的状态 (包括版主放行) 不保留。
// 返回错误仅表示宿主数据不可达，交由任务队列按其语义处理。
func (e *Engine) ClassifyPost(ctx context.Context, postID uint64) error {
	post, err := e.store.FetchPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("取回帖子 %d 失败: %w", postID, err)
	}

	if !e.ShouldClassify(post) {
		classificationsSkipped.Inc()
		e.logger.Debug("帖子不参与分类，跳过", zap.Uint64("post_id", postID))
		return nil
	}

	author, err := e.store.FetchUser(ctx, post.UserID)
	if err != nil {
		return fmt.Errorf("取回帖子作者 %d 失败: %w", post.UserID, err)
	}
	if author == nil {
		// 事件乱序时作者记录可能尚未落库，用占位身份继续分类。
		author = &models.User{ID: post.UserID}
	}

	// 客户端永不抛错: 不可达时已按降级倾向合成结果并持久化原始响应。
	risk := e.classifier.SubmitForClassification(ctx, post, author)
	eval := sift.Evaluate(risk, e.thresholds)
	classificationsProcessed.WithLabelValues(eval.Decision.String()).Inc()

	e.logger.Info("分类完成",
		zap.Uint64("post_id", post.ID),
		zap.String("decision", eval.Decision.String()),
		zap.Int("risk", risk.Risk),
	)

	switch eval.Decision {
	case sift.DecisionPass:
		return e.moveToState(ctx, post, StatePassPolicyGuide)
	case sift.DecisionAutoDeny:
		return e.autoModerate(ctx, post, eval, risk)
	default:
		return e.requireModeration(ctx, post, eval, risk)
	}
}

// autoModerate 自动拦截路径: 移除内容、按需通知作者；标准队列未启用时
// 额外创建一条专用队列条目并立即确认违规 (已移除的内容仍留审计记录)；
// 最后广播事件供聊天通知等订阅方消费。
func (e *Engine) autoModerate(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) error {
	if err := e.moveToState(ctx, post, StateAutoModerated); err != nil {
		return err
	}
	e.removePostAndNotify(ctx, post, constants.MessageAutoFiltered)

	if !e.cfg.UseStandardQueue {
		entry, err := e.router.Route(ctx, post, eval, risk)
		if err != nil {
			e.logger.Error("创建自动拦截的审计队列条目失败",
				zap.Uint64("post_id", post.ID), zap.Error(err))
		} else if err := e.store.ResolveReviewEntry(ctx, entry.ID, models.EntryStatusApproved, e.cfg.SystemUserID); err != nil {
			e.logger.Error("确认自动拦截的审计队列条目失败",
				zap.Uint64("entry_id", entry.ID), zap.Error(err))
		}
	}

	e.raise(ctx, constants.EventAutoModerated, models.PostEventPayload{
		PostID:      post.ID,
		TopicID:     post.TopicID,
		TopicString: eval.TopicString,
	})
	return nil
}

// requireModeration 人工复审路径: 路由到选定的队列后端，
// 按配置隐藏内容，落状态并广播事件。
func (e *Engine) requireModeration(ctx context.Context, post *models.Post, eval sift.Evaluation, risk sift.Risk) error {
	if _, err := e.router.Route(ctx, post, eval, risk); err != nil {
		// 队列条目创建失败时不落 requires_moderation，让任务队列重投。
		// 路由是幂等的，重跑不会产生重复条目。
		return fmt.Errorf("路由帖子 %d 到审核队列失败: %w", post.ID, err)
	}

	if !e.cfg.PostStayVisible {
		if err := e.store.HidePost(ctx, post.ID, "inappropriate"); err != nil {
			e.logger.Error("隐藏待审帖子失败", zap.Uint64("post_id", post.ID), zap.Error(err))
		}
	}

	if err := e.moveToState(ctx, post, StateRequiresModeration); err != nil {
		return err
	}

	e.raise(ctx, constants.EventPostFailedPolicyGuide, models.PostEventPayload{
		PostID:      post.ID,
		TopicID:     post.TopicID,
		TopicString: eval.TopicString,
	})
	return nil
}

// ConfirmFailed 版主确认分类器判对了: 内容移除 (或保持移除)，
// 状态落 confirmed_failed，并以 agree 为由回报分类服务。
func (e *Engine) ConfirmFailed(ctx context.Context, postID uint64, moderatorID int64) error {
	post, err := e.requireVerdictState(ctx, postID)
	if err != nil {
		return err
	}

	e.remediateFailed(ctx, post, moderatorID)

	if err := e.resolveEntries(ctx, post.ID, models.EntryStatusApproved, moderatorID); err != nil {
		return err
	}
	if err := e.moveToState(ctx, post, StateConfirmedFailed); err != nil {
		return err
	}
	verdictsProcessed.WithLabelValues(string(StateConfirmedFailed)).Inc()

	e.enqueueReport(ctx, post.ID, moderatorID, constants.ReasonAgree, "")
	return nil
}

// ConfirmPassed 版主不认可分类结果，reason 必须是四个细分原因之一。
// 保留现状语义: 先走与确认违规相同的善后 (移除 + 通知)，再恢复内容，
// 最后只上报一次、且只携带细分原因。
func (e *Engine) ConfirmPassed(ctx context.Context, postID uint64, moderatorID int64, reason, extraRemarks string) error {
	if !disagreeReasons[reason] {
		return fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}

	post, err := e.requireVerdictState(ctx, postID)
	if err != nil {
		return err
	}

	e.remediateFailed(ctx, post, moderatorID)

	if err := e.store.RestorePost(ctx, post.ID, moderatorID); err != nil {
		e.logger.Error("恢复帖子失败", zap.Uint64("post_id", post.ID), zap.Error(err))
	}

	if err := e.resolveEntries(ctx, post.ID, models.EntryStatusRejected, moderatorID); err != nil {
		return err
	}
	if err := e.moveToState(ctx, post, StateConfirmedPassed); err != nil {
		return err
	}
	verdictsProcessed.WithLabelValues(string(StateConfirmedPassed)).Inc()

	e.enqueueReport(ctx, post.ID, moderatorID, reason, extraRemarks)
	return nil
}

// IgnorePost 版主搁置: 不表态、不上报，仅落状态并关闭队列条目。
func (e *Engine) IgnorePost(ctx context.Context, postID uint64, moderatorID int64) error {
	post, err := e.requireVerdictState(ctx, postID)
	if err != nil {
		return err
	}

	if err := e.resolveEntries(ctx, post.ID, models.EntryStatusIgnored, moderatorID); err != nil {
		return err
	}
	if err := e.moveToState(ctx, post, StateIgnored); err != nil {
		return err
	}
	verdictsProcessed.WithLabelValues(string(StateIgnored)).Inc()
	return nil
}

// Stats 只读统计: 按状态计数，classified 为全部非初始状态之和。
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	counts, err := e.store.StateCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("统计审核状态失败: %w", err)
	}
	return StatsFromCounts(counts), nil
}

// requireVerdictState 裁决入口的共同前置: 帖子存在且正等待人工裁决。
func (e *Engine) requireVerdictState(ctx context.Context, postID uint64) (*models.Post, error) {
	post, err := e.store.FetchPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("取回帖子 %d 失败: %w", postID, err)
	}
	value, err := e.store.CustomField(ctx, postID, constants.StateCustomField)
	if err != nil {
		return nil, fmt.Errorf("读取帖子 %d 的审核状态失败: %w", postID, err)
	}
	if ParseState(value) != StateRequiresModeration {
		return nil, fmt.Errorf("%w: post=%d state=%q", ErrNotAwaitingVerdict, postID, value)
	}
	return post, nil
}

// remediateFailed 确认违规的善后: 内容若仍在则移除，按需通知作者。
// 不认可路径也先经过这里 (保留现状语义)，上报由各自的调用方负责。
func (e *Engine) remediateFailed(ctx context.Context, post *models.Post, moderatorID int64) {
	if post.Removed() {
		return
	}
	if err := e.store.RemovePost(ctx, post.ID, moderatorID); err != nil {
		e.logger.Error("移除帖子失败", zap.Uint64("post_id", post.ID), zap.Error(err))
		return
	}
	now := time.Now()
	post.DeletedAt = &now
	if e.cfg.NotifyUser {
		e.notify(ctx, post.UserID, constants.MessageHasModerated, map[string]string{
			"topic_title": post.TopicTitle,
		})
	}
}

// removePostAndNotify 自动拦截的移除 + 通知。
func (e *Engine) removePostAndNotify(ctx context.Context, post *models.Post, messageType string) {
	if err := e.store.RemovePost(ctx, post.ID, e.cfg.SystemUserID); err != nil {
		e.logger.Error("移除帖子失败", zap.Uint64("post_id", post.ID), zap.Error(err))
		return
	}
	now := time.Now()
	post.DeletedAt = &now

	// 未配置"保持可见"时，同时隐藏等待物理清理。
	if !e.cfg.PostStayVisible {
		if err := e.store.HidePost(ctx, post.ID, "inappropriate"); err != nil {
			e.logger.Error("隐藏帖子失败", zap.Uint64("post_id", post.ID), zap.Error(err))
		}
	}

	if e.cfg.NotifyUser {
		e.notify(ctx, post.UserID, messageType, map[string]string{
			"topic_title": post.TopicTitle,
		})
	}
}

// moveToState 持久化状态迁移，并把最新的待审计数广播给订阅方。
// 状态字段由本状态机独占写入。
func (e *Engine) moveToState(ctx context.Context, post *models.Post, state State) error {
	if err := e.store.SaveCustomField(ctx, post.ID, constants.StateCustomField, string(state)); err != nil {
		return fmt.Errorf("持久化帖子 %d 状态 %s 失败: %w", post.ID, state, err)
	}

	count, err := e.store.CountPostsInState(ctx, StateRequiresModeration)
	if err != nil {
		e.logger.Warn("统计待审帖子数失败", zap.Error(err))
		return nil
	}
	e.raise(ctx, constants.EventReviewCounts, models.ReviewCountsPayload{SiftReviewCount: count})
	return nil
}

// resolveEntries 关闭帖子上仍在 pending 的队列条目。
func (e *Engine) resolveEntries(ctx context.Context, postID uint64, status string, moderatorID int64) error {
	if err := e.store.ResolvePendingEntries(ctx, postID, status, moderatorID); err != nil {
		return fmt.Errorf("关闭帖子 %d 的队列条目失败: %w", postID, err)
	}
	return nil
}

// enqueueReport 把裁决上报任务入队。上报是对分类服务的咨询性回传，
// 未配置即跳过，入队失败也只记日志。
func (e *Engine) enqueueReport(ctx context.Context, postID uint64, moderatorID int64, reason, extraRemarks string) {
	if !e.cfg.ReportingConfigured() {
		e.logger.Debug("裁决上报未配置，跳过", zap.Uint64("post_id", postID))
		return
	}
	job := models.ReportActionJob{
		JobID:              uuid.NewString(),
		Action:             reason,
		PostID:             postID,
		ModeratorID:        moderatorID,
		ExtraReasonRemarks: extraRemarks,
		EnqueuedAt:         time.Now(),
	}
	if err := e.jobs.Enqueue(ctx, constants.JobReportPostAction, job); err != nil {
		e.logger.Error("裁决上报任务入队失败",
			zap.Uint64("post_id", postID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	reportsEnqueued.WithLabelValues(reason).Inc()
}

func (e *Engine) raise(ctx context.Context, name string, payload any) {
	if err := e.events.Raise(ctx, name, payload); err != nil {
		e.logger.Error("广播事件失败", zap.String("event", name), zap.Error(err))
	}
}

func (e *Engine) notify(ctx context.Context, userID int64, messageType string, opts map[string]string) {
	if err := e.notifier.NotifyUser(ctx, userID, messageType, opts); err != nil {
		e.logger.Error("通知用户失败",
			zap.Int64("user_id", userID),
			zap.String("message_type", messageType),
			zap.Error(err),
		)
	}
}
