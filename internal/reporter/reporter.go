// Package reporter 消费 report_actions 主题上的裁决上报任务，
// 把版主裁决回传给分类服务。上报是尽力而为的旁路: 任何无法
// 补救的任务都记录后丢弃，绝不把消息退回队列造成重复上报。
package reporter

import (
	"context"

	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
)

// validActions 允许上报的裁决动作。
var validActions = map[string]struct{}{
	constants.ReasonAgree:         {},
	constants.ReasonFalsePositive: {},
	constants.ReasonTooStrict:     {},
	constants.ReasonUserEdited:    {},
	constants.ReasonOther:         {},
}

// Store 上报器对持久层的依赖面。
type Store interface {
	// FetchPostForReport 装载帖子及其上报所需的派生数据
	// (分类原始响应、累计举报数)。未找到时返回 (nil, nil)。
	FetchPostForReport(ctx context.Context, postID uint64) (*models.Post, error)
	// FetchUser 未找到时返回 (nil, nil)。
	FetchUser(ctx context.Context, userID int64) (*models.User, error)
	// LatestResolvedFlag 帖子上最近一条已裁决 (认可或否决) 的举报，
	// 用于在任务未携带版主时反推身份。未找到时返回 (nil, nil)。
	LatestResolvedFlag(ctx context.Context, postID uint64) (*models.PostAction, error)
}

// ActionSubmitter 与分类服务上报端点的通信面，由 sift.Client 满足。
type ActionSubmitter interface {
	SubmitForAction(ctx context.Context, post *models.Post, author, moderator *models.User, reason, extraRemarks string)
}

// Reporter 裁决上报任务的处理器。
type Reporter struct {
	cfg       config.SiftConfig
	store     Store
	submitter ActionSubmitter
	logger    *zap.Logger
}

func NewReporter(cfg config.SiftConfig, store Store, submitter ActionSubmitter, logger *zap.Logger) *Reporter {
	return &Reporter{cfg: cfg, store: store, submitter: submitter, logger: logger}
}

// HandleJob 处理一条上报任务。返回 nil 表示任务已消费完毕
// (含静默丢弃的场景)；仅基础设施故障返回 error 触发重投。
func (r *Reporter) HandleJob(ctx context.Context, job *models.ReportActionJob) error {
	if !r.cfg.ReportingConfigured() {
		r.logger.Debug("上报未启用或未配置，丢弃裁决上报任务", zap.String("job_id", job.JobID))
		return nil
	}
	if _, ok := validActions[job.Action]; !ok || job.PostID == 0 {
		r.logger.Warn("裁决上报任务字段非法，丢弃",
			zap.String("job_id", job.JobID),
			zap.String("action", job.Action),
			zap.Uint64("post_id", job.PostID),
		)
		return nil
	}

	post, err := r.store.FetchPostForReport(ctx, job.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		r.logger.Warn("裁决上报任务指向的帖子已不存在，丢弃",
			zap.String("job_id", job.JobID),
			zap.Uint64("post_id", job.PostID),
		)
		return nil
	}

	author, err := r.store.FetchUser(ctx, post.UserID)
	if err != nil {
		return err
	}
	if author == nil {
		// 作者快照可能从未落库 (事件乱序或匿名来源)，用占位身份继续上报。
		author = &models.User{ID: post.UserID}
	}

	moderator, err := r.resolveModerator(ctx, job)
	if err != nil {
		return err
	}
	if moderator == nil {
		r.logger.Warn("无法确定裁决版主身份，丢弃上报任务",
			zap.String("job_id", job.JobID),
			zap.Uint64("post_id", job.PostID),
			zap.String("action", job.Action),
		)
		return nil
	}

	// SubmitForAction 自行吞掉传输错误，上报失败不重投。
	r.submitter.SubmitForAction(ctx, post, author, moderator, job.Action, job.ExtraReasonRemarks)
	return nil
}

// resolveModerator 确定裁决版主: 任务显式携带时直取，否则从帖子
// 最近一条已裁决举报的 agreed_by/disagreed_by 按裁决方向反推。
func (r *Reporter) resolveModerator(ctx context.Context, job *models.ReportActionJob) (*models.User, error) {
	moderatorID := job.ModeratorID
	if moderatorID == 0 {
		flag, err := r.store.LatestResolvedFlag(ctx, job.PostID)
		if err != nil {
			return nil, err
		}
		if flag == nil {
			return nil, nil
		}
		if job.Action == constants.ReasonAgree {
			moderatorID = flag.AgreedByID
		} else {
			moderatorID = flag.DisagreedByID
		}
		if moderatorID == 0 {
			return nil, nil
		}
	}
	return r.store.FetchUser(ctx, moderatorID)
}
