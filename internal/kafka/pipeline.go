package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/moderation"
	"github.com/featheredtoast/discourse-sift/internal/reporter"
	"github.com/featheredtoast/discourse-sift/internal/store"
)

// IngestStore 事件摄入需要的最小存储面。
type IngestStore interface {
	UpsertPost(ctx context.Context, post *models.Post) error
	UpsertUser(ctx context.Context, user *models.User) error
}

// SiftPipeline 把入站 Kafka 消息翻译为引擎与上报器的调用。
// 反序列化失败以 ErrBadMessage 标记，由消费循环转入死信队列。
type SiftPipeline struct {
	ingest   IngestStore
	engine   *moderation.Engine
	reporter *reporter.Reporter
	logger   *core.ZapLogger
}

var _ Pipeline = (*SiftPipeline)(nil)

func NewSiftPipeline(ingest IngestStore, engine *moderation.Engine, rep *reporter.Reporter, logger *core.ZapLogger) *SiftPipeline {
	return &SiftPipeline{
		ingest:   ingest,
		engine:   engine,
		reporter: rep,
		logger:   logger,
	}
}

// HandlePendingClassification 落库帖子与作者快照，然后触发分类。
// 同一帖子的编辑事件会整体重跑这条路径 (重新分类丢弃旧结论)。
func (p *SiftPipeline) HandlePendingClassification(ctx context.Context, value []byte) error {
	var event models.PostPendingClassificationEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: 反序列化待分类事件失败: %v", ErrBadMessage, err)
	}
	if event.Post.ID == 0 {
		return fmt.Errorf("%w: 待分类事件缺少帖子ID (event_id=%s)", ErrBadMessage, event.EventID)
	}

	if err := p.ingest.UpsertUser(ctx, &event.Author); err != nil {
		return fmt.Errorf("落库作者快照失败: %w", err)
	}
	if err := p.ingest.UpsertPost(ctx, &event.Post); err != nil {
		return fmt.Errorf("落库帖子快照失败: %w", err)
	}

	p.logger.Debug("待分类事件已落库，触发分类",
		zap.String("event_id", event.EventID),
		zap.Uint64("post_id", event.Post.ID),
	)

	if err := p.engine.ClassifyPost(ctx, event.Post.ID); err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			return fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return err
	}
	return nil
}

// HandleReportAction 处理裁决上报任务。上报器自身把业务性失败
// 静默丢弃，返回错误的只有基础设施故障。
func (p *SiftPipeline) HandleReportAction(ctx context.Context, value []byte) error {
	var job models.ReportActionJob
	if err := json.Unmarshal(value, &job); err != nil {
		return fmt.Errorf("%w: 反序列化上报任务失败: %v", ErrBadMessage, err)
	}
	return p.reporter.HandleJob(ctx, &job)
}
