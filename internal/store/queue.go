package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/featheredtoast/discourse-sift/internal/models"
)

// FindPendingEntry 帖子上指定类型、指定创建者的打开条目。
// 未命中返回 (nil, nil)。
func (s *Store) FindPendingEntry(ctx context.Context, entryType string, postID uint64, createdByID int64) (*models.ReviewQueueEntry, error) {
	var entry models.ReviewQueueEntry
	err := s.db.WithContext(ctx).
		Where("type = ? AND target_id = ? AND created_by_id = ? AND status = ?",
			entryType, postID, createdByID, models.EntryStatusPending).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateEntry 新建审核队列条目。
func (s *Store) CreateEntry(ctx context.Context, entry *models.ReviewQueueEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// BumpEntry 复用已打开条目: 刷新原因并累加分数。
func (s *Store) BumpEntry(ctx context.Context, entryID uint64, score float64, reason string) error {
	return s.db.WithContext(ctx).Model(&models.ReviewQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"reason": reason,
			"score":  gorm.Expr("score + ?", score),
		}).Error
}

// ResolveReviewEntry 把单个队列条目从 pending 置为终态，
// 并同步处置该帖的举报记录。
func (s *Store) ResolveReviewEntry(ctx context.Context, entryID uint64, status string, moderatorID int64) error {
	var entry models.ReviewQueueEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := s.db.WithContext(ctx).Model(&entry).
		Where("status = ?", models.EntryStatusPending).
		Update("status", status).Error; err != nil {
		return err
	}
	return s.dispositionFlags(ctx, entry.TargetID, status, moderatorID)
}

// ResolvePendingEntries 关闭帖子上所有打开的队列条目并处置举报。
func (s *Store) ResolvePendingEntries(ctx context.Context, postID uint64, status string, moderatorID int64) error {
	if err := s.db.WithContext(ctx).Model(&models.ReviewQueueEntry{}).
		Where("target_id = ? AND status = ?", postID, models.EntryStatusPending).
		Update("status", status).Error; err != nil {
		return err
	}
	return s.dispositionFlags(ctx, postID, status, moderatorID)
}

// dispositionFlags 裁决落到举报记录: 条目批准对应认可举报，
// 条目驳回对应否决举报。记下裁决人，供上报侧反推版主身份。
func (s *Store) dispositionFlags(ctx context.Context, postID uint64, status string, moderatorID int64) error {
	now := time.Now()
	var updates map[string]any
	switch status {
	case models.EntryStatusApproved:
		updates = map[string]any{"agreed_at": &now, "agreed_by_id": moderatorID}
	case models.EntryStatusRejected:
		updates = map[string]any{"disagreed_at": &now, "disagreed_by_id": moderatorID}
	case models.EntryStatusIgnored:
		updates = map[string]any{"deferred_at": &now}
	default:
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.PostAction{}).
		Where("post_id = ? AND agreed_at IS NULL AND disagreed_at IS NULL AND deleted_at IS NULL", postID).
		Updates(updates).Error
}

// FindFlag 帖子上指定用户的举报，含已软删的: 复用路径通过
// ResetFlag 把它复活，而不是另起一条。未命中返回 (nil, nil)。
func (s *Store) FindFlag(ctx context.Context, postID uint64, userID int64) (*models.PostAction, error) {
	var flag models.PostAction
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&flag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

// CreateFlag 新建举报记录。
func (s *Store) CreateFlag(ctx context.Context, flag *models.PostAction) error {
	return s.db.WithContext(ctx).Create(flag).Error
}

// ResetFlag 清空举报的处置字段并撤销软删，等效于重新举报。
func (s *Store) ResetFlag(ctx context.Context, flagID uint64) error {
	return s.db.WithContext(ctx).Model(&models.PostAction{}).
		Where("id = ?", flagID).
		Updates(map[string]any{
			"agreed_at":       nil,
			"agreed_by_id":    0,
			"disagreed_at":    nil,
			"disagreed_by_id": 0,
			"deferred_at":     nil,
			"deleted_at":      nil,
		}).Error
}

// ActOnPost 旧式 act 原语: 直接以组合消息落一条举报。
func (s *Store) ActOnPost(ctx context.Context, postID uint64, userID int64, message string) error {
	return s.db.WithContext(ctx).Create(&models.PostAction{
		PostID:     postID,
		UserID:     userID,
		ActionType: "inappropriate",
		Message:    message,
	}).Error
}

// LatestResolvedFlag 帖子上最近一条已裁决的举报。未命中返回 (nil, nil)。
func (s *Store) LatestResolvedFlag(ctx context.Context, postID uint64) (*models.PostAction, error) {
	var flag models.PostAction
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND (agreed_at IS NOT NULL OR disagreed_at IS NOT NULL)", postID).
		Order("id DESC").
		First(&flag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flag, nil
}
