package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/moderation"
)

// UpsertPost 事件摄入面: 以事件携带的快照覆盖本地镜像。
// 同一帖子的编辑事件会反复走这里。
func (s *Store) UpsertPost(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"topic_id", "topic_title", "category_id", "post_number",
			"user_id", "raw", "cooked", "private", "updated_at",
		}),
	}).Create(post).Error
}

// UpsertUser 事件摄入面: 作者快照随事件落库。
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "staff"}),
	}).Create(user).Error
}

// FetchPost 取回帖子并装载分类原始响应与累计标记数。
// 不存在时返回 ErrPostNotFound。
func (s *Store) FetchPost(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("帖子 %d: %w", id, ErrPostNotFound)
		}
		return nil, err
	}

	raw, err := s.CustomField(ctx, id, constants.ResponseCustomField)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		post.RawClassification = json.RawMessage(raw)
	}

	var actionCount int64
	if err := s.db.WithContext(ctx).Model(&models.PostAction{}).
		Where("post_id = ? AND deleted_at IS NULL", id).
		Count(&actionCount).Error; err != nil {
		return nil, err
	}
	post.ActionCount = actionCount

	return &post, nil
}

// FetchPostForReport 上报侧的装载入口: 帖子不存在不算错误。
func (s *Store) FetchPostForReport(ctx context.Context, postID uint64) (*models.Post, error) {
	post, err := s.FetchPost(ctx, postID)
	if errors.Is(err, ErrPostNotFound) {
		return nil, nil
	}
	return post, err
}

// FetchUser 不存在时返回 (nil, nil)。
func (s *Store) FetchUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// SaveCustomField 写入或覆盖帖子上的键值自定义字段。
func (s *Store) SaveCustomField(ctx context.Context, postID uint64, name, value string) error {
	var existing models.PostCustomField
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND name = ?", postID, name).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&models.PostCustomField{
			PostID: postID,
			Name:   name,
			Value:  value,
		}).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&existing).Update("value", value).Error
}

// CustomField 读取自定义字段值，不存在返回空串。
func (s *Store) CustomField(ctx context.Context, postID uint64, name string) (string, error) {
	var field models.PostCustomField
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND name = ?", postID, name).
		First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return field.Value, nil
}

// RemovePost 软删除帖子。已删除的帖子重复移除是安全的。
func (s *Store) RemovePost(ctx context.Context, postID uint64, actorID int64) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND deleted_at IS NULL", postID).
		Update("deleted_at", &now).Error
}

// RestorePost 撤销软删除并清除隐藏标记。
func (s *Store) RestorePost(ctx context.Context, postID uint64, actorID int64) error {
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"deleted_at":    nil,
			"hidden_at":     nil,
			"hidden_reason": "",
		}).Error
}

// HidePost 隐藏帖子 (不删除)，记录隐藏原因。
func (s *Store) HidePost(ctx context.Context, postID uint64, reason string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"hidden_at":     &now,
			"hidden_reason": reason,
		}).Error
}

// StateCounts 按审核状态自定义字段的值分组计数。
func (s *Store) StateCounts(ctx context.Context) (map[moderation.State]int64, error) {
	type row struct {
		Value string
		Count int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.PostCustomField{}).
		Select("value, count(*) as count").
		Where("name = ?", constants.StateCustomField).
		Group("value").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[moderation.State]int64, len(rows))
	for _, r := range rows {
		counts[moderation.ParseState(r.Value)] += r.Count
	}
	return counts, nil
}

// CountPostsInState 单一状态的计数。
func (s *Store) CountPostsInState(ctx context.Context, state moderation.State) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PostCustomField{}).
		Where("name = ? AND value = ?", constants.StateCustomField, string(state)).
		Count(&count).Error
	return count, err
}
