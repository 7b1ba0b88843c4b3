package models

import (
	"encoding/json"
	"time"
)

// Post 是宿主论坛的帖子在本服务中的镜像记录。
// 由 pending_classification 事件写入/更新，审核流程的移除、恢复、
// 隐藏等副作用都落在这张表上。
type Post struct {
	ID         uint64 `gorm:"primarykey" json:"id"`
	TopicID    uint64 `gorm:"index" json:"topic_id"`    // 所属主题 (thread)
	TopicTitle string `json:"topic_title"`              // 主题标题 (首帖分类时前置到正文)
	CategoryID uint64 `json:"category_id"`              // 所属版块/分类
	PostNumber int    `json:"post_number"`              // 在主题内的序号，1 为首帖
	UserID     int64  `gorm:"index" json:"user_id"`     // 作者
	Raw        string `json:"raw"`                      // 原始文本
	Cooked     string `json:"cooked"`                   // 渲染后的 HTML
	Private    bool   `json:"private"`                  // 私信帖，不参与分类

	HiddenAt     *time.Time `json:"hidden_at,omitempty"`
	HiddenReason string     `json:"hidden_reason,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"` // 软删除；恢复时清空

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 以下为查询时按需装载的派生数据，不落库。
	RawClassification json.RawMessage `gorm:"-" json:"-"` // sift 自定义字段的原始响应
	ActionCount       int64           `gorm:"-" json:"-"` // 帖子上累计的举报/标记数
}

// IsFirstPost 该帖是否为其主题的首帖。
func (p *Post) IsFirstPost() bool { return p.PostNumber == 1 }

// Removed 帖子当前是否处于移除状态。
func (p *Post) Removed() bool { return p.DeletedAt != nil }

// User 宿主论坛用户的镜像记录。
type User struct {
	ID       int64  `gorm:"primarykey" json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Staff    bool   `json:"staff"`
}

// DisplayName 优先使用昵称，缺省回退到用户名。
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// PostCustomField 帖子上的键值自定义字段 (外部协作方写入面)。
// 分类原始响应与审核状态都持久化在这里。
type PostCustomField struct {
	ID     uint64 `gorm:"primarykey"`
	PostID uint64 `gorm:"index:idx_post_field,priority:1"`
	Name   string `gorm:"index:idx_post_field,priority:2"`
	Value  string
}

// PostAction 帖子上的一次举报/标记 (inappropriate flag)。
// 标准队列路径复用这张表；裁决后记录认可/否决人，供上报时
// 反推版主身份。
type PostAction struct {
	ID           uint64 `gorm:"primarykey"`
	PostID       uint64 `gorm:"index"`
	UserID       int64  `gorm:"index"` // 发起人 (系统行动者或真实用户)
	ActionType   string // 目前仅 "inappropriate"
	Message      string // 旧式 act 原语携带的组合消息
	AgreedAt     *time.Time
	AgreedByID   int64
	DisagreedAt  *time.Time
	DisagreedByID int64
	DeferredAt   *time.Time
	DeletedAt    *time.Time
	CreatedAt    time.Time
}

// ReviewQueueEntry 等待人工裁决的队列条目。
// Type 区分标准队列 (flagged_post) 与专用分类队列 (sift_post)。
type ReviewQueueEntry struct {
	ID          uint64 `gorm:"primarykey"`
	Type        string `gorm:"index:idx_entry_target,priority:1"`
	TargetID    uint64 `gorm:"index:idx_entry_target,priority:2"` // 目标帖子
	CreatedByID int64  `gorm:"index:idx_entry_target,priority:3"` // 创建者 (系统行动者)
	TopicID     uint64
	Status      string  // pending / approved / rejected / ignored
	Reason      string  // 展示给版主的可读原因 (主题风险摘要)
	Payload     string  // 快照: 渲染内容 + 分类原始响应 (JSON)
	Score       float64 // 队列排序用的累计分数
	ForceReview bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// 队列条目状态。对 pending 以外的值本服务只读。
const (
	EntryStatusPending  = "pending"
	EntryStatusApproved = "approved" // 版主认可分类 (confirmed_failed)
	EntryStatusRejected = "rejected" // 版主否决分类 (confirmed_passed)
	EntryStatusIgnored  = "ignored"
)

// 队列条目类型。
const (
	EntryTypeFlaggedPost = "flagged_post" // 宿主通用举报队列
	EntryTypeSiftPost    = "sift_post"    // 专用分类队列
)

// ReviewEntryPayload 专用队列条目携带的快照。
type ReviewEntryPayload struct {
	PostCooked string          `json:"post_cooked"`
	Sift       json.RawMessage `json:"sift,omitempty"`
}
