package constants

const (
	// MaxClassifyTextChars 单次提交分类的最大文本长度。
	// 与宿主论坛帖子长度上限的默认值保持一致，约束请求体大小。
	MaxClassifyTextChars = 31000

	// ResponseCustomField 帖子自定义字段: 分类服务返回的原始响应 (JSON)，供审计与展示。
	ResponseCustomField = "sift"

	// StateCustomField 帖子自定义字段: 审核状态机的当前状态。
	// 统计口径以该字段的值分组计数，它是唯一事实来源。
	StateCustomField = "SIFT_STATE"

	// RequestExtraParamField 请求体中透传额外参数的字段名。
	RequestExtraParamField = "extra_parameters"

	// BasicAuthUser 调用分类服务时 HTTP Basic Auth 的用户名，密码为 API Key。
	BasicAuthUser = "discourse-plugin"

	// LanguageWildcard 未配置固定语言代码时使用的通配标记。
	LanguageWildcard = "*"
)

// 审核裁决的上报原因。agree 表示版主认可分类结果，
// 其余四个为不认可 (disagree) 的细分原因。
const (
	ReasonAgree         = "agree"
	ReasonFalsePositive = "false_positive"
	ReasonTooStrict     = "too_strict"
	ReasonUserEdited    = "user_edited"
	ReasonOther         = "other"
)

// 通知用户的系统消息模板。
const (
	MessageAutoFiltered = "sift_auto_filtered" // 内容被自动拦截移除
	MessageHasModerated = "sift_has_moderated" // 版主确认内容违规并移除
)

// 对下游订阅者广播的事件名 (moderation_events 主题)。
const (
	EventAutoModerated         = "sift_auto_moderated"
	EventPostFailedPolicyGuide = "sift_post_failed_policy_guide"
	EventReviewCounts          = "sift_counts"
)
