package config

// SiftConfig 包含了外部分类服务 (Community Sift) 及审核流程的全部配置。
// 所有按主题的拦截阈值集中在 DenyLevels，注入后不再有任何散落的全局配置读取。
type SiftConfig struct {
	Enabled bool `mapstructure:"enabled"` // 总开关，关闭时不做任何分类

	APIURL         string `mapstructure:"api_url"`          // 分类服务的基础 URL
	APIKey         string `mapstructure:"api_key"`          // Basic Auth 密码；为空视为功能未启用
	EndPoint       string `mapstructure:"end_point"`        // 分类端点路径
	ActionEndPoint string `mapstructure:"action_end_point"` // 裁决上报端点路径 (与分类端点相互独立)
	TimeoutMs      int64  `mapstructure:"timeout_ms"`       // 出站 HTTP 调用超时 (毫秒)

	// LanguageCode 固定语言代码。为空时请求带通配标记 "*"。
	LanguageCode string `mapstructure:"language_code"`

	// ExtraRequestParameter 不为空时，原样附加到请求体的 extra_parameters 字段。
	ExtraRequestParameter string `mapstructure:"extra_request_parameter"`

	// ErrorIsFalseResponse 分类服务不可达时的降级倾向开关:
	//   true  -> 合成响应按"未通过"处理，内容走人工复审；
	//   false -> 合成响应按"通过"处理，内容直接放行。
	// 两个方向都不是硬编码默认，必须显式配置。
	ErrorIsFalseResponse bool `mapstructure:"error_is_false_response"`

	// DenyLevels 按主题名的拦截阈值 (deny level)。缺失的主题永远不会成为
	// 自动拦截的原因。风险值严格大于阈值才触发拦截。
	DenyLevels map[string]int64 `mapstructure:"deny_levels"`

	UseStandardQueue     bool `mapstructure:"use_standard_queue"`     // 使用宿主通用举报队列，而非专用分类队列
	ReviewableAPIEnabled bool `mapstructure:"reviewable_api_enabled"` // 宿主是否提供泛化的 reviewable 抽象
	PostStayVisible      bool `mapstructure:"post_stay_visible"`      // 待审期间内容是否保持可见
	NotifyUser           bool `mapstructure:"notify_user"`            // 移除内容后是否通知作者
	ForceReview          bool `mapstructure:"force_review"`           // 标准队列打分时强制进入复审
	ReportingEnabled     bool `mapstructure:"reporting_enabled"`      // 是否向分类服务回报版主裁决

	// SystemUserID 作为系统行动者 (举报人/打分人) 的用户 ID。
	SystemUserID int64 `mapstructure:"system_user_id"`
}

// ClassificationConfigured 分类功能的生效条件: 总开关 + API Key + 端点齐备。
// 条件不满足按"功能未启用"处理，而不是错误 (配置缺失不应阻断内容发布)。
func (c SiftConfig) ClassificationConfigured() bool {
	return c.Enabled && c.APIKey != "" && c.APIURL != "" && c.EndPoint != ""
}

// ReportingConfigured 裁决上报的生效条件。
func (c SiftConfig) ReportingConfigured() bool {
	return c.ReportingEnabled && c.APIKey != "" && c.APIURL != "" && c.ActionEndPoint != ""
}
