package sift

import "go.uber.org/zap"

// ThresholdConfig 按主题的拦截阈值 (deny level)，启动时从配置构建一次，
// 注入风险评估器后不可变。未配置的主题永远不会成为拦截原因。
type ThresholdConfig map[Topic]int64

// NewThresholdConfig 从 "主题名 -> 阈值" 的配置映射构建阈值表。
// 未知主题名记录告警后跳过 (配置问题按降级处理，不阻断启动)。
func NewThresholdConfig(denyLevels map[string]int64, logger *zap.Logger) ThresholdConfig {
	tc := make(ThresholdConfig, len(denyLevels))
	for name, level := range denyLevels {
		topic, ok := TopicByName(name)
		if !ok {
			if logger != nil {
				logger.Warn("阈值配置包含未知主题名，已跳过", zap.String("topic", name))
			}
			continue
		}
		tc[topic] = level
	}
	return tc
}

// DenyLevel 返回主题的阈值。ok=false 表示该主题未配置阈值。
func (tc ThresholdConfig) DenyLevel(t Topic) (int64, bool) {
	level, ok := tc[t]
	return level, ok
}
