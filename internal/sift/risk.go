package sift

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Risk 是一次分类调用的类型化结果。
// Raw 保存逐字节的原始响应，持久化到帖子上供审计与展示。
type Risk struct {
	Risk     int             // 总体风险值，非负
	Response bool            // true 表示内容通过政策
	Topics   map[Topic]int   // 按主题的风险值，缺失主题视为 0
	Raw      json.RawMessage // 原始响应载荷 (不透明)
}

// rawResponse 是分类端点响应的线格式。topics 的键为主题 ID 的字符串形式。
type rawResponse struct {
	Risk     int            `json:"risk"`
	Response bool           `json:"response"`
	Topics   map[string]int `json:"topics"`
}

// ParseRisk 将响应体解析为 Risk。容错解析: 缺失字段取零值，
// 未知主题 ID 忽略不报错 (协议新增主题不应打断旧版本服务)。
func ParseRisk(body []byte) (Risk, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return Risk{}, fmt.Errorf("解析分类响应失败: %w", err)
	}

	topics := make(map[Topic]int, len(raw.Topics))
	for idStr, risk := range raw.Topics {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		topic := Topic(id)
		if _, known := topic.Name(); !known {
			continue
		}
		topics[topic] = risk
	}

	return Risk{
		Risk:     raw.Risk,
		Response: raw.Response,
		Topics:   topics,
		Raw:      json.RawMessage(body),
	}, nil
}

// FallbackRisk 分类服务不可达时的合成结果。
// responseBias 为合成的 response 取值，由降级倾向开关决定。
func FallbackRisk(responseBias bool) Risk {
	body, _ := json.Marshal(rawResponse{Risk: 0, Response: responseBias, Topics: map[string]int{}})
	return Risk{
		Risk:     0,
		Response: responseBias,
		Topics:   map[Topic]int{},
		Raw:      body,
	}
}

// OverAnyMaxRisk 是否有任一主题的风险值严格大于其配置的阈值。
// 未配置阈值的主题直接跳过。该判断与 Response 无关。
func (r Risk) OverAnyMaxRisk(thresholds ThresholdConfig) bool {
	for topic, risk := range r.Topics {
		level, ok := thresholds.DenyLevel(topic)
		if !ok {
			continue
		}
		if int64(risk) > level {
			return true
		}
	}
	return false
}

// TopicString 将响应中出现的主题按 "名称: 风险值" 枚举为一个字符串，
// 以枚举序拼接、空格分隔，对同一结果输出确定。无法解析的主题 ID
// 已在 ParseRisk 阶段剔除。该字符串面向版主展示并附加到通知消息。
func (r Risk) TopicString() string {
	var b strings.Builder
	for _, topic := range AllTopics {
		risk, present := r.Topics[topic]
		if !present {
			continue
		}
		name, _ := topic.Name()
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(risk))
	}
	return b.String()
}
