package sift

// Decision 是风险评估的三元结论。
type Decision int

const (
	DecisionPass        Decision = iota // 分类通过，直接放行
	DecisionAutoDeny                    // 有主题超阈值，自动拦截
	DecisionNeedsReview                 // 未通过且未超阈值，交人工复审
)

func (d Decision) String() string {
	switch d {
	case DecisionPass:
		return "pass"
	case DecisionAutoDeny:
		return "auto_deny"
	case DecisionNeedsReview:
		return "needs_review"
	default:
		return "unknown"
	}
}

// Evaluation 携带结论及非 Pass 时的主题风险摘要。
type Evaluation struct {
	Decision    Decision
	TopicString string // 非 Pass 时的 "名称: 风险值" 枚举串
}

// Evaluate 纯函数: 类型化结果 + 阈值配置 -> 三元结论。
// 优先级严格按序评估:
//  1. Response == true -> Pass，短路所有主题检查；
//  2. 任一主题风险严格大于其阈值 -> AutoDeny；
//  3. 其余 -> NeedsReview。
func Evaluate(r Risk, thresholds ThresholdConfig) Evaluation {
	if r.Response {
		return Evaluation{Decision: DecisionPass}
	}
	if r.OverAnyMaxRisk(thresholds) {
		return Evaluation{Decision: DecisionAutoDeny, TopicString: r.TopicString()}
	}
	return Evaluation{Decision: DecisionNeedsReview, TopicString: r.TopicString()}
}
