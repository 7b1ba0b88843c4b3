package moderation

// State 是单个内容项在审核生命周期中的状态。
// 状态只进不退，唯一的例外是帖子被编辑后整个分类流程从
// unclassified 重跑 (已知限制: 版主放行过的内容可能被自己的
// 旧历史再次标记)。
type State string

const (
	StateUnclassified       State = "unclassified"        // 初始态，未持久化
	StatePassPolicyGuide    State = "pass_policy_guide"   // 分类通过
	StateAutoModerated      State = "auto_moderated"      // 超阈值自动拦截
	StateRequiresModeration State = "requires_moderation" // 等待人工裁决
	StateConfirmedFailed    State = "confirmed_failed"    // 版主确认违规
	StateConfirmedPassed    State = "confirmed_passed"    // 版主否决分类结果
	StateIgnored            State = "ignored"             // 版主搁置，不表态
)

// transitions 合法的前向迁移。auto_moderated / requires_moderation
// 的重入由重新分类 (回到 unclassified) 承载，不在此表内。
var transitions = map[State][]State{
	StateUnclassified:       {StatePassPolicyGuide, StateAutoModerated, StateRequiresModeration},
	StateRequiresModeration: {StateConfirmedFailed, StateConfirmedPassed, StateIgnored},
}

// CanTransition from 到 to 是否为合法迁移。
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseState 把持久化的字符串还原为状态。空串即未分类。
func ParseState(s string) State {
	if s == "" {
		return StateUnclassified
	}
	return State(s)
}

// Stats 按状态的聚合计数。状态值本身是统计的唯一事实来源。
type Stats struct {
	PassPolicyGuide    int64 `json:"pass_policy_guide"`
	AutoModerated      int64 `json:"auto_moderated"`
	RequiresModeration int64 `json:"requires_moderation"`
	ConfirmedFailed    int64 `json:"confirmed_failed"`
	ConfirmedPassed    int64 `json:"confirmed_passed"`
	Ignored            int64 `json:"ignored"`
	Classified         int64 `json:"classified"` // 所有非初始状态之和
}

// StatsFromCounts 从按状态值分组的计数构建 Stats。
func StatsFromCounts(counts map[State]int64) Stats {
	s := Stats{
		PassPolicyGuide:    counts[StatePassPolicyGuide],
		AutoModerated:      counts[StateAutoModerated],
		RequiresModeration: counts[StateRequiresModeration],
		ConfirmedFailed:    counts[StateConfirmedFailed],
		ConfirmedPassed:    counts[StateConfirmedPassed],
		Ignored:            counts[StateIgnored],
	}
	s.Classified = s.PassPolicyGuide + s.AutoModerated + s.RequiresModeration +
		s.ConfirmedFailed + s.ConfirmedPassed + s.Ignored
	return s
}
