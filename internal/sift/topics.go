package sift

// Topic 是分类服务风险主题的固定枚举。协议侧以数字 ID 传输，
// 本服务内以主题名配置阈值。12 在上游协议中不存在，属有意跳号。
type Topic int

const (
	TopicGeneral        Topic = 0
	TopicBullying       Topic = 1
	TopicFighting       Topic = 2
	TopicPII            Topic = 3
	TopicSexting        Topic = 4
	TopicVulgar         Topic = 5
	TopicDrugs          Topic = 6
	TopicItems          Topic = 7
	TopicAlarm          Topic = 8
	TopicFraud          Topic = 9
	TopicHate           Topic = 10
	TopicReligious      Topic = 11
	TopicWebsite        Topic = 13
	TopicGrooming       Topic = 14
	TopicThreats        Topic = 15
	TopicRealname       Topic = 16
	TopicRadicalization Topic = 17
	TopicSubversive     Topic = 18
	TopicSentiment      Topic = 19
)

// AllTopics 枚举序 (ID 升序)。topic_string 的拼接顺序以此为准，
// 保证同一响应的输出确定。
var AllTopics = []Topic{
	TopicGeneral, TopicBullying, TopicFighting, TopicPII, TopicSexting,
	TopicVulgar, TopicDrugs, TopicItems, TopicAlarm, TopicFraud,
	TopicHate, TopicReligious, TopicWebsite, TopicGrooming, TopicThreats,
	TopicRealname, TopicRadicalization, TopicSubversive, TopicSentiment,
}

var topicNames = map[Topic]string{
	TopicGeneral:        "general",
	TopicBullying:       "bullying",
	TopicFighting:       "fighting",
	TopicPII:            "pii",
	TopicSexting:        "sexting",
	TopicVulgar:         "vulgar",
	TopicDrugs:          "drugs",
	TopicItems:          "items",
	TopicAlarm:          "alarm",
	TopicFraud:          "fraud",
	TopicHate:           "hate",
	TopicReligious:      "religious",
	TopicWebsite:        "website",
	TopicGrooming:       "grooming",
	TopicThreats:        "threats",
	TopicRealname:       "realname",
	TopicRadicalization: "radicalization",
	TopicSubversive:     "subversive",
	TopicSentiment:      "sentiment",
}

// Name 返回主题名。未知 ID 返回 ok=false，调用方应静默跳过而非报错。
func (t Topic) Name() (string, bool) {
	name, ok := topicNames[t]
	return name, ok
}

// TopicByName 按主题名反查枚举值，用于解析阈值配置。
func TopicByName(name string) (Topic, bool) {
	for t, n := range topicNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}
