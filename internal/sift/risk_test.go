package sift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRisk(t *testing.T) {
	body := []byte(`{"risk":5,"response":false,"topics":{"2":7,"10":3}}`)
	risk, err := ParseRisk(body)
	require.NoError(t, err)

	assert.Equal(t, 5, risk.Risk)
	assert.False(t, risk.Response)
	assert.Equal(t, map[Topic]int{TopicFighting: 7, TopicHate: 3}, risk.Topics)
	assert.JSONEq(t, string(body), string(risk.Raw))
}

func TestParseRiskTolerance(t *testing.T) {
	t.Run("缺失字段取零值", func(t *testing.T) {
		risk, err := ParseRisk([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, 0, risk.Risk)
		assert.False(t, risk.Response)
		assert.Empty(t, risk.Topics)
	})

	t.Run("未知主题ID静默跳过", func(t *testing.T) {
		risk, err := ParseRisk([]byte(`{"risk":1,"response":false,"topics":{"12":9,"99":4,"abc":2,"1":6}}`))
		require.NoError(t, err)
		assert.Equal(t, map[Topic]int{TopicBullying: 6}, risk.Topics)
	})

	t.Run("非JSON报错", func(t *testing.T) {
		_, err := ParseRisk([]byte(`not json`))
		assert.Error(t, err)
	})
}

func TestFallbackRisk(t *testing.T) {
	denied := FallbackRisk(false)
	assert.False(t, denied.Response)
	assert.Equal(t, 0, denied.Risk)
	assert.JSONEq(t, `{"risk":0,"response":false,"topics":{}}`, string(denied.Raw))

	passed := FallbackRisk(true)
	assert.True(t, passed.Response)
	assert.JSONEq(t, `{"risk":0,"response":true,"topics":{}}`, string(passed.Raw))
}

func TestOverAnyMaxRisk(t *testing.T) {
	thresholds := ThresholdConfig{TopicFighting: 5, TopicHate: 3}

	t.Run("严格大于才触发", func(t *testing.T) {
		equal := Risk{Topics: map[Topic]int{TopicFighting: 5}}
		assert.False(t, equal.OverAnyMaxRisk(thresholds))

		over := Risk{Topics: map[Topic]int{TopicFighting: 6}}
		assert.True(t, over.OverAnyMaxRisk(thresholds))
	})

	t.Run("未配置阈值的主题跳过", func(t *testing.T) {
		r := Risk{Topics: map[Topic]int{TopicVulgar: 8}}
		assert.False(t, r.OverAnyMaxRisk(thresholds))
	})

	t.Run("与Response无关", func(t *testing.T) {
		r := Risk{Response: true, Topics: map[Topic]int{TopicHate: 4}}
		assert.True(t, r.OverAnyMaxRisk(thresholds))
	})
}

func TestTopicString(t *testing.T) {
	r := Risk{Topics: map[Topic]int{TopicHate: 3, TopicFighting: 7, TopicBullying: 1}}
	// 枚举序输出，每段带前导空格。
	assert.Equal(t, " bullying: 1 fighting: 7 hate: 3", r.TopicString())

	empty := Risk{Topics: map[Topic]int{}}
	assert.Equal(t, "", empty.TopicString())
}

func TestNewThresholdConfig(t *testing.T) {
	tc := NewThresholdConfig(map[string]int64{
		"fighting": 5,
		"unknown":  3,
	}, nil)

	level, ok := tc.DenyLevel(TopicFighting)
	assert.True(t, ok)
	assert.Equal(t, int64(5), level)

	_, ok = tc.DenyLevel(TopicHate)
	assert.False(t, ok)
	assert.Len(t, tc, 1)
}
