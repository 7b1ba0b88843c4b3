package sift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	thresholds := ThresholdConfig{TopicFighting: 5}

	t.Run("response为true直接放行", func(t *testing.T) {
		// 即使有主题超阈值，response=true 也短路所有主题检查。
		r := Risk{Response: true, Topics: map[Topic]int{TopicFighting: 9}}
		eval := Evaluate(r, thresholds)
		assert.Equal(t, DecisionPass, eval.Decision)
		assert.Empty(t, eval.TopicString)
	})

	t.Run("超阈值自动拦截", func(t *testing.T) {
		r, err := ParseRisk([]byte(`{"risk":5,"response":false,"topics":{"2":7}}`))
		require.NoError(t, err)

		eval := Evaluate(r, thresholds)
		assert.Equal(t, DecisionAutoDeny, eval.Decision)
		assert.Contains(t, eval.TopicString, "fighting: 7")
	})

	t.Run("未通过且未超阈值交人工复审", func(t *testing.T) {
		r := Risk{Response: false, Topics: map[Topic]int{TopicFighting: 5, TopicHate: 2}}
		eval := Evaluate(r, thresholds)
		assert.Equal(t, DecisionNeedsReview, eval.Decision)
		assert.Equal(t, " fighting: 5 hate: 2", eval.TopicString)
	})

	t.Run("空主题表交人工复审", func(t *testing.T) {
		eval := Evaluate(FallbackRisk(false), thresholds)
		assert.Equal(t, DecisionNeedsReview, eval.Decision)
	})
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "pass", DecisionPass.String())
	assert.Equal(t, "auto_deny", DecisionAutoDeny.String())
	assert.Equal(t, "needs_review", DecisionNeedsReview.String())
}
