package review

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// fakeQueueStore 内存队列后端。
type fakeQueueStore struct {
	entries []*models.ReviewQueueEntry
	flags   []*models.PostAction
	acts    []string
	resets  []uint64
	nextID  uint64
}

func (s *fakeQueueStore) FindPendingEntry(_ context.Context, entryType string, postID uint64, createdByID int64) (*models.ReviewQueueEntry, error) {
	for _, e := range s.entries {
		if e.Type == entryType && e.TargetID == postID && e.CreatedByID == createdByID && e.Status == models.EntryStatusPending {
			return e, nil
		}
	}
	return nil, nil
}

func (s *fakeQueueStore) CreateEntry(_ context.Context, entry *models.ReviewQueueEntry) error {
	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeQueueStore) BumpEntry(_ context.Context, entryID uint64, score float64, reason string) error {
	for _, e := range s.entries {
		if e.ID == entryID {
			e.Score += score
			e.Reason = reason
		}
	}
	return nil
}

func (s *fakeQueueStore) FindFlag(_ context.Context, postID uint64, userID int64) (*models.PostAction, error) {
	for _, f := range s.flags {
		if f.PostID == postID && f.UserID == userID && f.DeletedAt == nil {
			return f, nil
		}
	}
	return nil, nil
}

func (s *fakeQueueStore) CreateFlag(_ context.Context, flag *models.PostAction) error {
	s.nextID++
	flag.ID = s.nextID
	s.flags = append(s.flags, flag)
	return nil
}

func (s *fakeQueueStore) ResetFlag(_ context.Context, flagID uint64) error {
	s.resets = append(s.resets, flagID)
	return nil
}

func (s *fakeQueueStore) ActOnPost(_ context.Context, postID uint64, userID int64, message string) error {
	s.acts = append(s.acts, message)
	s.flags = append(s.flags, &models.PostAction{PostID: postID, UserID: userID, ActionType: "inappropriate", Message: message})
	return nil
}

func routerConfig(standard, reviewable bool) config.SiftConfig {
	return config.SiftConfig{
		UseStandardQueue:     standard,
		ReviewableAPIEnabled: reviewable,
		SystemUserID:         -1,
	}
}

func testEval() (sift.Evaluation, sift.Risk) {
	risk := sift.Risk{
		Response: false,
		Topics:   map[sift.Topic]int{sift.TopicFighting: 7},
		Raw:      json.RawMessage(`{"risk":5,"response":false,"topics":{"2":7}}`),
	}
	return sift.Evaluate(risk, sift.ThresholdConfig{}), risk
}

func TestSelect(t *testing.T) {
	store := &fakeQueueStore{}
	logger := zap.NewNop()

	assert.Equal(t, "standard_reviewable", Select(routerConfig(true, true), store, logger).Name())
	assert.Equal(t, "standard_legacy", Select(routerConfig(true, false), store, logger).Name())
	assert.Equal(t, "custom_reviewable", Select(routerConfig(false, true), store, logger).Name())
	assert.Equal(t, "custom_legacy", Select(routerConfig(false, false), store, logger).Name())
}

func TestCustomRouterCreatesEntryWithSnapshot(t *testing.T) {
	store := &fakeQueueStore{}
	router := Select(routerConfig(false, true), store, zap.NewNop())
	post := &models.Post{ID: 5, TopicID: 9, Cooked: "<p>渲染内容</p>"}
	eval, risk := testEval()

	entry, err := router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)

	assert.Equal(t, models.EntryTypeSiftPost, entry.Type)
	assert.Equal(t, uint64(5), entry.TargetID)
	assert.Equal(t, int64(-1), entry.CreatedByID)
	assert.Equal(t, models.EntryStatusPending, entry.Status)
	assert.Contains(t, entry.Reason, "fighting: 7")
	assert.Equal(t, float64(1), entry.Score)

	var payload models.ReviewEntryPayload
	require.NoError(t, json.Unmarshal([]byte(entry.Payload), &payload))
	assert.Equal(t, "<p>渲染内容</p>", payload.PostCooked)
	assert.JSONEq(t, string(risk.Raw), string(payload.Sift))

	// 专用队列不打举报。
	assert.Empty(t, store.flags)
}

func TestRouteIdempotent(t *testing.T) {
	store := &fakeQueueStore{}
	router := Select(routerConfig(false, true), store, zap.NewNop())
	post := &models.Post{ID: 5, TopicID: 9}
	eval, risk := testEval()

	first, err := router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)
	second, err := router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)

	// 复用同一条打开条目，只累加分数。
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.entries, 1)
	assert.Equal(t, float64(2), store.entries[0].Score)
}

func TestStandardReviewableRouterFlags(t *testing.T) {
	store := &fakeQueueStore{}
	router := Select(routerConfig(true, true), store, zap.NewNop())
	post := &models.Post{ID: 5, TopicID: 9}
	eval, risk := testEval()

	entry, err := router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)

	assert.Equal(t, models.EntryTypeFlaggedPost, entry.Type)
	require.Len(t, store.flags, 1)
	assert.Equal(t, int64(-1), store.flags[0].UserID)
	assert.Equal(t, "inappropriate", store.flags[0].ActionType)

	// 再次路由: 已有举报被复位而不是重复创建。
	_, err = router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)
	assert.Len(t, store.flags, 1)
	assert.Len(t, store.resets, 1)
}

func TestStandardLegacyRouterActs(t *testing.T) {
	store := &fakeQueueStore{}
	router := Select(routerConfig(true, false), store, zap.NewNop())
	post := &models.Post{ID: 5, TopicID: 9}
	eval, risk := testEval()

	_, err := router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)

	// 旧式 act 原语携带组合消息。
	require.Len(t, store.acts, 1)
	assert.Contains(t, store.acts[0], "fighting: 7")

	// 重复路由不重复 act。
	_, err = router.Route(context.Background(), post, eval, risk)
	require.NoError(t, err)
	assert.Len(t, store.acts, 1)
	assert.Len(t, store.resets, 1)
}

func TestRouterForceReview(t *testing.T) {
	cfg := routerConfig(true, true)
	cfg.ForceReview = true
	store := &fakeQueueStore{}
	router := Select(cfg, store, zap.NewNop())
	eval, risk := testEval()

	entry, err := router.Route(context.Background(), &models.Post{ID: 5}, eval, risk)
	require.NoError(t, err)
	assert.True(t, entry.ForceReview)
}
