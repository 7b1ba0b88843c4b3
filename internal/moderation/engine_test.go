package moderation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/config"
	"github.com/featheredtoast/discourse-sift/internal/constants"
	"github.com/featheredtoast/discourse-sift/internal/models"
	"github.com/featheredtoast/discourse-sift/internal/sift"
)

// --- 测试替身 ---

type fakeStore struct {
	posts    map[uint64]*models.Post
	users    map[int64]*models.User
	fields   map[uint64]map[string]string
	removed  []uint64
	restored []uint64
	hidden   []uint64
	resolved []string // "postID:status"
	counts   map[State]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:  make(map[uint64]*models.Post),
		users:  make(map[int64]*models.User),
		fields: make(map[uint64]map[string]string),
		counts: make(map[State]int64),
	}
}

func (s *fakeStore) FetchPost(_ context.Context, id uint64) (*models.Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("帖子 %d 不存在", id)
	}
	return post, nil
}

func (s *fakeStore) FetchUser(_ context.Context, id int64) (*models.User, error) {
	return s.users[id], nil
}

func (s *fakeStore) SaveCustomField(_ context.Context, postID uint64, name, value string) error {
	if s.fields[postID] == nil {
		s.fields[postID] = make(map[string]string)
	}
	s.fields[postID][name] = value
	return nil
}

func (s *fakeStore) CustomField(_ context.Context, postID uint64, name string) (string, error) {
	return s.fields[postID][name], nil
}

func (s *fakeStore) RemovePost(_ context.Context, postID uint64, _ int64) error {
	s.removed = append(s.removed, postID)
	return nil
}

func (s *fakeStore) RestorePost(_ context.Context, postID uint64, _ int64) error {
	s.restored = append(s.restored, postID)
	return nil
}

func (s *fakeStore) HidePost(_ context.Context, postID uint64, _ string) error {
	s.hidden = append(s.hidden, postID)
	return nil
}

func (s *fakeStore) ResolveReviewEntry(_ context.Context, entryID uint64, status string, _ int64) error {
	s.resolved = append(s.resolved, fmt.Sprintf("entry_%d:%s", entryID, status))
	return nil
}

func (s *fakeStore) ResolvePendingEntries(_ context.Context, postID uint64, status string, _ int64) error {
	s.resolved = append(s.resolved, fmt.Sprintf("post_%d:%s", postID, status))
	return nil
}

func (s *fakeStore) StateCounts(_ context.Context) (map[State]int64, error) {
	return s.counts, nil
}

func (s *fakeStore) CountPostsInState(_ context.Context, state State) (int64, error) {
	return s.counts[state], nil
}

func (s *fakeStore) state(postID uint64) State {
	return ParseState(s.fields[postID][constants.StateCustomField])
}

func (s *fakeStore) setState(postID uint64, state State) {
	if s.fields[postID] == nil {
		s.fields[postID] = make(map[string]string)
	}
	s.fields[postID][constants.StateCustomField] = string(state)
}

type fakeRouter struct {
	calls  int
	err    error
	nextID uint64
}

func (r *fakeRouter) Route(_ context.Context, post *models.Post, _ sift.Evaluation, _ sift.Risk) (*models.ReviewQueueEntry, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	r.nextID++
	return &models.ReviewQueueEntry{ID: r.nextID, TargetID: post.ID, Status: models.EntryStatusPending}, nil
}

func (r *fakeRouter) Name() string { return "fake" }

type fakeBus struct{ events []string }

func (b *fakeBus) Raise(_ context.Context, name string, _ any) error {
	b.events = append(b.events, name)
	return nil
}

type fakeQueue struct{ jobs []models.ReportActionJob }

func (q *fakeQueue) Enqueue(_ context.Context, name string, payload any) error {
	if name == constants.JobReportPostAction {
		q.jobs = append(q.jobs, payload.(models.ReportActionJob))
	}
	return nil
}

type fakeNotifier struct{ messages []string }

func (n *fakeNotifier) NotifyUser(_ context.Context, _ int64, messageType string, _ map[string]string) error {
	n.messages = append(n.messages, messageType)
	return nil
}

type fakeClassifier struct {
	risk  sift.Risk
	calls int
}

func (c *fakeClassifier) SubmitForClassification(_ context.Context, _ *models.Post, _ *models.User) sift.Risk {
	c.calls++
	return c.risk
}

// --- 装配 ---

type engineFixture struct {
	engine     *Engine
	store      *fakeStore
	router     *fakeRouter
	bus        *fakeBus
	queue      *fakeQueue
	notifier   *fakeNotifier
	classifier *fakeClassifier
}

func newFixture(t *testing.T, cfg config.SiftConfig, risk sift.Risk) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:      newFakeStore(),
		router:     &fakeRouter{},
		bus:        &fakeBus{},
		queue:      &fakeQueue{},
		notifier:   &fakeNotifier{},
		classifier: &fakeClassifier{risk: risk},
	}
	thresholds := sift.NewThresholdConfig(cfg.DenyLevels, zap.NewNop())
	f.engine = NewEngine(zap.NewNop(), cfg, thresholds, f.classifier, f.store, f.router, f.bus, f.queue, f.notifier)
	return f
}

func testConfig() config.SiftConfig {
	return config.SiftConfig{
		Enabled:          true,
		APIURL:           "http://sift.local",
		APIKey:           "key",
		EndPoint:         "v1/classify",
		ActionEndPoint:   "v1/action",
		ReportingEnabled: true,
		NotifyUser:       true,
		SystemUserID:     -1,
		DenyLevels:       map[string]int64{"fighting": 5},
	}
}

func seedPost(s *fakeStore, id uint64) *models.Post {
	post := &models.Post{ID: id, TopicID: 100, TopicTitle: "主题", PostNumber: 2, UserID: 7, Raw: "正文"}
	s.posts[id] = post
	s.users[7] = &models.User{ID: 7, Username: "author"}
	return post
}

func mustRisk(t *testing.T, body string) sift.Risk {
	t.Helper()
	risk, err := sift.ParseRisk([]byte(body))
	require.NoError(t, err)
	return risk
}

// --- 分类路径 ---

func TestClassifyPostPass(t *testing.T) {
	f := newFixture(t, testConfig(), mustRisk(t, `{"risk":0,"response":true,"topics":{}}`))
	seedPost(f.store, 1)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))

	assert.Equal(t, StatePassPolicyGuide, f.store.state(1))
	assert.Empty(t, f.store.removed)
	assert.Empty(t, f.store.hidden)
	assert.Zero(t, f.router.calls)
	assert.Empty(t, f.queue.jobs)
}

func TestClassifyPostAutoDeny(t *testing.T) {
	f := newFixture(t, testConfig(), mustRisk(t, `{"risk":5,"response":false,"topics":{"2":7}}`))
	seedPost(f.store, 1)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))

	assert.Equal(t, StateAutoModerated, f.store.state(1))
	assert.Equal(t, []uint64{1}, f.store.removed)
	assert.Equal(t, []uint64{1}, f.store.hidden)
	assert.Equal(t, []string{constants.MessageAutoFiltered}, f.notifier.messages)

	// 专用队列: 条目创建后立即确认违规，留审计记录。
	assert.Equal(t, 1, f.router.calls)
	assert.Contains(t, f.store.resolved, "entry_1:approved")

	assert.Contains(t, f.bus.events, constants.EventAutoModerated)
	// 自动拦截不触发人工裁决，也就没有上报任务。
	assert.Empty(t, f.queue.jobs)
}

func TestClassifyPostAutoDenyStandardQueue(t *testing.T) {
	cfg := testConfig()
	cfg.UseStandardQueue = true
	f := newFixture(t, cfg, mustRisk(t, `{"risk":5,"response":false,"topics":{"2":7}}`))
	seedPost(f.store, 1)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))

	// 标准队列下自动拦截不落审计条目。
	assert.Zero(t, f.router.calls)
	assert.Equal(t, StateAutoModerated, f.store.state(1))
}

func TestClassifyPostNeedsReview(t *testing.T) {
	f := newFixture(t, testConfig(), mustRisk(t, `{"risk":3,"response":false,"topics":{"2":4}}`))
	seedPost(f.store, 1)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))

	assert.Equal(t, StateRequiresModeration, f.store.state(1))
	assert.Equal(t, 1, f.router.calls)
	assert.Equal(t, []uint64{1}, f.store.hidden)
	assert.Empty(t, f.store.removed)
	assert.Contains(t, f.bus.events, constants.EventPostFailedPolicyGuide)
}

func TestClassifyPostStayVisible(t *testing.T) {
	cfg := testConfig()
	cfg.PostStayVisible = true
	f := newFixture(t, cfg, mustRisk(t, `{"risk":3,"response":false,"topics":{}}`))
	seedPost(f.store, 1)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))
	assert.Empty(t, f.store.hidden)
}

func TestClassifyPostRoutingFailureRetries(t *testing.T) {
	f := newFixture(t, testConfig(), mustRisk(t, `{"risk":3,"response":false,"topics":{}}`))
	seedPost(f.store, 1)
	f.router.err = fmt.Errorf("队列后端不可用")

	err := f.engine.ClassifyPost(context.Background(), 1)
	require.Error(t, err)
	// 条目没落地就不落状态，消息重投后整体重跑。
	assert.Equal(t, StateUnclassified, f.store.state(1))
}

func TestShouldClassify(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})

	assert.False(t, f.engine.ShouldClassify(nil))
	assert.False(t, f.engine.ShouldClassify(&models.Post{ID: 1, Raw: "x"}))                           // 无主题
	assert.False(t, f.engine.ShouldClassify(&models.Post{ID: 1, TopicID: 2, Raw: "x", Private: true})) // 私信
	assert.False(t, f.engine.ShouldClassify(&models.Post{ID: 1, TopicID: 2, Raw: "   "}))             // 空白
	assert.True(t, f.engine.ShouldClassify(&models.Post{ID: 1, TopicID: 2, Raw: "x"}))

	// 功能未配置时一律跳过。
	cfg := testConfig()
	cfg.APIKey = ""
	off := newFixture(t, cfg, sift.Risk{})
	assert.False(t, off.engine.ShouldClassify(&models.Post{ID: 1, TopicID: 2, Raw: "x"}))
}

func TestClassifyPostSkipsPrivate(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	post := seedPost(f.store, 1)
	post.Private = true

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))
	assert.Zero(t, f.classifier.calls)
	assert.Equal(t, StateUnclassified, f.store.state(1))
}

// 帖子被编辑后整个流程重跑，先前的版主放行不保留。
func TestReclassificationDiscardsVerdict(t *testing.T) {
	f := newFixture(t, testConfig(), mustRisk(t, `{"risk":5,"response":false,"topics":{"2":7}}`))
	seedPost(f.store, 1)
	f.store.setState(1, StateConfirmedPassed)

	require.NoError(t, f.engine.ClassifyPost(context.Background(), 1))
	assert.Equal(t, StateAutoModerated, f.store.state(1))
}

// --- 裁决路径 ---

func TestConfirmFailed(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)

	require.NoError(t, f.engine.ConfirmFailed(context.Background(), 1, 3))

	assert.Equal(t, StateConfirmedFailed, f.store.state(1))
	assert.Equal(t, []uint64{1}, f.store.removed)
	assert.Contains(t, f.store.resolved, "post_1:approved")
	assert.Equal(t, []string{constants.MessageHasModerated}, f.notifier.messages)

	// 恰好一条上报任务，理由为 agree。
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, constants.ReasonAgree, f.queue.jobs[0].Action)
	assert.Equal(t, int64(3), f.queue.jobs[0].ModeratorID)
}

func TestConfirmFailedAlreadyRemoved(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	post := seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)
	now := post.CreatedAt
	post.DeletedAt = &now

	require.NoError(t, f.engine.ConfirmFailed(context.Background(), 1, 3))
	// 已移除的帖子不重复移除、不重复通知。
	assert.Empty(t, f.store.removed)
	assert.Empty(t, f.notifier.messages)
	assert.Equal(t, StateConfirmedFailed, f.store.state(1))
}

func TestConfirmPassed(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)

	require.NoError(t, f.engine.ConfirmPassed(context.Background(), 1, 3, constants.ReasonFalsePositive, "误判"))

	assert.Equal(t, StateConfirmedPassed, f.store.state(1))
	// 先走违规善后，再恢复内容。
	assert.Equal(t, []uint64{1}, f.store.removed)
	assert.Equal(t, []uint64{1}, f.store.restored)
	assert.Contains(t, f.store.resolved, "post_1:rejected")

	// 只上报一次，且只携带细分原因。
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, constants.ReasonFalsePositive, f.queue.jobs[0].Action)
	assert.Equal(t, "误判", f.queue.jobs[0].ExtraReasonRemarks)
}

func TestConfirmPassedUnknownReason(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)

	err := f.engine.ConfirmPassed(context.Background(), 1, 3, "whatever", "")
	assert.ErrorIs(t, err, ErrUnknownReason)
	assert.Empty(t, f.queue.jobs)
	assert.Equal(t, StateRequiresModeration, f.store.state(1))
}

func TestVerdictRequiresModerationState(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StatePassPolicyGuide)

	assert.ErrorIs(t, f.engine.ConfirmFailed(context.Background(), 1, 3), ErrNotAwaitingVerdict)
	assert.ErrorIs(t, f.engine.ConfirmPassed(context.Background(), 1, 3, constants.ReasonOther, ""), ErrNotAwaitingVerdict)
	assert.ErrorIs(t, f.engine.IgnorePost(context.Background(), 1, 3), ErrNotAwaitingVerdict)
}

func TestIgnorePost(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)

	require.NoError(t, f.engine.IgnorePost(context.Background(), 1, 3))

	assert.Equal(t, StateIgnored, f.store.state(1))
	assert.Contains(t, f.store.resolved, "post_1:ignored")
	// 搁置不表态: 无移除、无恢复、无上报。
	assert.Empty(t, f.store.removed)
	assert.Empty(t, f.store.restored)
	assert.Empty(t, f.queue.jobs)
}

func TestReportSkippedWhenNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.ReportingEnabled = false
	f := newFixture(t, cfg, sift.Risk{})
	seedPost(f.store, 1)
	f.store.setState(1, StateRequiresModeration)

	require.NoError(t, f.engine.ConfirmFailed(context.Background(), 1, 3))
	assert.Empty(t, f.queue.jobs)
	assert.Equal(t, StateConfirmedFailed, f.store.state(1))
}

func TestStats(t *testing.T) {
	f := newFixture(t, testConfig(), sift.Risk{})
	f.store.counts = map[State]int64{
		StatePassPolicyGuide: 4,
		StateIgnored:         2,
	}

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.PassPolicyGuide)
	assert.Equal(t, int64(6), stats.Classified)
}
