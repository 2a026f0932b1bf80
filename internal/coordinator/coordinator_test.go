package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/persona-forge/internal/content"
	"github.com/xaenox/persona-forge/internal/image"
	"github.com/xaenox/persona-forge/internal/inference"
	"github.com/xaenox/persona-forge/internal/metrics"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/prompt"
	"github.com/xaenox/persona-forge/internal/storage"
	"go.uber.org/zap"
)

const postJSON = `{"post_text": "Ninety days, three services, one lesson: ship small. #Go", "hashtags": ["#Go", "#Shipping"], "call_to_action": "What did you ship?"}`

// fakeRuntime answers content and visual prompts separately and counts calls.
type fakeRuntime struct {
	content func(ctx context.Context, n int) (string, error)
	visual  func(ctx context.Context, n int) (string, error)

	contentCalls atomic.Int32
	visualCalls  atomic.Int32
}

func (f *fakeRuntime) Infer(ctx context.Context, spec models.PromptSpec, timeout time.Duration) (string, error) {
	if strings.HasPrefix(spec.Template, "visual:") {
		n := int(f.visualCalls.Add(1))
		if f.visual == nil {
			return `{"title": "Shipped", "points": ["small"]}`, nil
		}
		return f.visual(ctx, n)
	}
	n := int(f.contentCalls.Add(1))
	if f.content == nil {
		return postJSON, nil
	}
	return f.content(ctx, n)
}

func (f *fakeRuntime) calls() int32 {
	return f.contentCalls.Load() + f.visualCalls.Load()
}

func testProfile() models.UserProfile {
	return models.UserProfile{Name: "Ada", Industry: "Technology", Skills: []string{"Go"}}
}

func newTestCoordinator(rt inference.Client, store Store, opts Options) *Coordinator {
	logger := zap.NewNop()
	builder := prompt.NewBuilder(prompt.Options{MaxLength: 3000, MaxTokens: 512}, logger)
	drafter := content.NewAgent(rt, nil, content.Options{MaxLength: 3000}, logger)
	composer := image.NewAgent(rt, image.Options{}, logger)
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	return New(builder, drafter, composer, store, opts, logger)
}

func request(pt models.PostType) models.PostRequest {
	return models.PostRequest{
		PostType:   pt,
		TargetDate: time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC),
		Profile:    testProfile(),
	}
}

func TestGenerateHappyPath(t *testing.T) {
	rt := &fakeRuntime{}
	store := storage.NewMemoryStorage()
	c := newTestCoordinator(rt, store, Options{})

	res, err := c.Generate(context.Background(), request(models.PostTypeMain))
	require.NoError(t, err)

	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, []State{StatePending, StateBuilding, StateDrafting, StateImaging, StateComplete}, res.Trace)
	assert.Equal(t, map[Stage]int{StagePrompt: 1, StageContent: 1, StageImage: 1}, res.Attempts)

	post := res.Post
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.False(t, post.ImageIncomplete)
	require.NotNil(t, post.Image)
	assert.Equal(t, models.LayoutChart, post.Image.Layout)
	assert.Equal(t, models.StyleProfessional, post.Image.Style)
	assert.Equal(t, content.BaselineEngagement, post.PredictedEngagement)
	assert.True(t, post.ScheduledDate.Equal(request(models.PostTypeMain).TargetDate))

	saved, err := store.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.BodyText, saved.BodyText)
}

func TestGenerateAlwaysTimeoutExhaustsRetries(t *testing.T) {
	rt := &fakeRuntime{content: func(ctx context.Context, n int) (string, error) {
		return "", inference.ErrTimeout
	}}
	store := storage.NewMemoryStorage()
	c := newTestCoordinator(rt, store, Options{MaxRetries: 2})

	_, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, inference.ErrTimeout)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageContent, se.Stage)
	assert.Equal(t, 3, se.Attempts)
	assert.EqualValues(t, 3, rt.contentCalls.Load())
	assert.Zero(t, rt.visualCalls.Load())

	posts, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestGenerateRetriesTransientThenSucceeds(t *testing.T) {
	rt := &fakeRuntime{content: func(ctx context.Context, n int) (string, error) {
		if n == 1 {
			return "", inference.ErrUnavailable
		}
		return postJSON, nil
	}}
	before := testutil.ToFloat64(metrics.StageRetries.WithLabelValues("content"))
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{})

	res, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts[StageContent])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StageRetries.WithLabelValues("content")))
}

func TestGenerateDoesNotRetryMalformedOutput(t *testing.T) {
	rt := &fakeRuntime{content: func(ctx context.Context, n int) (string, error) {
		return "", inference.ErrMalformedOutput
	}}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{MaxRetries: 4})

	_, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.EqualValues(t, 1, rt.contentCalls.Load())
}

func TestGenerateInvalidStyleKeepsText(t *testing.T) {
	rt := &fakeRuntime{}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{})
	req := request(models.PostTypeCapstone)
	req.Style = models.ImageStyle("vaporwave")

	res, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.True(t, res.Post.ImageIncomplete)
	assert.Nil(t, res.Post.Image)
	assert.NotEmpty(t, res.Post.BodyText)
	assert.Equal(t, 1, res.Attempts[StageImage])
	assert.Zero(t, rt.visualCalls.Load())
}

func TestGenerateImageTransientExhaustedKeepsText(t *testing.T) {
	rt := &fakeRuntime{visual: func(ctx context.Context, n int) (string, error) {
		return "", inference.ErrUnavailable
	}}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{MaxRetries: 1})

	res, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.NoError(t, err)
	assert.True(t, res.Post.ImageIncomplete)
	assert.Equal(t, 2, res.Attempts[StageImage])
}

func TestGenerateMissingIndustryMakesNoInferenceCall(t *testing.T) {
	rt := &fakeRuntime{}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{})
	req := request(models.PostTypeMini)
	req.Profile.Industry = ""

	_, err := c.Generate(context.Background(), req)
	require.ErrorIs(t, err, prompt.ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
	assert.Zero(t, rt.calls())
}

func TestGeneratePerStageTimeout(t *testing.T) {
	rt := &fakeRuntime{content: func(ctx context.Context, n int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{
		MaxRetries:      1,
		PerStageTimeout: 10 * time.Millisecond,
	})

	_, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, inference.ErrTimeout)
	assert.EqualValues(t, 2, rt.contentCalls.Load())
}

type failingStore struct {
	*storage.MemoryStorage
}

func (f failingStore) Save(ctx context.Context, p *models.GeneratedPost) error {
	return storage.ErrWriteFailed
}

func TestGenerateStoreFailurePropagatesUnchanged(t *testing.T) {
	c := newTestCoordinator(&fakeRuntime{}, failingStore{storage.NewMemoryStorage()}, Options{})

	_, err := c.Generate(context.Background(), request(models.PostTypeMini))
	require.ErrorIs(t, err, storage.ErrWriteFailed)
	var se *StageError
	assert.False(t, errors.As(err, &se))
}

func TestGenerateRejectsReusedRequest(t *testing.T) {
	c := newTestCoordinator(&fakeRuntime{}, storage.NewMemoryStorage(), Options{})
	req := request(models.PostTypeMini)
	req.ID = "req-1"

	_, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrRequestConsumed)
}

func TestGenerateBatchRespectsWorkerLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	var mu sync.Mutex
	rt := &fakeRuntime{content: func(ctx context.Context, n int) (string, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		mu.Lock()
		if cur > peak.Load() {
			peak.Store(cur)
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return postJSON, nil
	}}
	c := newTestCoordinator(rt, storage.NewMemoryStorage(), Options{WorkerLimit: 2})

	reqs := []models.PostRequest{
		request(models.PostTypeMini), request(models.PostTypeMain), request(models.PostTypeCapstone),
		request(models.PostTypeInsight), request(models.PostTypeGeneral),
	}
	reqs[2].Profile.Industry = ""

	outcomes := c.GenerateBatch(context.Background(), reqs)
	require.Len(t, outcomes, 5)
	for i, o := range outcomes {
		assert.Equal(t, reqs[i].PostType, o.Request.PostType)
		if i == 2 {
			assert.ErrorIs(t, o.Err, prompt.ErrInvalidRequest)
			continue
		}
		require.NoError(t, o.Err)
		assert.Equal(t, reqs[i].PostType, o.Result.Post.PostType)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestStageErrorMatching(t *testing.T) {
	content := &StageError{Stage: StageContent, Err: inference.ErrTimeout}
	assert.ErrorIs(t, content, ErrGenerationFailed)
	assert.ErrorIs(t, content, inference.ErrTimeout)

	build := &StageError{Stage: StagePrompt, Err: prompt.ErrInvalidRequest}
	assert.NotErrorIs(t, build, ErrGenerationFailed)
	assert.Contains(t, build.Error(), "prompt stage")
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StatePending.canMove(StateBuilding))
	assert.True(t, StateImaging.canMove(StateComplete))
	assert.False(t, StatePending.canMove(StateComplete))
	assert.False(t, StateComplete.canMove(StateFailed))
	assert.True(t, StateFailed.Terminal())
}

func TestRunRejectsIllegalMove(t *testing.T) {
	r := &run{state: StatePending, trace: []State{StatePending}}
	require.ErrorIs(t, r.move(StateComplete), ErrIllegalTransition)
	assert.Equal(t, StatePending, r.state)

	require.NoError(t, r.move(StateBuilding))
	r.abort()
	assert.Equal(t, StateFailed, r.state)

	r.abort()
	require.ErrorIs(t, r.move(StateBuilding), ErrIllegalTransition)
	assert.Equal(t, []State{StatePending, StateBuilding, StateFailed}, r.trace)
}
