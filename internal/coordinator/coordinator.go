package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/xaenox/persona-forge/internal/content"
	"github.com/xaenox/persona-forge/internal/inference"
	"github.com/xaenox/persona-forge/internal/metrics"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/prompt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const historyWindow = 90 * 24 * time.Hour

type PromptBuilder interface {
	BuildRequest(req models.PostRequest, digest models.HistoryDigest) (models.PromptSpec, error)
	BuildVisual(spec models.PromptSpec, body string) models.PromptSpec
}

type Drafter interface {
	Draft(ctx context.Context, spec models.PromptSpec) (content.Draft, error)
}

type Composer interface {
	Compose(ctx context.Context, spec models.PromptSpec, style models.ImageStyle) (*models.ImageDescriptor, error)
}

// Store is the slice of the post store the pipeline touches.
type Store interface {
	Save(ctx context.Context, p *models.GeneratedPost) error
	QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error)
}

type Options struct {
	// PerStageTimeout bounds each attempt; zero leaves every attempt on the
	// shared PipelineTimeout budget.
	PerStageTimeout time.Duration
	PipelineTimeout time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	WorkerLimit     int
	DefaultStyle    models.ImageStyle
}

type Result struct {
	Post     *models.GeneratedPost
	State    State
	Trace    []State
	Attempts map[Stage]int
}

type Outcome struct {
	Request models.PostRequest
	Result  *Result
	Err     error
}

type Coordinator struct {
	builder  PromptBuilder
	drafter  Drafter
	composer Composer
	store    Store
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	consumed map[string]struct{}
}

func New(builder PromptBuilder, drafter Drafter, composer Composer, store Store, opts Options, logger *zap.Logger) *Coordinator {
	if opts.WorkerLimit <= 0 {
		opts.WorkerLimit = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.DefaultStyle == "" {
		opts.DefaultStyle = models.StyleProfessional
	}
	return &Coordinator{
		builder:  builder,
		drafter:  drafter,
		composer: composer,
		store:    store,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		consumed: make(map[string]struct{}),
	}
}

// run tracks one request through the state machine.
type run struct {
	state    State
	trace    []State
	attempts map[Stage]int
}

func (r *run) move(to State) error {
	if !r.state.canMove(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.state, to)
	}
	r.state = to
	r.trace = append(r.trace, to)
	return nil
}

// abort fails a run that has not finished yet.
func (r *run) abort() {
	if r.state.Terminal() {
		return
	}
	r.state = StateFailed
	r.trace = append(r.trace, StateFailed)
}

// Generate runs prompt, content and image for one request and persists the
// result as a Draft post. A failed image stage keeps the text and flags the
// post ImageIncomplete. A failed content stage returns a StageError that
// matches ErrGenerationFailed and saves nothing.
func (c *Coordinator) Generate(ctx context.Context, req models.PostRequest) (*Result, error) {
	if err := c.consume(&req); err != nil {
		return nil, err
	}
	if req.Style == "" {
		req.Style = c.opts.DefaultStyle
	}
	req.Profile = req.Profile.Snapshot()

	start := c.now()
	r := &run{state: StatePending, trace: []State{StatePending}, attempts: make(map[Stage]int)}
	log := c.logger.With(zap.String("request_id", req.ID), zap.String("post_type", string(req.PostType)))

	pctx := ctx
	if c.opts.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, c.opts.PipelineTimeout)
		defer cancel()
	}

	fail := func(stage Stage, err error) (*Result, error) {
		r.abort()
		metrics.ObservePipeline("failed", start)
		log.Error("Failed to generate post",
			zap.String("stage", string(stage)),
			zap.Int("attempts", r.attempts[stage]),
			zap.Error(err))
		return nil, &StageError{PostType: req.PostType, Stage: stage, Attempts: r.attempts[stage], Err: err}
	}

	if err := r.move(StateBuilding); err != nil {
		return nil, err
	}
	target := req.TargetDate
	if target.IsZero() {
		target = start
	}
	history, err := c.store.QueryDue(pctx, target.Add(-historyWindow), target)
	if err != nil {
		r.abort()
		metrics.ObservePipeline("failed", start)
		return nil, fmt.Errorf("load history: %w", err)
	}
	in := stageInput{req: req, digest: prompt.DigestHistory(history)}

	out, err := c.attempt(pctx, r, StagePrompt, in, log)
	if err != nil {
		return fail(StagePrompt, err)
	}
	in.spec = out.spec

	if err := r.move(StateDrafting); err != nil {
		return nil, err
	}
	out, err = c.attempt(pctx, r, StageContent, in, log)
	if err != nil {
		return fail(StageContent, err)
	}
	in.draft = out.draft

	if err := r.move(StateImaging); err != nil {
		return nil, err
	}
	var image *models.ImageDescriptor
	out, err = c.attempt(pctx, r, StageImage, in, log)
	if err != nil {
		log.Warn("Image stage failed, keeping text",
			zap.Int("attempts", r.attempts[StageImage]),
			zap.Error(err))
	} else {
		image = out.image
	}

	post := &models.GeneratedPost{
		ID:                  uuid.New().String(),
		RequestID:           req.ID,
		PostType:            req.PostType,
		BodyText:            in.draft.Body,
		Hashtags:            in.draft.Hashtags,
		PredictedEngagement: in.draft.PredictedEngagement,
		Image:               image,
		ImageIncomplete:     image == nil,
		Status:              models.StatusDraft,
		ScheduledDate:       target,
		CreatedAt:           c.now(),
	}

	// Persist on the caller's context: a pipeline that used up its budget
	// still gets to save what it produced.
	if err := c.store.Save(ctx, post); err != nil {
		r.abort()
		metrics.ObservePipeline("failed", start)
		log.Error("Failed to save post", zap.String("post_id", post.ID), zap.Error(err))
		return nil, err
	}

	if err := r.move(StateComplete); err != nil {
		return nil, err
	}
	outcome := "complete"
	if post.ImageIncomplete {
		outcome = "partial"
	}
	metrics.ObservePipeline(outcome, start)
	log.Info("Generated post",
		zap.String("post_id", post.ID),
		zap.Bool("image_incomplete", post.ImageIncomplete),
		zap.Duration("elapsed", c.now().Sub(start)))

	return &Result{Post: post, State: r.state, Trace: r.trace, Attempts: r.attempts}, nil
}

// attempt runs one stage under the retry policy. Only transient inference
// errors are retried, up to MaxRetries times.
func (c *Coordinator) attempt(ctx context.Context, r *run, stage Stage, in stageInput, log *zap.Logger) (stageOutput, error) {
	var lastErr error
	out, err := failsafe.With(c.retryPolicy()).WithContext(ctx).Get(func() (stageOutput, error) {
		r.attempts[stage]++
		metrics.IncStageAttempt(string(stage))
		if r.attempts[stage] > 1 {
			metrics.IncStageRetry(string(stage))
			log.Info("Retrying stage",
				zap.String("stage", string(stage)),
				zap.Int("attempt", r.attempts[stage]),
				zap.Error(lastErr))
		}

		actx := ctx
		if c.opts.PerStageTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, c.opts.PerStageTimeout)
			defer cancel()
		}
		o, err := c.runStage(actx, stage, in)
		if err != nil && !inference.Transient(err) && errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", inference.ErrTimeout, err)
		}
		lastErr = err
		return o, err
	})
	if err != nil && lastErr != nil {
		return out, lastErr
	}
	return out, err
}

func (c *Coordinator) retryPolicy() retrypolicy.RetryPolicy[stageOutput] {
	builder := retrypolicy.NewBuilder[stageOutput]().
		WithMaxRetries(c.opts.MaxRetries).
		HandleIf(func(_ stageOutput, err error) bool {
			return inference.Transient(err)
		}).
		ReturnLastFailure()
	if c.opts.RetryBackoff > 0 {
		builder = builder.WithBackoff(c.opts.RetryBackoff, 8*c.opts.RetryBackoff)
	}
	return builder.Build()
}

// consume assigns an id to fresh requests and rejects reused ones.
func (c *Coordinator) consume(req *models.PostRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if _, used := c.consumed[req.ID]; used {
		return fmt.Errorf("%w: %s", ErrRequestConsumed, req.ID)
	}
	c.consumed[req.ID] = struct{}{}
	return nil
}

// GenerateBatch runs independent requests concurrently, at most WorkerLimit
// at a time. Outcomes come back in request order.
func (c *Coordinator) GenerateBatch(ctx context.Context, reqs []models.PostRequest) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(c.opts.WorkerLimit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := c.Generate(ctx, req)
			outcomes[i] = Outcome{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
