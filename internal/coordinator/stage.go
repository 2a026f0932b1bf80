package coordinator

import (
	"context"
	"fmt"

	"github.com/xaenox/persona-forge/internal/content"
	"github.com/xaenox/persona-forge/internal/models"
)

// Stage is the closed set of pipeline steps.
type Stage string

const (
	StagePrompt  Stage = "prompt"
	StageContent Stage = "content"
	StageImage   Stage = "image"
)

// State is the per-request lifecycle.
type State string

const (
	StatePending  State = "pending"
	StateBuilding State = "building"
	StateDrafting State = "drafting"
	StateImaging  State = "imaging"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var nextStates = map[State][]State{
	StatePending:  {StateBuilding, StateFailed},
	StateBuilding: {StateDrafting, StateFailed},
	StateDrafting: {StateImaging, StateFailed},
	StateImaging:  {StateComplete, StateFailed},
}

func (s State) canMove(to State) bool {
	for _, n := range nextStates[s] {
		if n == to {
			return true
		}
	}
	return false
}

// stageInput carries whatever the earlier stages produced.
type stageInput struct {
	req    models.PostRequest
	digest models.HistoryDigest
	spec   models.PromptSpec
	draft  content.Draft
}

// stageOutput is tagged by stage; only the matching field is set.
type stageOutput struct {
	stage Stage
	spec  models.PromptSpec
	draft content.Draft
	image *models.ImageDescriptor
}

func (c *Coordinator) runStage(ctx context.Context, stage Stage, in stageInput) (stageOutput, error) {
	out := stageOutput{stage: stage}
	var err error
	switch stage {
	case StagePrompt:
		out.spec, err = c.builder.BuildRequest(in.req, in.digest)
	case StageContent:
		out.draft, err = c.drafter.Draft(ctx, in.spec)
	case StageImage:
		visual := c.builder.BuildVisual(in.spec, in.draft.Body)
		out.image, err = c.composer.Compose(ctx, visual, in.req.Style)
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}
	return out, err
}
