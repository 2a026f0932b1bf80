package coordinator

import (
	"errors"
	"fmt"

	"github.com/xaenox/persona-forge/internal/models"
)

var (
	// ErrGenerationFailed means the request produced no post.
	ErrGenerationFailed  = errors.New("generation failed")
	ErrRequestConsumed   = errors.New("request already consumed")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// StageError reports which stage gave up, after how many attempts.
type StageError struct {
	PostType models.PostType
	Stage    Stage
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s post after %d attempt(s): %v", e.Stage, e.PostType, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches ErrGenerationFailed when the content stage gave up: without
// text there is nothing to keep.
func (e *StageError) Is(target error) bool {
	return target == ErrGenerationFailed && e.Stage == StageContent
}
