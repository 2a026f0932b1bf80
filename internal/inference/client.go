package inference

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

var (
	ErrTimeout         = errors.New("inference timeout")
	ErrUnavailable     = errors.New("inference unavailable")
	ErrMalformedOutput = errors.New("inference returned malformed output")
)

// Client is the boundary to the local text-generation runtime. A zero
// timeout means the caller's context alone bounds the call.
type Client interface {
	Infer(ctx context.Context, spec models.PromptSpec, timeout time.Duration) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, spec models.PromptSpec, timeout time.Duration) (string, error)

func (f ClientFunc) Infer(ctx context.Context, spec models.PromptSpec, timeout time.Duration) (string, error) {
	return f(ctx, spec, timeout)
}

// Transient reports whether err is worth another attempt.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
