package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

var (
	ErrWriteFailed       = errors.New("store write failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrLocked            = errors.New("store locked by another process")
)

// PostStore persists generated posts and their engagement. Every method is
// one transaction: a failed write leaves nothing behind.
type PostStore interface {
	// Save inserts or replaces the post with p.ID.
	Save(ctx context.Context, p *models.GeneratedPost) error
	Get(ctx context.Context, id string) (*models.GeneratedPost, error)
	// UpdateStatus applies a lifecycle transition. Moving to Posted records
	// at as the posted date.
	UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error
	// QueryDue returns posts scheduled in [from, to), oldest first.
	QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error)
	// List returns the newest posts first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*models.GeneratedPost, error)
	Delete(ctx context.Context, id string) error

	AppendEngagement(ctx context.Context, rec models.EngagementRecord) error
	Engagement(ctx context.Context, postType models.PostType) ([]models.EngagementRecord, error)
}

// CalendarStore keeps the single scheduler calendar.
type CalendarStore interface {
	// LoadCalendar returns ErrNotFound before the first SaveCalendar.
	LoadCalendar(ctx context.Context) (*models.Calendar, error)
	SaveCalendar(ctx context.Context, cal models.Calendar) error
}

type Storage interface {
	PostStore
	CalendarStore
	Close() error
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrWriteFailed, op, err)
}

func invalidTransition(id string, from, to models.PostStatus) error {
	return fmt.Errorf("%w: post %s %s -> %s", ErrInvalidTransition, id, from, to)
}

func validatePost(p *models.GeneratedPost) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: post without id", ErrWriteFailed)
	}
	return nil
}
