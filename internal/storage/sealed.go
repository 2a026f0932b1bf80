package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/privacy"
)

// SealedStore seals post bodies on the way into the wrapped Storage and
// opens them on the way out. Everything else passes through.
type SealedStore struct {
	Storage
	sealer privacy.Sealer
}

func NewSealedStore(inner Storage, sealer privacy.Sealer) *SealedStore {
	return &SealedStore{Storage: inner, sealer: sealer}
}

func (s *SealedStore) Save(ctx context.Context, p *models.GeneratedPost) error {
	if err := validatePost(p); err != nil {
		return err
	}
	sealed := p.Clone()
	body, err := s.sealer.Seal(p.BodyText)
	if err != nil {
		return writeFailed("seal", err)
	}
	sealed.BodyText = body
	return s.Storage.Save(ctx, sealed)
}

func (s *SealedStore) Get(ctx context.Context, id string) (*models.GeneratedPost, error) {
	p, err := s.Storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SealedStore) QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error) {
	posts, err := s.Storage.QueryDue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.openAll(posts)
}

func (s *SealedStore) List(ctx context.Context, limit int) ([]*models.GeneratedPost, error) {
	posts, err := s.Storage.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.openAll(posts)
}

func (s *SealedStore) open(p *models.GeneratedPost) error {
	body, err := s.sealer.Open(p.BodyText)
	if err != nil {
		return fmt.Errorf("open post %s: %w", p.ID, err)
	}
	p.BodyText = body
	return nil
}

func (s *SealedStore) openAll(posts []*models.GeneratedPost) ([]*models.GeneratedPost, error) {
	for _, p := range posts {
		if err := s.open(p); err != nil {
			return nil, err
		}
	}
	return posts, nil
}
