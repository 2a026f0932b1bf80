package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

// MemoryStorage keeps everything in process. Values are cloned on the way
// in and out so callers never share state with the store.
type MemoryStorage struct {
	mu         sync.RWMutex
	posts      map[string]*models.GeneratedPost
	engagement []models.EngagementRecord
	calendar   *models.Calendar
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		posts: make(map[string]*models.GeneratedPost),
	}
}

func (s *MemoryStorage) Save(ctx context.Context, p *models.GeneratedPost) error {
	if err := validatePost(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (*models.GeneratedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, exists := s.posts[id]; exists {
		return p.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.posts[id]
	if !exists {
		return ErrNotFound
	}
	if !p.Status.CanTransition(status) {
		return invalidTransition(id, p.Status, status)
	}
	p.Status = status
	if status == models.StatusPosted {
		t := at
		p.PostedDate = &t
	}
	return nil
}

func (s *MemoryStorage) QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.GeneratedPost
	for _, p := range s.posts {
		if !p.ScheduledDate.Before(from) && p.ScheduledDate.Before(to) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStorage) List(ctx context.Context, limit int) ([]*models.GeneratedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.GeneratedPost, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[id]; !exists {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *MemoryStorage) AppendEngagement(ctx context.Context, rec models.EngagementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.posts[rec.PostID]; exists {
		if rec.PostType == "" {
			rec.PostType = p.PostType
		}
		score := rec.Score()
		p.EngagementActual = &score
	}
	s.engagement = append(s.engagement, rec)
	return nil
}

func (s *MemoryStorage) Engagement(ctx context.Context, postType models.PostType) ([]models.EngagementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EngagementRecord
	for _, r := range s.engagement {
		if r.PostType == postType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStorage) LoadCalendar(ctx context.Context) (*models.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.calendar == nil {
		return nil, ErrNotFound
	}
	cal := s.calendar.Clone()
	return &cal, nil
}

func (s *MemoryStorage) SaveCalendar(ctx context.Context, cal models.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cal.Clone()
	s.calendar = &c
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
