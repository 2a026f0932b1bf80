package models

import "time"

// EngagementRecord is append-only. PostID is a lookup key, not ownership:
// records outlive the post they describe, so the post type is copied in.
type EngagementRecord struct {
	PostID     string    `json:"post_id"`
	PostType   PostType  `json:"post_type"`
	Likes      int       `json:"likes"`
	Comments   int       `json:"comments"`
	Shares     int       `json:"shares"`
	Views      int       `json:"views"`
	ObservedAt time.Time `json:"observed_at"`
}

// Score weights conversation and reach over passive likes.
func (r EngagementRecord) Score() float64 {
	return float64(r.Likes + 2*r.Comments + 3*r.Shares)
}
