package models

import (
	"fmt"
	"strings"
	"time"
)

// PostType selects the prompt template and, for the three cadence tiers,
// the calendar slot a post fills.
type PostType string

const (
	PostTypeMini        PostType = "mini"
	PostTypeMain        PostType = "main"
	PostTypeCapstone    PostType = "capstone"
	PostTypeInsight     PostType = "insight"
	PostTypeAchievement PostType = "achievement"
	PostTypeGeneral     PostType = "general"
)

var postTypes = []PostType{
	PostTypeMini, PostTypeMain, PostTypeCapstone,
	PostTypeInsight, PostTypeAchievement, PostTypeGeneral,
}

// PostTypes lists every recognized post type in a stable order.
func PostTypes() []PostType {
	out := make([]PostType, len(postTypes))
	copy(out, postTypes)
	return out
}

func (t PostType) Valid() bool {
	for _, known := range postTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsTier reports whether the type is one of the cadence tiers.
func (t PostType) IsTier() bool {
	return t == PostTypeMini || t == PostTypeMain || t == PostTypeCapstone
}

// Rank orders tiers for collision handling: higher wins.
func (t PostType) Rank() int {
	switch t {
	case PostTypeCapstone:
		return 3
	case PostTypeMain:
		return 2
	case PostTypeMini:
		return 1
	default:
		return 0
	}
}

func ParsePostType(s string) (PostType, error) {
	t := PostType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "mini_project":
		t = PostTypeMini
	case "main_project":
		t = PostTypeMain
	}
	if !t.Valid() {
		return "", fmt.Errorf("unknown post type %q", s)
	}
	return t, nil
}

// PostStatus is the lifecycle of a GeneratedPost.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPosted    PostStatus = "posted"
	StatusFailed    PostStatus = "failed"
)

func (s PostStatus) Terminal() bool {
	return s == StatusPosted || s == StatusFailed
}

// CanTransition allows Draft->Scheduled->Posted and any non-terminal status
// to Failed. Re-applying the current status is a no-op and allowed.
func (s PostStatus) CanTransition(to PostStatus) bool {
	if s == to {
		return true
	}
	switch to {
	case StatusScheduled:
		return s == StatusDraft
	case StatusPosted:
		return s == StatusScheduled
	case StatusFailed:
		return !s.Terminal()
	default:
		return false
	}
}

func ParsePostStatus(s string) (PostStatus, error) {
	st := PostStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusDraft, StatusScheduled, StatusPosted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown post status %q", s)
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
