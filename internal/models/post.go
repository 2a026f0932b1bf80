package models

import (
	"fmt"
	"strings"
	"time"
)

// PostRequest asks the coordinator for one post. It is consumed once; a
// retry by the caller is a new request with a new ID.
type PostRequest struct {
	ID           string
	PostType     PostType
	TargetDate   time.Time
	Profile      UserProfile
	Style        ImageStyle
	CustomPrompt string
	TopicHint    string
}

type GeneratedPost struct {
	ID                  string           `json:"id"`
	RequestID           string           `json:"request_id,omitempty"`
	PostType            PostType         `json:"post_type"`
	BodyText            string           `json:"body_text"`
	Hashtags            []string         `json:"hashtags"`
	PredictedEngagement float64          `json:"predicted_engagement"`
	Image               *ImageDescriptor `json:"image,omitempty"`
	ImageIncomplete     bool             `json:"image_incomplete"`
	Status              PostStatus       `json:"status"`
	ScheduledDate       time.Time        `json:"scheduled_date"`
	PostedDate          *time.Time       `json:"posted_date,omitempty"`
	EngagementActual    *float64         `json:"engagement_actual,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Clone returns a copy that shares no slices or pointers with p.
func (p *GeneratedPost) Clone() *GeneratedPost {
	if p == nil {
		return nil
	}
	out := *p
	out.Hashtags = append([]string(nil), p.Hashtags...)
	if p.Image != nil {
		img := p.Image.Clone()
		out.Image = &img
	}
	if p.PostedDate != nil {
		t := *p.PostedDate
		out.PostedDate = &t
	}
	if p.EngagementActual != nil {
		v := *p.EngagementActual
		out.EngagementActual = &v
	}
	return &out
}

// ImageStyle is the closed set of visual styles the renderer understands.
type ImageStyle string

const (
	StyleProfessional ImageStyle = "professional"
	StyleCorporate    ImageStyle = "corporate"
	StyleModern       ImageStyle = "modern"
	StyleMinimal      ImageStyle = "minimal"
	StyleBranded      ImageStyle = "branded"
)

func (s ImageStyle) Valid() bool {
	switch s {
	case StyleProfessional, StyleCorporate, StyleModern, StyleMinimal, StyleBranded:
		return true
	}
	return false
}

func ParseImageStyle(s string) (ImageStyle, error) {
	st := ImageStyle(strings.ToLower(strings.TrimSpace(s)))
	if st == "linkedin" {
		st = StyleBranded
	}
	if !st.Valid() {
		return "", fmt.Errorf("unknown image style %q", s)
	}
	return st, nil
}

// Layout names the renderer template.
type Layout string

const (
	LayoutInfographic Layout = "infographic"
	LayoutChart       Layout = "chart"
	LayoutQuote       Layout = "quote"
	LayoutProcess     Layout = "process"
	LayoutComparison  Layout = "comparison"
	LayoutTimeline    Layout = "timeline"
	LayoutAchievement Layout = "achievement"
)

type TextOverlay struct {
	Role string `json:"role"` // title, point, stat, caption
	Text string `json:"text"`
}

// ImageDescriptor is what the external renderer consumes. No pixels here.
type ImageDescriptor struct {
	Layout   Layout        `json:"layout"`
	Style    ImageStyle    `json:"style"`
	Palette  []string      `json:"palette"`
	Overlays []TextOverlay `json:"overlays"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

func (d ImageDescriptor) Clone() ImageDescriptor {
	out := d
	out.Palette = append([]string(nil), d.Palette...)
	out.Overlays = append([]TextOverlay(nil), d.Overlays...)
	return out
}

// PromptSpec is the structured generation request handed to the inference
// boundary. Building one is deterministic so retries reuse it verbatim.
type PromptSpec struct {
	PostType    PostType
	Template    string
	Tone        string
	Length      string
	Sections    []string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	MaxLength   int
	// SourceText is the drafted body a visual spec was derived from.
	SourceText string
}

// HistoryDigest summarizes prior output for the prompt builder.
type HistoryDigest struct {
	RecentPosts  int
	LengthBucket string
	TopHashtags  []string
	ByType       map[PostType]int
}
