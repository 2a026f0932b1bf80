package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/persona-forge/internal/inference"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

var ErrInvalidStyle = errors.New("invalid image style")

const (
	maxPoints = 3
	maxStats  = 3
)

type Options struct {
	Width  int
	Height int
}

type visualElements struct {
	Title   string   `json:"title"`
	Points  []string `json:"points"`
	Stats   []string `json:"stats"`
	Caption string   `json:"caption"`
	Layout  string   `json:"layout"`
}

// Agent describes the image that accompanies a post. Rendering pixels is
// left to whatever consumes the descriptor.
type Agent struct {
	client inference.Client
	opts   Options
	logger *zap.Logger
}

func NewAgent(client inference.Client, opts Options, logger *zap.Logger) *Agent {
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 630
	}
	return &Agent{client: client, opts: opts, logger: logger}
}

// Compose validates style before any inference call. Unparseable model
// output degrades to elements extracted from spec.SourceText; transient
// inference errors are returned for the caller to retry.
func (a *Agent) Compose(ctx context.Context, spec models.PromptSpec, style models.ImageStyle) (*models.ImageDescriptor, error) {
	palette, ok := Palette(style)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}

	elements, err := a.extract(ctx, spec)
	if err != nil {
		return nil, err
	}

	layout := LayoutFor(spec.PostType)
	if suggested := models.Layout(strings.ToLower(strings.TrimSpace(elements.Layout))); spec.PostType == models.PostTypeGeneral && validLayout(suggested) {
		layout = suggested
	}

	title := strings.TrimSpace(elements.Title)
	if title == "" {
		title = defaultTitles[layout]
	}
	overlays := []models.TextOverlay{{Role: "title", Text: title}}
	for _, p := range firstN(elements.Points, maxPoints) {
		overlays = append(overlays, models.TextOverlay{Role: "point", Text: p})
	}
	for _, s := range firstN(elements.Stats, maxStats) {
		overlays = append(overlays, models.TextOverlay{Role: "stat", Text: s})
	}
	if c := strings.TrimSpace(elements.Caption); c != "" {
		overlays = append(overlays, models.TextOverlay{Role: "caption", Text: c})
	}

	return &models.ImageDescriptor{
		Layout:   layout,
		Style:    style,
		Palette:  palette,
		Overlays: overlays,
		Width:    a.opts.Width,
		Height:   a.opts.Height,
	}, nil
}

func (a *Agent) extract(ctx context.Context, spec models.PromptSpec) (visualElements, error) {
	raw, err := a.client.Infer(ctx, spec, 0)
	if err != nil {
		if !errors.Is(err, inference.ErrMalformedOutput) {
			return visualElements{}, err
		}
		a.logger.Warn("Visual extraction returned malformed output, using fallback",
			zap.Error(err), zap.String("post_type", string(spec.PostType)))
		return fallbackElements(spec.SourceText), nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var el visualElements
		if err := json.Unmarshal([]byte(raw[start:end+1]), &el); err == nil && (el.Title != "" || len(el.Points) > 0) {
			return el, nil
		}
	}
	a.logger.Warn("Failed to parse visual elements, using fallback",
		zap.String("post_type", string(spec.PostType)))
	return fallbackElements(spec.SourceText), nil
}

// fallbackElements takes numbers as stats and the first sentences as points.
func fallbackElements(text string) visualElements {
	var el visualElements
	for _, word := range strings.Fields(text) {
		if isNumber(word) {
			el.Stats = append(el.Stats, strings.TrimRight(word, ".,;:!?"))
		}
	}
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			el.Points = append(el.Points, s)
		}
		if len(el.Points) == maxPoints {
			break
		}
	}
	return el
}

func isNumber(word string) bool {
	w := strings.TrimRight(word, ".,;:!?")
	w = strings.NewReplacer("%", "", "$", "", ",", "").Replace(w)
	if w == "" {
		return false
	}
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstN(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, it := range items {
		if it = strings.TrimSpace(it); it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	return out
}
