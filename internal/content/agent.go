package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/xaenox/persona-forge/internal/inference"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

// EngagementSource supplies the history the engagement prediction reads.
type EngagementSource interface {
	Engagement(ctx context.Context, postType models.PostType) ([]models.EngagementRecord, error)
}

type Options struct {
	MaxLength       int
	MaxHashtags     int
	DefaultHashtags []string
}

type Draft struct {
	Body                string
	Hashtags            []string
	CallToAction        string
	PredictedEngagement float64
}

type modelOutput struct {
	PostText     string   `json:"post_text"`
	Hashtags     []string `json:"hashtags"`
	CallToAction string   `json:"call_to_action"`
}

type Agent struct {
	client  inference.Client
	history EngagementSource
	opts    Options
	logger  *zap.Logger
}

func NewAgent(client inference.Client, history EngagementSource, opts Options, logger *zap.Logger) *Agent {
	if opts.MaxHashtags <= 0 {
		opts.MaxHashtags = 5
	}
	if len(opts.DefaultHashtags) == 0 {
		opts.DefaultHashtags = []string{"#LinkedInPost", "#PersonaForgeAI"}
	}
	return &Agent{client: client, history: history, opts: opts, logger: logger}
}

// Draft runs one inference call and post-processes the answer. Inference
// errors are returned as-is so the caller can decide whether to retry.
func (a *Agent) Draft(ctx context.Context, spec models.PromptSpec) (Draft, error) {
	raw, err := a.client.Infer(ctx, spec, 0)
	if err != nil {
		return Draft{}, err
	}

	out, ok := parseOutput(raw)
	if !ok {
		a.logger.Warn("Failed to parse content response, using raw text",
			zap.String("post_type", string(spec.PostType)),
			zap.Int("response_len", len(raw)))
		out = modelOutput{PostText: raw}
	}

	body := strings.TrimSpace(out.PostText)
	cta := strings.TrimSpace(out.CallToAction)
	if cta != "" && !strings.Contains(body, cta) {
		body = body + "\n\n" + cta
	}
	if body == "" {
		return Draft{}, fmt.Errorf("%w: empty post text", inference.ErrMalformedOutput)
	}

	maxLength := spec.MaxLength
	if maxLength <= 0 {
		maxLength = a.opts.MaxLength
	}
	body = Truncate(body, maxLength)

	tags := MergeHashtags(a.opts.MaxHashtags, out.Hashtags, ExtractHashtags(body))
	if len(tags) == 0 {
		tags = MergeHashtags(a.opts.MaxHashtags, a.opts.DefaultHashtags)
	}

	var records []models.EngagementRecord
	if a.history != nil {
		records, err = a.history.Engagement(ctx, spec.PostType)
		if err != nil {
			return Draft{}, fmt.Errorf("load engagement history: %w", err)
		}
	}

	return Draft{
		Body:                body,
		Hashtags:            tags,
		CallToAction:        cta,
		PredictedEngagement: PredictEngagement(records),
	}, nil
}

// parseOutput reads the JSON object between the first '{' and the last '}'.
func parseOutput(raw string) (modelOutput, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return modelOutput{}, false
	}
	var out modelOutput
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return modelOutput{}, false
	}
	if strings.TrimSpace(out.PostText) == "" {
		return modelOutput{}, false
	}
	return out, true
}

// Truncate shortens s to at most max runes, preferring a word boundary in
// the last fifth of the allowance.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := runes[:max]
	for i := len(cut) - 1; i >= max*4/5; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}
