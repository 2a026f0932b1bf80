package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

// ErrInvalidRequest marks input the pipeline must not retry.
var ErrInvalidRequest = errors.New("invalid request")

const systemPrompt = "You are a professional LinkedIn content creator and thought leader. " +
	"You write in the first person and you answer with a single JSON object and nothing else."

const visualSystemPrompt = "You are a visual content designer for professional social media. " +
	"You answer with a single JSON object and nothing else."

type Options struct {
	MaxLength   int
	MaxTokens   int
	Temperature float64
	MaxHashtags int
}

// Builder turns a post type and profile into a PromptSpec. It holds no
// mutable state: equal inputs always produce equal specs.
type Builder struct {
	opts   Options
	logger *zap.Logger
}

func NewBuilder(opts Options, logger *zap.Logger) *Builder {
	if opts.MaxHashtags <= 0 {
		opts.MaxHashtags = 5
	}
	return &Builder{opts: opts, logger: logger}
}

func (b *Builder) Build(postType models.PostType, profile models.UserProfile, digest models.HistoryDigest) (models.PromptSpec, error) {
	return b.BuildRequest(models.PostRequest{PostType: postType, Profile: profile}, digest)
}

// BuildRequest is Build with the request-level extras: a topic hint and, for
// general posts, a free-form user prompt.
func (b *Builder) BuildRequest(req models.PostRequest, digest models.HistoryDigest) (models.PromptSpec, error) {
	if !req.PostType.Valid() {
		return models.PromptSpec{}, fmt.Errorf("%w: unknown post type %q", ErrInvalidRequest, req.PostType)
	}
	profile := req.Profile.Snapshot()
	if missing := profile.MissingFields(); len(missing) > 0 {
		return models.PromptSpec{}, fmt.Errorf("%w: profile missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	tpl := templates[req.PostType]
	tone := tpl.tone
	if profile.Tone != "" {
		tone = profile.Tone
	}

	var sb strings.Builder
	sb.WriteString("ROLE: You are a professional LinkedIn content creator and thought leader.\n\n")
	writeContext(&sb, profile, req.TopicHint)

	custom := strings.TrimSpace(req.CustomPrompt)
	if req.PostType == models.PostTypeGeneral && custom != "" {
		fmt.Fprintf(&sb, "USER REQUEST: %s\n\n", custom)
		sb.WriteString("Address the exact topic of the request above. Start with a compelling hook, ")
		sb.WriteString("keep paragraphs short and end with a question that invites comments.\n\n")
	} else {
		fmt.Fprintf(&sb, "CONTENT STRUCTURE (%s):\n", tpl.name)
		for i, s := range tpl.sections {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, describeSection(s))
		}
		fmt.Fprintf(&sb, "Focus: %s\n\n", humanize(tpl.focus))
	}

	sb.WriteString("TONE & STYLE:\n")
	fmt.Fprintf(&sb, "- Tone: %s\n", describeTone(tone))
	fmt.Fprintf(&sb, "- Length: %s (%s)\n", humanize(tpl.length), lengthText[tpl.length])
	sb.WriteString("- Voice: first person, authentic\n\n")

	sb.WriteString("CONSTRAINTS:\n")
	if b.opts.MaxLength > 0 {
		fmt.Fprintf(&sb, "- Maximum length: %d characters\n", b.opts.MaxLength)
	}
	fmt.Fprintf(&sb, "- At most %d relevant hashtags\n", b.opts.MaxHashtags)
	sb.WriteString("- Include a call to action\n\n")

	writeHistory(&sb, digest)

	sb.WriteString(`OUTPUT FORMAT:
Return a JSON object with this structure:
{
    "post_text": "the complete post, ready to publish",
    "hashtags": ["#tag1", "#tag2"],
    "call_to_action": "closing question or request"
}`)

	spec := models.PromptSpec{
		PostType:    req.PostType,
		Template:    tpl.name,
		Tone:        tone,
		Length:      tpl.length,
		Sections:    append([]string(nil), tpl.sections...),
		System:      systemPrompt,
		Prompt:      sb.String(),
		MaxTokens:   b.opts.MaxTokens,
		Temperature: b.opts.Temperature,
		MaxLength:   b.opts.MaxLength,
	}
	if b.logger != nil {
		b.logger.Debug("Built prompt",
			zap.String("post_type", string(req.PostType)),
			zap.String("template", tpl.name),
			zap.Int("prompt_len", len(spec.Prompt)))
	}
	return spec, nil
}

// BuildVisual derives the image prompt from a drafted post.
func (b *Builder) BuildVisual(spec models.PromptSpec, body string) models.PromptSpec {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract the key visual elements from this %s post.\n\n", spec.PostType)
	fmt.Fprintf(&sb, "POST:\n%s\n\n", body)
	sb.WriteString(`Return a JSON object with this structure:
{
    "title": "short headline, at most 8 words",
    "points": ["key point", "key point", "key point"],
    "stats": ["number or metric mentioned in the post"],
    "caption": "one line summary",
    "layout": "one of infographic, chart, quote, process, comparison, timeline, achievement"
}`)

	maxTokens := b.opts.MaxTokens
	if maxTokens <= 0 || maxTokens > 512 {
		maxTokens = 512
	}
	return models.PromptSpec{
		PostType:    spec.PostType,
		Template:    "visual:" + spec.Template,
		Tone:        spec.Tone,
		Length:      spec.Length,
		System:      visualSystemPrompt,
		Prompt:      sb.String(),
		MaxTokens:   maxTokens,
		Temperature: spec.Temperature,
		SourceText:  body,
	}
}

func writeContext(sb *strings.Builder, p models.UserProfile, topic string) {
	sb.WriteString("CONTEXT:\n")
	fmt.Fprintf(sb, "- Name: %s\n", p.Name)
	fmt.Fprintf(sb, "- Industry: %s\n", p.Industry)
	if p.ExperienceLevel != "" {
		fmt.Fprintf(sb, "- Experience level: %s\n", p.ExperienceLevel)
	}
	if p.CurrentWork != "" {
		fmt.Fprintf(sb, "- Current work: %s\n", p.CurrentWork)
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(sb, "- Skills to highlight: %s\n", strings.Join(p.Skills, ", "))
	}
	if p.Goals != "" {
		fmt.Fprintf(sb, "- Career goals: %s\n", p.Goals)
	}
	if topic != "" {
		fmt.Fprintf(sb, "- Topic: %s\n", topic)
	}
	sb.WriteString("\n")
}

func writeHistory(sb *strings.Builder, d models.HistoryDigest) {
	if d.RecentPosts == 0 {
		return
	}
	sb.WriteString("RECENT ACTIVITY:\n")
	fmt.Fprintf(sb, "- Posts in the last 90 days: %d\n", d.RecentPosts)
	if d.LengthBucket != "" {
		fmt.Fprintf(sb, "- Typical length: %s\n", d.LengthBucket)
	}
	if len(d.TopHashtags) > 0 {
		fmt.Fprintf(sb, "- Frequent hashtags (avoid repeating all of them): %s\n", strings.Join(d.TopHashtags, " "))
	}
	for _, t := range models.PostTypes() {
		if n := d.ByType[t]; n > 0 {
			fmt.Fprintf(sb, "- %s posts: %d\n", t, n)
		}
	}
	sb.WriteString("\n")
}

func describeSection(s string) string {
	if text, ok := sectionText[s]; ok {
		return text
	}
	return "Include " + strings.ReplaceAll(s, "_", " ")
}

func describeTone(t string) string {
	if text, ok := toneText[t]; ok {
		return text
	}
	return humanize(t)
}

// humanize turns snake_case into Title Case.
func humanize(s string) string {
	parts := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = strings.ToUpper(string(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// DigestHistory summarizes prior posts. Output order is stable for any
// input order so the prompt it feeds stays deterministic.
func DigestHistory(posts []*models.GeneratedPost) models.HistoryDigest {
	d := models.HistoryDigest{ByType: make(map[models.PostType]int)}
	if len(posts) == 0 {
		return d
	}

	type tagCount struct {
		tag   string
		count int
	}
	counts := make(map[string]*tagCount)
	total := 0
	for _, p := range posts {
		if p == nil {
			continue
		}
		d.RecentPosts++
		d.ByType[p.PostType]++
		total += utf8.RuneCountInString(p.BodyText)
		for _, h := range p.Hashtags {
			key := strings.ToLower(h)
			if c, ok := counts[key]; ok {
				c.count++
				continue
			}
			counts[key] = &tagCount{tag: key, count: 1}
		}
	}
	if d.RecentPosts == 0 {
		return d
	}

	avg := total / d.RecentPosts
	switch {
	case avg < 300:
		d.LengthBucket = "Short"
	case avg < 800:
		d.LengthBucket = "Medium"
	default:
		d.LengthBucket = "Long"
	}

	ranked := make([]*tagCount, 0, len(counts))
	for _, c := range counts {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].tag < ranked[j].tag
	})
	for i := 0; i < len(ranked) && i < 5; i++ {
		d.TopHashtags = append(d.TopHashtags, ranked[i].tag)
	}
	return d
}
