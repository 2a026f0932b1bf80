package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

func testProfile() models.UserProfile {
	return models.UserProfile{
		Name:     "Ada Lovelace",
		Industry: "Technology",
		Skills:   []string{"Go", "Distributed Systems"},
		Goals:    "Thought leadership",
	}
}

func newTestBuilder() *Builder {
	return NewBuilder(Options{MaxLength: 3000, MaxTokens: 1024, Temperature: 0.7}, zap.NewNop())
}

func TestBuildIsDeterministic(t *testing.T) {
	b := newTestBuilder()
	digest := DigestHistory([]*models.GeneratedPost{
		{PostType: models.PostTypeMini, BodyText: "short", Hashtags: []string{"#Go", "#Cloud"}},
		{PostType: models.PostTypeMain, BodyText: "short", Hashtags: []string{"#go"}},
	})

	first, err := b.Build(models.PostTypeMain, testProfile(), digest)
	require.NoError(t, err)
	second, err := b.Build(models.PostTypeMain, testProfile(), digest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Main Project Deep Dive", first.Template)
	assert.Equal(t, "long", first.Length)
	assert.Contains(t, first.Prompt, "Define the problem or challenge addressed")
	assert.Contains(t, first.Prompt, "Industry: Technology")
	assert.Contains(t, first.Prompt, "#go #cloud")
}

func TestBuildRejectsUnknownPostType(t *testing.T) {
	_, err := newTestBuilder().Build(models.PostType("newsletter"), testProfile(), models.HistoryDigest{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuildRejectsProfileWithoutIndustry(t *testing.T) {
	p := testProfile()
	p.Industry = "  "
	_, err := newTestBuilder().Build(models.PostTypeMini, p, models.HistoryDigest{})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "industry")
}

func TestProfileToneOverridesTemplate(t *testing.T) {
	p := testProfile()
	p.Tone = "casual_witty"
	spec, err := newTestBuilder().Build(models.PostTypeInsight, p, models.HistoryDigest{})
	require.NoError(t, err)
	assert.Equal(t, "casual_witty", spec.Tone)
	assert.Contains(t, spec.Prompt, "Tone: Casual Witty")
}

func TestCustomPromptOnlyForGeneral(t *testing.T) {
	b := newTestBuilder()
	req := models.PostRequest{PostType: models.PostTypeGeneral, Profile: testProfile(), CustomPrompt: "Why I moved to Go"}
	spec, err := b.BuildRequest(req, models.HistoryDigest{})
	require.NoError(t, err)
	assert.Contains(t, spec.Prompt, "USER REQUEST: Why I moved to Go")
	assert.NotContains(t, spec.Prompt, "CONTENT STRUCTURE")

	req.PostType = models.PostTypeMini
	spec, err = b.BuildRequest(req, models.HistoryDigest{})
	require.NoError(t, err)
	assert.NotContains(t, spec.Prompt, "USER REQUEST")
	assert.Contains(t, spec.Prompt, "Mini Project Showcase")
}

func TestBuildVisualCarriesBody(t *testing.T) {
	b := newTestBuilder()
	spec, err := b.Build(models.PostTypeCapstone, testProfile(), models.HistoryDigest{})
	require.NoError(t, err)

	visual := b.BuildVisual(spec, "We shipped 3 services in 90 days.")
	assert.Equal(t, models.PostTypeCapstone, visual.PostType)
	assert.Equal(t, "We shipped 3 services in 90 days.", visual.SourceText)
	assert.Contains(t, visual.Prompt, "We shipped 3 services in 90 days.")
	assert.LessOrEqual(t, visual.MaxTokens, 512)
}

func TestDigestHistory(t *testing.T) {
	long := make([]rune, 900)
	for i := range long {
		long[i] = 'x'
	}
	d := DigestHistory([]*models.GeneratedPost{
		{PostType: models.PostTypeMain, BodyText: string(long), Hashtags: []string{"#B", "#A"}},
		{PostType: models.PostTypeMain, BodyText: string(long), Hashtags: []string{"#b"}},
		nil,
	})
	assert.Equal(t, 2, d.RecentPosts)
	assert.Equal(t, "Long", d.LengthBucket)
	assert.Equal(t, []string{"#b", "#a"}, d.TopHashtags)
	assert.Equal(t, 2, d.ByType[models.PostTypeMain])

	empty := DigestHistory(nil)
	assert.Zero(t, empty.RecentPosts)
	assert.Empty(t, empty.LengthBucket)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Practical Value", humanize("practical_value"))
	assert.Equal(t, "Long", humanize("long"))
}
