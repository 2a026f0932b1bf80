package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusDraft.CanTransition(StatusScheduled))
	assert.True(t, StatusScheduled.CanTransition(StatusPosted))
	assert.True(t, StatusDraft.CanTransition(StatusFailed))
	assert.True(t, StatusScheduled.CanTransition(StatusFailed))

	assert.False(t, StatusDraft.CanTransition(StatusPosted))
	assert.False(t, StatusPosted.CanTransition(StatusDraft))
	assert.False(t, StatusPosted.CanTransition(StatusFailed))
	assert.False(t, StatusFailed.CanTransition(StatusScheduled))
	assert.False(t, StatusScheduled.CanTransition(StatusDraft))
}

func TestParsePostTypeAcceptsLegacyNames(t *testing.T) {
	pt, err := ParsePostType("Mini_Project")
	require.NoError(t, err)
	assert.Equal(t, PostTypeMini, pt)

	_, err = ParsePostType("newsletter")
	assert.Error(t, err)
}

func TestParseImageStyle(t *testing.T) {
	st, err := ParseImageStyle("linkedin")
	require.NoError(t, err)
	assert.Equal(t, StyleBranded, st)

	_, err = ParseImageStyle("vaporwave")
	assert.Error(t, err)
}

func TestProfileSnapshotIsIndependent(t *testing.T) {
	p := UserProfile{Name: " Ada ", Industry: "Tech", Skills: []string{"Go", " go ", "", "SQL"}}
	snap := p.Snapshot()
	assert.Equal(t, "Ada", snap.Name)
	assert.Equal(t, []string{"Go", "SQL"}, snap.Skills)

	snap.Skills[0] = "Rust"
	assert.Equal(t, "Go", p.Skills[0])
}

func TestMissingFields(t *testing.T) {
	assert.Equal(t, []string{"industry"}, UserProfile{Name: "Ada"}.MissingFields())
	assert.Empty(t, UserProfile{Name: "Ada", Industry: "Tech"}.MissingFields())
}

func TestEngagementScore(t *testing.T) {
	r := EngagementRecord{Likes: 10, Comments: 2, Shares: 1, Views: 500}
	assert.Equal(t, 17.0, r.Score())
}

func TestCalendarOccupiedIgnoresDropped(t *testing.T) {
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	cal := Calendar{Slots: []Slot{{Due: DueDate{Tier: PostTypeMini, Date: day}, State: SlotDropped}}}
	assert.False(t, cal.Occupied(day.Add(5*time.Hour)))

	cal.Slots[0].State = SlotMissed
	assert.True(t, cal.Occupied(day))
}

func TestGeneratedPostClone(t *testing.T) {
	p := &GeneratedPost{Hashtags: []string{"#a"}, Image: &ImageDescriptor{Palette: []string{"#fff"}}}
	c := p.Clone()
	c.Hashtags[0] = "#b"
	c.Image.Palette[0] = "#000"
	assert.Equal(t, "#a", p.Hashtags[0])
	assert.Equal(t, "#fff", p.Image.Palette[0])
}
