package image

import "github.com/xaenox/persona-forge/internal/models"

var palettes = map[models.ImageStyle][]string{
	models.StyleProfessional: {"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728"},
	models.StyleCorporate:    {"#003366", "#0066CC", "#66B2FF", "#CCE5FF"},
	models.StyleModern:       {"#667eea", "#764ba2", "#f093fb", "#f5576c"},
	models.StyleMinimal:      {"#2c3e50", "#95a5a6", "#ecf0f1", "#34495e"},
	models.StyleBranded:      {"#0077B5", "#00A0DC", "#40E0D0", "#87CEEB"},
}

var layouts = map[models.PostType]models.Layout{
	models.PostTypeMini:        models.LayoutInfographic,
	models.PostTypeMain:        models.LayoutChart,
	models.PostTypeCapstone:    models.LayoutAchievement,
	models.PostTypeInsight:     models.LayoutQuote,
	models.PostTypeAchievement: models.LayoutAchievement,
	models.PostTypeGeneral:     models.LayoutInfographic,
}

var defaultTitles = map[models.Layout]string{
	models.LayoutInfographic: "Key Insights",
	models.LayoutChart:       "Performance Metrics",
	models.LayoutQuote:       "Food for Thought",
	models.LayoutProcess:     "How It Works",
	models.LayoutComparison:  "Side by Side",
	models.LayoutTimeline:    "The Journey",
	models.LayoutAchievement: "Milestone Achieved",
}

// Palette returns a copy of the colors for style.
func Palette(style models.ImageStyle) ([]string, bool) {
	p, ok := palettes[style]
	if !ok {
		return nil, false
	}
	return append([]string(nil), p...), true
}

// LayoutFor picks the renderer template for a post type.
func LayoutFor(t models.PostType) models.Layout {
	if l, ok := layouts[t]; ok {
		return l
	}
	return models.LayoutInfographic
}

func validLayout(l models.Layout) bool {
	_, ok := defaultTitles[l]
	return ok
}
