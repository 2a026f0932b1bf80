package scheduler

import (
	"fmt"
	"strings"

	"github.com/xaenox/persona-forge/internal/models"
)

// TopicHint derives a default subject for a scheduled post from the profile,
// so unattended runs still have something concrete to write about.
func TopicHint(t models.PostType, p models.UserProfile) string {
	industry := p.Industry
	if industry == "" {
		industry = "Technology"
	}
	skill := func(i int, fallback string) string {
		if i < len(p.Skills) {
			return p.Skills[i]
		}
		return fallback
	}
	firstN := func(n int) string {
		if n > len(p.Skills) {
			n = len(p.Skills)
		}
		if n == 0 {
			return "core skills"
		}
		return strings.Join(p.Skills[:n], ", ")
	}

	switch t {
	case models.PostTypeMini:
		return fmt.Sprintf("Recent work involving %s. Insights from applying %s in %s.",
			skill(0, "professional development"), skill(1, "new techniques"), industry)
	case models.PostTypeMain:
		return fmt.Sprintf("Significant %s initiative leveraging %s. Overcoming %s challenges through new approaches, with measurable results.",
			industry, firstN(2), industry)
	case models.PostTypeCapstone:
		return fmt.Sprintf("Major milestone in %s leveraging %s. Journey of growth in %s.",
			industry, firstN(len(p.Skills)), skill(0, "professional development"))
	case models.PostTypeInsight:
		return fmt.Sprintf("Current trends and observations in %s, based on experience with %s.",
			industry, skill(0, "industry practices"))
	case models.PostTypeAchievement:
		return fmt.Sprintf("Professional milestone in %s, and the people who supported it.", skill(0, industry))
	default:
		return ""
	}
}
