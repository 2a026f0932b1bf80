package prompt

import "github.com/xaenox/persona-forge/internal/models"

type template struct {
	name     string
	sections []string
	tone     string
	length   string
	focus    string
}

var templates = map[models.PostType]template{
	models.PostTypeMini: {
		name:     "Mini Project Showcase",
		sections: []string{"context_setting", "project_description", "methodology_brief", "results_summary", "learnings", "call_to_action"},
		tone:     "enthusiastic_professional",
		length:   "medium",
		focus:    "practical_value",
	},
	models.PostTypeMain: {
		name:     "Main Project Deep Dive",
		sections: []string{"problem_statement", "approach_overview", "implementation_details", "challenges_overcome", "quantified_results", "broader_implications", "community_value"},
		tone:     "authoritative_insightful",
		length:   "long",
		focus:    "thought_leadership",
	},
	models.PostTypeCapstone: {
		name:     "Capstone Achievement",
		sections: []string{"milestone_announcement", "journey_overview", "key_accomplishments", "impact_metrics", "lessons_learned", "future_vision", "gratitude_acknowledgment"},
		tone:     "celebratory_reflective",
		length:   "long",
		focus:    "inspiration_leadership",
	},
	models.PostTypeInsight: {
		name:     "Industry Insight",
		sections: []string{"observation_hook", "context_background", "analysis_framework", "personal_perspective", "supporting_evidence", "actionable_takeaways", "discussion_starter"},
		tone:     "thoughtful_analytical",
		length:   "medium",
		focus:    "thought_leadership",
	},
	models.PostTypeAchievement: {
		name:     "Achievement Celebration",
		sections: []string{"announcement", "journey_context", "support_acknowledgment", "key_milestones", "personal_growth", "inspiration_message", "forward_looking"},
		tone:     "grateful_inspiring",
		length:   "medium",
		focus:    "community_inspiration",
	},
	models.PostTypeGeneral: {
		name:     "General Professional Post",
		sections: []string{"engaging_hook", "main_content", "personal_connection", "value_proposition", "call_to_action"},
		tone:     "professional_engaging",
		length:   "medium",
		focus:    "community_value",
	},
}

var sectionText = map[string]string{
	"context_setting":          "Set the scene with relevant background",
	"project_description":      "Clearly describe the project and its objectives",
	"methodology_brief":        "Explain the approach or methodology used",
	"results_summary":          "Highlight key results and outcomes",
	"learnings":                "Share key insights and lessons learned",
	"call_to_action":           "Engage the audience with a question or request",
	"problem_statement":        "Define the problem or challenge addressed",
	"approach_overview":        "Outline the strategic approach taken",
	"implementation_details":   "Provide relevant implementation insights",
	"challenges_overcome":      "Discuss significant challenges and solutions",
	"quantified_results":       "Include specific metrics and measurable outcomes",
	"broader_implications":     "Connect to larger industry or business implications",
	"community_value":          "Explain value and relevance to the professional community",
	"milestone_announcement":   "Announce the achievement with impact",
	"journey_overview":         "Provide context of the journey to this milestone",
	"key_accomplishments":      "List major accomplishments within this achievement",
	"impact_metrics":           "Share quantifiable impact and success metrics",
	"lessons_learned":          "Reflect on key insights gained",
	"future_vision":            "Share vision for future direction",
	"gratitude_acknowledgment": "Acknowledge support from team, mentors, or community",
	"observation_hook":         "Start with an engaging industry observation",
	"context_background":       "Provide necessary context for the insight",
	"analysis_framework":       "Present an analytical framework",
	"personal_perspective":     "Add a personal viewpoint or experience",
	"supporting_evidence":      "Include data, examples, or case studies",
	"actionable_takeaways":     "Provide concrete actions readers can take",
	"discussion_starter":       "End with a thought-provoking question",
	"announcement":             "Make the achievement announcement",
	"journey_context":          "Provide context of the path to achievement",
	"support_acknowledgment":   "Recognize those who supported the journey",
	"key_milestones":           "Highlight significant milestones reached",
	"personal_growth":          "Reflect on personal and professional development",
	"inspiration_message":      "Share an inspiring message for others",
	"forward_looking":          "Look ahead to future opportunities",
	"engaging_hook":            "Start with an attention-grabbing opening",
	"main_content":             "Deliver the core message or story",
	"personal_connection":      "Add personal experience or connection",
	"value_proposition":        "Clearly state the value to the reader",
}

var toneText = map[string]string{
	"enthusiastic_professional": "Enthusiastic yet professional, showing passion while keeping credibility",
	"authoritative_insightful":  "Authoritative and insightful, demonstrating deep expertise",
	"celebratory_reflective":    "Celebratory yet reflective, balancing achievement with humility",
	"thoughtful_analytical":     "Thoughtful and analytical, presenting well-reasoned perspectives",
	"grateful_inspiring":        "Grateful and inspiring, acknowledging support while motivating others",
	"professional_engaging":     "Professional yet engaging, accessible to a broad professional audience",
}

var lengthText = map[string]string{
	"short":  "150-400 characters, concise and impactful",
	"medium": "400-800 characters, balanced detail and readability",
	"long":   "800-1500 characters, comprehensive with depth",
}
