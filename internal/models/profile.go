package models

import "strings"

// UserProfile is captured at first-run setup and only changes on explicit
// user edit. Pipelines work on a Snapshot.
type UserProfile struct {
	Name            string   `json:"name"`
	Industry        string   `json:"industry"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	CurrentWork     string   `json:"current_work,omitempty"`
	Skills          []string `json:"skills"`
	Goals           string   `json:"goals,omitempty"`
	Tone            string   `json:"tone,omitempty"`
	Cadence         string   `json:"cadence,omitempty"`
}

// Snapshot returns a deep copy with whitespace-trimmed, de-duplicated skills.
func (p UserProfile) Snapshot() UserProfile {
	out := p
	out.Name = strings.TrimSpace(p.Name)
	out.Industry = strings.TrimSpace(p.Industry)
	out.Skills = nil
	seen := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Skills = append(out.Skills, s)
	}
	return out
}

// MissingFields lists the required fields that are blank.
func (p UserProfile) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Industry) == "" {
		missing = append(missing, "industry")
	}
	return missing
}
