package content

import (
	"strings"
	"unicode"
)

// ExtractHashtags pulls #tags out of free text in order of appearance.
func ExtractHashtags(text string) []string {
	var tags []string
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		if tag := normalizeTag(word); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MergeHashtags de-duplicates tags case-insensitively, keeping the first
// spelling seen and the original order, and caps the result at max.
func MergeHashtags(max int, groups ...[]string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, group := range groups {
		for _, raw := range group {
			tag := normalizeTag(raw)
			if tag == "" {
				continue
			}
			key := strings.ToLower(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, tag)
			if max > 0 && len(result) == max {
				return result
			}
		}
	}
	return result
}

// normalizeTag returns "#word" or "" when nothing usable is left.
func normalizeTag(raw string) string {
	tag := strings.TrimLeft(strings.TrimSpace(raw), "#")
	tag = strings.TrimFunc(tag, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if tag == "" {
		return ""
	}
	for _, r := range tag {
		if unicode.IsSpace(r) {
			return ""
		}
	}
	return "#" + tag
}
