package workflow

import "strings"

// NormalizePlan bounds and deduplicates model-proposed sub-topic titles.
// Order is preserved from the model output; duplicates are removed by
// case-insensitive exact match, first occurrence wins; the list is cut at
// max entries.
func NormalizePlan(titles []string, max int) SubtopicPlan {
	if max <= 0 {
		max = len(titles)
	}
	seen := make(map[string]bool, len(titles))
	plan := make(SubtopicPlan, 0, max)
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		plan = append(plan, t)
		if len(plan) == max {
			break
		}
	}
	return plan
}
