// Package history tracks previously published topics and derives the
// exclusion directive that biases future generation away from repeats.
package history

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TopicRecord is a persisted historical fact about one published essay.
// Records are append-only: the pipeline writes new ones and reads old ones,
// never mutates.
type TopicRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	WordCount   int       `json:"word_count"`
	PublishedAt time.Time `json:"published_at"`
	ExternalURL string    `json:"external_url"`
}

// Directive is the pipeline-run-scoped exclusion set. It is built fresh at
// the start of each run and discarded after the generation call.
type Directive struct {
	ExcludedCategories map[string]struct{}
	ExcludedTitles     map[string]struct{}
	RenderedPrompt     string
}

// topicDomains is the fixed rotation list appended to the rendered directive.
var topicDomains = []string{
	"psychology", "relationships", "communication", "leadership",
	"productivity", "decision-making", "cognitive biases", "creativity",
	"learning", "negotiation", "emotional intelligence", "systems thinking",
	"habit formation",
}

// BuildExclusions derives the exclusion directive from past topic records.
// Categories are excluded only within the recency window; titles are
// excluded forever. The rendered prompt is deterministic for a fixed record
// snapshot: both sets are sorted before joining.
func BuildExclusions(records []TopicRecord, recentWindowDays int, now time.Time) Directive {
	d := Directive{
		ExcludedCategories: make(map[string]struct{}),
		ExcludedTitles:     make(map[string]struct{}),
	}
	if len(records) == 0 {
		return d
	}

	cutoff := now.AddDate(0, 0, -recentWindowDays)
	for _, r := range records {
		if r.Title != "" {
			d.ExcludedTitles[r.Title] = struct{}{}
		}
		if r.Category != "" && !r.PublishedAt.Before(cutoff) {
			d.ExcludedCategories[r.Category] = struct{}{}
		}
	}

	d.RenderedPrompt = renderPrompt(d, recentWindowDays)
	return d
}

func renderPrompt(d Directive, recentWindowDays int) string {
	var sb strings.Builder
	sb.WriteString("## IMPORTANT - Topic Diversity Requirements\n")
	sb.WriteString("To ensure variety, follow these rules:\n")

	if cats := sortedKeys(d.ExcludedCategories); len(cats) > 0 {
		sb.WriteString("- AVOID these categories (used in the last ")
		sb.WriteString(pluralDays(recentWindowDays))
		sb.WriteString("): ")
		sb.WriteString(strings.Join(cats, ", "))
		sb.WriteString("\n")
	}
	if titles := sortedKeys(d.ExcludedTitles); len(titles) > 0 {
		sb.WriteString("- NEVER repeat these past titles: ")
		sb.WriteString(strings.Join(titles, ", "))
		sb.WriteString("\n")
	}

	sb.WriteString("\nChoose a FRESH topic from an UNDERREPRESENTED category. ")
	sb.WriteString("Rotate through different domains: ")
	sb.WriteString(strings.Join(topicDomains, ", "))
	sb.WriteString(", etc.\n")
	return sb.String()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}
