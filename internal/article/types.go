// Package article holds the essay data model, the section extractor that
// recovers structure from raw generated text, and the block converter that
// turns essay bodies into typed content blocks for the document store.
package article

import "strings"

// Categories is the fixed allow-list for essay categories. Values outside
// this list fall back to DefaultCategory during extraction.
var Categories = []string{
	"psychology",
	"decision-making",
	"productivity",
	"communication",
	"relationships",
	"creativity",
	"learning",
	"systems-thinking",
}

const (
	// DefaultCategory is used when no valid category can be extracted.
	DefaultCategory = "psychology"

	// PlaceholderTitle is used when every title fallback fails.
	PlaceholderTitle = "Untitled Essay"

	// MaxTags caps the number of tags carried by a document.
	MaxTags = 5
)

// VideoReference is a recommended video parsed from the references block.
type VideoReference struct {
	Title   string `json:"title"`
	Channel string `json:"channel"`
	URL     string `json:"url"`
	Note    string `json:"note"`
}

// ReadingReference is a recommended paper, article or book.
type ReadingReference struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Year    int    `json:"year"`
	URL     string `json:"url"`
	Note    string `json:"note"`
}

// Document is the canonical output of extraction. It is constructed once per
// generation attempt and passed by value through the pipeline.
type Document struct {
	Title       string             `json:"title"`
	Category    string             `json:"category"`
	Tags        []string           `json:"tags"`
	Summary     string             `json:"summary"`
	Body        string             `json:"body"`
	VideoRefs   []VideoReference   `json:"video_refs"`
	ReadingRefs []ReadingReference `json:"reading_refs"`
	WordCount   int                `json:"word_count"`
}

// ReadingTimeMinutes estimates reading time at 200 words per minute, never
// less than one minute.
func (d Document) ReadingTimeMinutes() int {
	m := d.WordCount / 200
	if m < 1 {
		return 1
	}
	return m
}

// ValidCategory reports whether c is on the allow-list.
func ValidCategory(c string) bool {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// CountWords tokenizes text by whitespace. Word counts are always recomputed
// from the body, never trusted from the source text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
