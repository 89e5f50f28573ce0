package article

import (
	"log"
	"regexp"
	"strconv"
	"strings"
)

// The upstream text producer is asked for a fixed metadata/reference layout
// but is not guaranteed to honor it, so every block and field is located via
// an ordered list of candidate patterns, first match wins.

var metadataBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)---\s*\n\s*METADATA:?\s*\n(.*?)\n\s*---`),
	regexp.MustCompile(`(?is)##\s*METADATA[^\n]*\n(.*?)(?:\n##|\nVIDEOS:|\nYOUTUBE:|\nRESOURCES:|\nREADING:|\z)`),
	regexp.MustCompile(`(?is)\*\*METADATA\*\*[^\n]*\n(.*?)(?:\n##|\nVIDEOS:|\nYOUTUBE:|\nRESOURCES:|\nREADING:|\z)`),
	regexp.MustCompile(`(?is)METADATA:?\s*\n(.*?)(?:\n##|\nVIDEOS:|\nYOUTUBE:|\nRESOURCES:|\nREADING:|\z)`),
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Title:\s*\*?\*?([^\n*]+)`),
	regexp.MustCompile(`(?i)\*\*Title:\*\*\s*([^\n]+)`),
	regexp.MustCompile(`(?i)Title:\s*\[([^\]]+)\]`),
}

var (
	categoryPattern = regexp.MustCompile(`(?i)Category:\s*\*?\*?([^\n*\[\]]+)`)
	tagsPattern     = regexp.MustCompile(`(?i)Tags:\s*\*?\*?([^\n]+)`)
	summaryPattern  = regexp.MustCompile(`(?i)Summary:\s*\*?\*?([^\n]+)`)

	titleAnywherePattern = regexp.MustCompile(`(?i)Title:\s*([^\n]+)`)
	firstHeadingPattern  = regexp.MustCompile(`(?m)^#\s+([^\n]+)$`)
)

var videoBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)(?:VIDEOS|YOUTUBE):?\s*\n(.*?)(?:\nRESOURCES:|\nREADING:|\n---|\n##|\z)`),
	regexp.MustCompile(`(?is)##\s*(?:VIDEOS|YOUTUBE)[^\n]*\n(.*?)(?:\nRESOURCES:|\nREADING:|\n---|\n##|\z)`),
}

var readingBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)(?:RESOURCES|READING):?\s*\n(.*?)(?:\n---|\n##\s|\z)`),
	regexp.MustCompile(`(?is)##\s*(?:RESOURCES|READING)[^\n]*\n(.*?)(?:\n---|\n##\s|\z)`),
}

// Removal patterns cut each recognized block (and everything after its
// header, through end of text) out of the body.
var bodyRemovalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\n---\s*\n\s*METADATA:.*\z`),
	regexp.MustCompile(`(?is)\n##\s*METADATA.*\z`),
	regexp.MustCompile(`(?is)\nMETADATA:.*\z`),
	regexp.MustCompile(`(?is)\n(?:VIDEOS|YOUTUBE):.*\z`),
	regexp.MustCompile(`(?is)\n##\s*(?:VIDEOS|YOUTUBE).*\z`),
	regexp.MustCompile(`(?is)\n(?:RESOURCES|READING):.*\z`),
	regexp.MustCompile(`(?is)\n##\s*(?:RESOURCES|READING).*\z`),
}

var (
	urlTokenPattern  = regexp.MustCompile(`https?://[^\s)]+`)
	quotedOrBracket  = regexp.MustCompile(`["*\[]([^"*\]]+)["*\]]`)
	yearPattern      = regexp.MustCompile(`\((\d{4})\)`)
	byAuthorsPattern = regexp.MustCompile(`(?i)\bby\s+([^:(]+)`)
)

const refDecoration = " -•*[]\"\t"

// Extractor parses a single free-form text blob into a Document. It never
// fails: malformed input yields a best-effort document with documented
// fallbacks, and the fallback that fired is logged for diagnostics.
type Extractor struct {
	logger *log.Logger
}

// NewExtractor creates an Extractor. A nil logger falls back to the default
// writer with an [EXTRACT] prefix.
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{logger: logger}
}

// Extract parses raw generated text into a Document.
func (e *Extractor) Extract(raw string) Document {
	doc := Document{
		Title:    PlaceholderTitle,
		Category: DefaultCategory,
	}

	metadata := firstMatch(metadataBlockPatterns, raw)
	if metadata != "" {
		e.parseMetadata(metadata, &doc)
	} else {
		e.logger.Printf("no metadata block found, using defaults")
	}

	if doc.Title == PlaceholderTitle {
		e.fallbackTitle(raw, &doc)
	}

	if videoText := firstMatch(videoBlockPatterns, raw); videoText != "" {
		doc.VideoRefs = parseVideoRefs(videoText)
		e.logger.Printf("extracted %d video references", len(doc.VideoRefs))
	}
	if readingText := firstMatch(readingBlockPatterns, raw); readingText != "" {
		doc.ReadingRefs = parseReadingRefs(readingText)
		e.logger.Printf("extracted %d reading references", len(doc.ReadingRefs))
	}

	body := raw
	for _, p := range bodyRemovalPatterns {
		body = p.ReplaceAllString(body, "")
	}
	doc.Body = strings.TrimSpace(body)
	doc.WordCount = CountWords(doc.Body)
	if doc.Body == "" {
		e.logger.Printf("warning: extracted body is empty")
	}

	return doc
}

func (e *Extractor) parseMetadata(metadata string, doc *Document) {
	for _, p := range titlePatterns {
		if m := p.FindStringSubmatch(metadata); m != nil {
			doc.Title = strings.Trim(strings.TrimSpace(m[1]), "*[]")
			break
		}
	}

	if m := categoryPattern.FindStringSubmatch(metadata); m != nil {
		cat := strings.ToLower(strings.TrimSpace(m[1]))
		if ValidCategory(cat) {
			doc.Category = cat
		} else {
			e.logger.Printf("category %q not on allow-list, falling back to %q", cat, DefaultCategory)
		}
	}

	if m := tagsPattern.FindStringSubmatch(metadata); m != nil {
		raw := strings.Trim(strings.TrimSpace(m[1]), "*[]")
		for _, t := range strings.Split(raw, ",") {
			t = strings.Trim(strings.ToLower(strings.TrimSpace(t)), "*[]")
			if t == "" {
				continue
			}
			doc.Tags = append(doc.Tags, t)
			if len(doc.Tags) == MaxTags {
				break
			}
		}
	}

	if m := summaryPattern.FindStringSubmatch(metadata); m != nil {
		doc.Summary = strings.Trim(strings.TrimSpace(m[1]), "*[]")
	}
}

// fallbackTitle runs the ordered title fallback chain: a bare "Title:" label
// anywhere in the text, then the first top-level heading, then the
// placeholder.
func (e *Extractor) fallbackTitle(raw string, doc *Document) {
	if m := titleAnywherePattern.FindStringSubmatch(raw); m != nil {
		doc.Title = strings.Trim(strings.TrimSpace(m[1]), "*[]")
		e.logger.Printf("title recovered from bare label: %s", doc.Title)
		return
	}
	if m := firstHeadingPattern.FindStringSubmatch(raw); m != nil {
		doc.Title = strings.TrimSpace(m[1])
		e.logger.Printf("title recovered from first heading: %s", doc.Title)
		return
	}
	e.logger.Printf("warning: could not extract title, using placeholder")
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// refLine splits one reference line into its URL token, display title and
// trailing note. The URL token stops at whitespace or a closing paren and is
// stripped of trailing punctuation.
func refLine(line string) (url, title, note string, ok bool) {
	loc := urlTokenPattern.FindStringIndex(line)
	if loc == nil {
		return "", "", "", false
	}
	url = strings.TrimRight(line[loc[0]:loc[1]], ".,;:")

	if m := quotedOrBracket.FindStringSubmatch(line); m != nil {
		title = strings.TrimSpace(m[1])
	} else {
		title = strings.Trim(line[:loc[0]], refDecoration+":")
	}

	after := line[loc[1]:]
	note = strings.Trim(after, refDecoration+":")
	return url, title, note, true
}

func parseVideoRefs(block string) []VideoReference {
	var refs []VideoReference
	for _, line := range strings.Split(block, "\n") {
		url, title, note, ok := refLine(line)
		if !ok {
			continue
		}
		if title == "" {
			title = "Video"
		}
		ref := VideoReference{Title: title, URL: url, Note: note}
		if m := byAuthorsPattern.FindStringSubmatch(line); m != nil {
			ref.Channel = strings.TrimSpace(m[1])
		}
		refs = append(refs, ref)
	}
	return refs
}

func parseReadingRefs(block string) []ReadingReference {
	var refs []ReadingReference
	for _, line := range strings.Split(block, "\n") {
		url, title, note, ok := refLine(line)
		if !ok || title == "" {
			continue
		}
		ref := ReadingReference{Title: title, URL: url, Note: note}
		if m := byAuthorsPattern.FindStringSubmatch(line); m != nil {
			ref.Authors = strings.TrimSpace(m[1])
		}
		if m := yearPattern.FindStringSubmatch(line); m != nil {
			ref.Year, _ = strconv.Atoi(m[1])
		}
		refs = append(refs, ref)
	}
	return refs
}
