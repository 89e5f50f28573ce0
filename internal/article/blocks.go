package article

import (
	"fmt"
	"regexp"
	"strings"
)

// BlockType enumerates the renderable block variants.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockBullet    BlockType = "bulleted_list_item"
	BlockCallout   BlockType = "callout"
	BlockDivider   BlockType = "divider"
)

const (
	// MaxBlockChars is the per-block character ceiling imposed by the
	// document store. Longer blocks are hard-truncated, never split.
	MaxBlockChars = 2000

	// DefaultCalloutIcon decorates callout blocks converted from quotes.
	DefaultCalloutIcon = "💡"
)

// Run is a fragment of rich text, optionally linked.
type Run struct {
	Text    string `json:"text"`
	LinkURL string `json:"link_url,omitempty"`
}

// Block is a typed, renderable unit. Heading blocks carry Level and Text;
// paragraph, bullet and callout blocks carry Runs; dividers carry nothing.
type Block struct {
	Type  BlockType `json:"type"`
	Level int       `json:"level,omitempty"`
	Text  string    `json:"text,omitempty"`
	Runs  []Run     `json:"runs,omitempty"`
	Icon  string    `json:"icon,omitempty"`
}

// Flatten returns the plain text carried by the block.
func (b Block) Flatten() string {
	if b.Type == BlockHeading {
		return b.Text
	}
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

var inlineLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)

// ParseRuns splits text with inline [text](url) link syntax into alternating
// plain and linked runs, preserving order. Text without link syntax becomes a
// single plain run.
func ParseRuns(text string) []Run {
	matches := inlineLinkPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Run{{Text: text}}
	}
	var runs []Run
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			runs = append(runs, Run{Text: text[pos:m[0]]})
		}
		runs = append(runs, Run{Text: text[m[2]:m[3]], LinkURL: text[m[4]:m[5]]})
		pos = m[1]
	}
	if pos < len(text) {
		runs = append(runs, Run{Text: text[pos:]})
	}
	return runs
}

// stripLinks reduces inline link syntax to its plain text. Headings must not
// carry links.
func stripLinks(text string) string {
	return inlineLinkPattern.ReplaceAllString(text, "$1")
}

// ConvertBody converts a markdown-like body into an ordered block sequence.
// It is a pure text-layout transform: consecutive plain lines accumulate into
// one paragraph, flushed on a blank line or any block-starting marker.
func ConvertBody(body string) []Block {
	var blocks []Block
	var paragraph []string

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		text := strings.Join(paragraph, " ")
		paragraph = nil
		blocks = append(blocks, truncated(Block{Type: BlockParagraph, Runs: ParseRuns(text)}))
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "### "):
			flush()
			blocks = append(blocks, truncated(Block{Type: BlockHeading, Level: 3, Text: stripLinks(line[4:])}))
		case strings.HasPrefix(line, "## "):
			flush()
			blocks = append(blocks, truncated(Block{Type: BlockHeading, Level: 2, Text: stripLinks(line[3:])}))
		case strings.HasPrefix(line, "# "):
			flush()
			blocks = append(blocks, truncated(Block{Type: BlockHeading, Level: 1, Text: stripLinks(line[2:])}))
		case strings.HasPrefix(line, "> "):
			flush()
			blocks = append(blocks, truncated(Block{Type: BlockCallout, Runs: ParseRuns(line[2:]), Icon: DefaultCalloutIcon}))
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flush()
			blocks = append(blocks, truncated(Block{Type: BlockBullet, Runs: ParseRuns(line[2:])}))
		default:
			paragraph = append(paragraph, line)
		}
	}
	flush()

	return blocks
}

// truncated enforces the per-block character ceiling on the flattened text,
// cutting at MaxBlockChars-3 and appending an ellipsis marker.
func truncated(b Block) Block {
	if b.Type == BlockHeading {
		if len(b.Text) > MaxBlockChars {
			b.Text = b.Text[:MaxBlockChars-3] + "..."
		}
		return b
	}
	flatLen := 0
	for _, r := range b.Runs {
		flatLen += len(r.Text)
	}
	if flatLen <= MaxBlockChars {
		return b
	}
	budget := MaxBlockChars - 3
	kept := make([]Run, 0, len(b.Runs)+1)
	for _, r := range b.Runs {
		if budget == 0 {
			break
		}
		if len(r.Text) > budget {
			r.Text = r.Text[:budget]
		}
		budget -= len(r.Text)
		kept = append(kept, r)
	}
	b.Runs = append(kept, Run{Text: "..."})
	return b
}

// AppendReferenceBlocks appends a divider plus a labeled list of video
// references, then a divider plus a labeled list of reading references, each
// only when the respective sequence is non-empty.
func AppendReferenceBlocks(blocks []Block, doc Document) []Block {
	if len(doc.VideoRefs) > 0 {
		blocks = append(blocks,
			Block{Type: BlockDivider},
			Block{Type: BlockHeading, Level: 2, Text: "Watch"},
		)
		for _, v := range doc.VideoRefs {
			runs := []Run{{Text: v.Title, LinkURL: v.URL}}
			if v.Channel != "" {
				runs = append(runs, Run{Text: " by " + v.Channel})
			}
			if v.Note != "" {
				runs = append(runs, Run{Text: " - " + v.Note})
			}
			blocks = append(blocks, truncated(Block{Type: BlockBullet, Runs: runs}))
		}
	}
	if len(doc.ReadingRefs) > 0 {
		blocks = append(blocks,
			Block{Type: BlockDivider},
			Block{Type: BlockHeading, Level: 2, Text: "Read"},
		)
		for _, r := range doc.ReadingRefs {
			runs := []Run{{Text: r.Title, LinkURL: r.URL}}
			if r.Authors != "" {
				runs = append(runs, Run{Text: " by " + r.Authors})
			}
			if r.Year != 0 {
				runs = append(runs, Run{Text: fmt.Sprintf(" (%d)", r.Year)})
			}
			if r.Note != "" {
				runs = append(runs, Run{Text: " - " + r.Note})
			}
			blocks = append(blocks, truncated(Block{Type: BlockBullet, Runs: runs}))
		}
	}
	return blocks
}
