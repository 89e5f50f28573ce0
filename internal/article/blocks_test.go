package article

import (
	"strings"
	"testing"
)

func TestConvertBodyRoundTrip(t *testing.T) {
	blocks := ConvertBody("# Heading\n\nSome [link](http://x) text.\n\n- item one")

	if len(blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(blocks), blocks)
	}
	if blocks[0].Type != BlockHeading || blocks[0].Level != 1 || blocks[0].Text != "Heading" {
		t.Fatalf("heading = %+v", blocks[0])
	}

	p := blocks[1]
	if p.Type != BlockParagraph {
		t.Fatalf("paragraph = %+v", p)
	}
	wantRuns := []Run{
		{Text: "Some "},
		{Text: "link", LinkURL: "http://x"},
		{Text: " text."},
	}
	if len(p.Runs) != len(wantRuns) {
		t.Fatalf("paragraph runs = %+v", p.Runs)
	}
	for i, want := range wantRuns {
		if p.Runs[i] != want {
			t.Fatalf("run[%d] = %+v, want %+v", i, p.Runs[i], want)
		}
	}

	b := blocks[2]
	if b.Type != BlockBullet || len(b.Runs) != 1 || b.Runs[0].Text != "item one" {
		t.Fatalf("bullet = %+v", b)
	}
}

func TestConvertBodyParagraphAccumulation(t *testing.T) {
	blocks := ConvertBody("first line\nsecond line\n\nnext paragraph")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks: %+v", len(blocks), blocks)
	}
	if got := blocks[0].Flatten(); got != "first line second line" {
		t.Fatalf("flattened = %q", got)
	}
}

func TestConvertBodyMarkerFlushesParagraph(t *testing.T) {
	blocks := ConvertBody("running text\n## Section\nmore text")
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(blocks), blocks)
	}
	if blocks[0].Type != BlockParagraph || blocks[1].Type != BlockHeading || blocks[2].Type != BlockParagraph {
		t.Fatalf("block order = %+v", blocks)
	}
	if blocks[1].Level != 2 {
		t.Fatalf("heading level = %d", blocks[1].Level)
	}
}

func TestConvertBodyCallout(t *testing.T) {
	blocks := ConvertBody("> a quoted insight")
	if len(blocks) != 1 || blocks[0].Type != BlockCallout {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Icon != DefaultCalloutIcon {
		t.Fatalf("icon = %q", blocks[0].Icon)
	}
	if blocks[0].Flatten() != "a quoted insight" {
		t.Fatalf("flattened = %q", blocks[0].Flatten())
	}
}

func TestConvertBodyHeadingStripsLinks(t *testing.T) {
	blocks := ConvertBody("## See [the study](https://example.com)")
	if len(blocks) != 1 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Text != "See the study" {
		t.Fatalf("heading text = %q", blocks[0].Text)
	}
}

func TestConvertBodyTruncation(t *testing.T) {
	long := strings.Repeat("x", MaxBlockChars+100)
	blocks := ConvertBody(long)
	if len(blocks) != 1 {
		t.Fatalf("long line should stay a single block, got %d", len(blocks))
	}
	flat := blocks[0].Flatten()
	if len(flat) != MaxBlockChars {
		t.Fatalf("flattened length = %d, want %d", len(flat), MaxBlockChars)
	}
	if !strings.HasSuffix(flat, "...") {
		t.Fatalf("truncated block missing ellipsis: %q", flat[len(flat)-10:])
	}
}

// Converting the flattened text of a converted sequence again must yield the
// same number of paragraph blocks when no markers are reintroduced.
func TestConvertBodyIdempotentOnPlainText(t *testing.T) {
	first := ConvertBody("one paragraph here\n\nand a second one")
	var flattened []string
	for _, b := range first {
		flattened = append(flattened, b.Flatten())
	}
	second := ConvertBody(strings.Join(flattened, "\n\n"))
	if len(second) != len(first) {
		t.Fatalf("reconversion changed block count: %d vs %d", len(second), len(first))
	}
}

func TestAppendReferenceBlocks(t *testing.T) {
	doc := Document{
		VideoRefs: []VideoReference{
			{Title: "Vid", Channel: "Chan", URL: "https://youtube.com/watch?v=1", Note: "why"},
		},
		ReadingRefs: []ReadingReference{
			{Title: "Book", Authors: "Author", Year: 2020, URL: "https://example.com/b"},
		},
	}
	blocks := AppendReferenceBlocks([]Block{{Type: BlockParagraph, Runs: []Run{{Text: "body"}}}}, doc)

	wantTypes := []BlockType{BlockParagraph, BlockDivider, BlockHeading, BlockBullet, BlockDivider, BlockHeading, BlockBullet}
	if len(blocks) != len(wantTypes) {
		t.Fatalf("got %d blocks: %+v", len(blocks), blocks)
	}
	for i, wt := range wantTypes {
		if blocks[i].Type != wt {
			t.Fatalf("block[%d].Type = %s, want %s", i, blocks[i].Type, wt)
		}
	}
	if blocks[2].Text != "Watch" || blocks[5].Text != "Read" {
		t.Fatalf("section headings = %q, %q", blocks[2].Text, blocks[5].Text)
	}
	if blocks[3].Runs[0].LinkURL != "https://youtube.com/watch?v=1" {
		t.Fatalf("video bullet runs = %+v", blocks[3].Runs)
	}
}

func TestAppendReferenceBlocksEmptyRefsAddNothing(t *testing.T) {
	in := []Block{{Type: BlockParagraph, Runs: []Run{{Text: "body"}}}}
	out := AppendReferenceBlocks(in, Document{})
	if len(out) != 1 {
		t.Fatalf("expected no additions, got %+v", out)
	}
}
