package narrate

import (
	"strings"
	"testing"
)

func TestCleanForSpeech(t *testing.T) {
	in := "# Title\n\nSome **bold** and *italic* and __more__ and _em_ text.\n\n" +
		"> A quote line\n\n- bullet one\n- bullet two\n\n1. first\n2. second\n\n" +
		"A [link](https://example.com) and `code`.\n\n```\nfenced code\n```\n\n---\n\nEnd."

	out := CleanForSpeech(in)

	for _, banned := range []string{"#", "**", "__", "](", "`", "---", "> "} {
		if strings.Contains(out, banned) {
			t.Fatalf("output still contains %q:\n%s", banned, out)
		}
	}
	for _, want := range []string{"Title", "bold", "italic", "A quote line", "bullet one", "first", "link", "End."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "fenced code") {
		t.Fatalf("code fence content should be dropped:\n%s", out)
	}
	if strings.Contains(out, "\n\n\n") {
		t.Fatal("runs of blank lines should collapse")
	}
}

func TestCleanForSpeechEmpty(t *testing.T) {
	if got := CleanForSpeech("   \n\n  "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
