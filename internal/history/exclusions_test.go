package history

import (
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)

func TestBuildExclusionsEmptyHistory(t *testing.T) {
	d := BuildExclusions(nil, 7, now)
	if d.RenderedPrompt != "" {
		t.Fatalf("rendered prompt should be empty with no records, got %q", d.RenderedPrompt)
	}
	if len(d.ExcludedCategories) != 0 || len(d.ExcludedTitles) != 0 {
		t.Fatalf("sets should be empty: %+v", d)
	}
}

func TestBuildExclusionsWindowedCategories(t *testing.T) {
	records := []TopicRecord{
		{Title: "Recent", Category: "creativity", PublishedAt: now.AddDate(0, 0, -2)},
		{Title: "Old", Category: "learning", PublishedAt: now.AddDate(0, 0, -30)},
	}
	d := BuildExclusions(records, 7, now)

	if _, ok := d.ExcludedCategories["creativity"]; !ok {
		t.Fatalf("recent category missing: %+v", d.ExcludedCategories)
	}
	if _, ok := d.ExcludedCategories["learning"]; ok {
		t.Fatalf("category outside window should not be excluded: %+v", d.ExcludedCategories)
	}
	// Titles are excluded regardless of age.
	for _, title := range []string{"Recent", "Old"} {
		if _, ok := d.ExcludedTitles[title]; !ok {
			t.Fatalf("title %q missing from exclusions", title)
		}
	}
}

func TestBuildExclusionsSingleRecordInWindow(t *testing.T) {
	records := []TopicRecord{
		{Title: "Only One", Category: "psychology", PublishedAt: now.AddDate(0, 0, -1)},
	}
	d := BuildExclusions(records, 7, now)
	if len(d.ExcludedCategories) != 1 {
		t.Fatalf("categories = %+v", d.ExcludedCategories)
	}
	if _, ok := d.ExcludedCategories["psychology"]; !ok {
		t.Fatalf("categories = %+v", d.ExcludedCategories)
	}
}

func TestBuildExclusionsRenderedPrompt(t *testing.T) {
	records := []TopicRecord{
		{Title: "B Title", Category: "learning", PublishedAt: now.AddDate(0, 0, -1)},
		{Title: "A Title", Category: "creativity", PublishedAt: now.AddDate(0, 0, -1)},
	}
	d := BuildExclusions(records, 7, now)

	if !strings.Contains(d.RenderedPrompt, "AVOID these categories (used in the last 7 days): creativity, learning") {
		t.Fatalf("category line wrong or unsorted:\n%s", d.RenderedPrompt)
	}
	if !strings.Contains(d.RenderedPrompt, "NEVER repeat these past titles: A Title, B Title") {
		t.Fatalf("title line wrong or unsorted:\n%s", d.RenderedPrompt)
	}
	if !strings.Contains(d.RenderedPrompt, "UNDERREPRESENTED category") {
		t.Fatalf("rotation instruction missing:\n%s", d.RenderedPrompt)
	}
	// Category line must come before the title line.
	if strings.Index(d.RenderedPrompt, "AVOID these categories") > strings.Index(d.RenderedPrompt, "NEVER repeat") {
		t.Fatalf("rendering order wrong:\n%s", d.RenderedPrompt)
	}
}

func TestBuildExclusionsDeterministic(t *testing.T) {
	records := []TopicRecord{
		{Title: "Z", Category: "learning", PublishedAt: now.AddDate(0, 0, -1)},
		{Title: "M", Category: "psychology", PublishedAt: now.AddDate(0, 0, -2)},
		{Title: "A", Category: "creativity", PublishedAt: now.AddDate(0, 0, -3)},
	}
	first := BuildExclusions(records, 7, now).RenderedPrompt
	for i := 0; i < 20; i++ {
		if got := BuildExclusions(records, 7, now).RenderedPrompt; got != first {
			t.Fatalf("rendering not byte-identical on iteration %d", i)
		}
	}
}
