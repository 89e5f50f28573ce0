package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/inkpress/inkpress/internal/article"
	"github.com/inkpress/inkpress/internal/history"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestSaveTopicRecord(t *testing.T) {
	st, mock := newMockStore(t)

	published := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := history.TopicRecord{
		Title:       "The Slow Architecture of Humility",
		Category:    "psychology",
		Tags:        []string{"ego", "habits"},
		WordCount:   5200,
		ExternalURL: "https://notion.so/abc",
		PublishedAt: published,
	}

	query := regexp.QuoteMeta(`
INSERT INTO topic_history (title, category, tags, word_count, external_url, published_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`)
	mock.ExpectQuery(query).
		WithArgs(rec.Title, rec.Category, pq.Array(rec.Tags), rec.WordCount, rec.ExternalURL, published).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("hist-1"))

	id, err := st.SaveTopicRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("SaveTopicRecord: %v", err)
	}
	if id != "hist-1" {
		t.Fatalf("expected id hist-1, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTopicRecords(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "category", "tags", "word_count", "external_url", "published_at"}).
		AddRow("h2", "Feedback Loops", "systems-thinking", pq.StringArray{"systems"}, 4800, "https://notion.so/b", now).
		AddRow("h1", "Spotlight Effect", "psychology", pq.StringArray{"bias", "status"}, 5100, nil, now.AddDate(0, 0, -10))

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT id, title, category, tags, word_count, external_url, published_at
FROM topic_history ORDER BY published_at DESC`)).
		WillReturnRows(rows)

	recs, err := st.ListTopicRecords(context.Background())
	if err != nil {
		t.Fatalf("ListTopicRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Title != "Feedback Loops" || recs[1].Title != "Spotlight Effect" {
		t.Fatalf("unexpected order: %q, %q", recs[0].Title, recs[1].Title)
	}
	if recs[1].ExternalURL != "" {
		t.Fatalf("expected empty url for NULL column, got %q", recs[1].ExternalURL)
	}
	if len(recs[1].Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", recs[1].Tags)
	}
}

func TestSaveEssayAndSetAudio(t *testing.T) {
	st, mock := newMockStore(t)

	doc := article.Document{
		Title:     "Feedback Loops",
		Category:  "systems-thinking",
		Tags:      []string{"systems", "compounding"},
		Summary:   "Small effects compound.",
		Body:      "# Feedback Loops\n\nBody.",
		WordCount: 4800,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO essays (history_id, title, category, tags, summary, body, word_count)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`)).
		WithArgs(nullIfEmpty("hist-1"), doc.Title, doc.Category, pq.Array(doc.Tags), doc.Summary, doc.Body, doc.WordCount).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("essay-1"))

	id, err := st.SaveEssay(context.Background(), doc, "hist-1")
	if err != nil {
		t.Fatalf("SaveEssay: %v", err)
	}
	if id != "essay-1" {
		t.Fatalf("expected essay-1, got %q", id)
	}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE essays SET audio_url=$1 WHERE id=$2`)).
		WithArgs("https://cdn.example.com/audio/essay-1.mp3", "essay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SetEssayAudio(context.Background(), "essay-1", "https://cdn.example.com/audio/essay-1.mp3"); err != nil {
		t.Fatalf("SetEssayAudio: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE essays SET external_url=$1 WHERE id=$2`)).
		WithArgs("https://notion.so/p", "essay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SetEssayExternalURL(context.Background(), "essay-1", "https://notion.so/p"); err != nil {
		t.Fatalf("SetEssayExternalURL: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetEssayAudioMissingEssay(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE essays SET audio_url=$1 WHERE id=$2`)).
		WithArgs("https://cdn/x.mp3", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.SetEssayAudio(context.Background(), "nope", "https://cdn/x.mp3"); err == nil {
		t.Fatal("expected error for missing essay")
	}
}

func TestRunLifecycle(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pipeline_runs (id, trigger, status) VALUES ($1,$2,$3)`)).
		WithArgs(sqlmock.AnyArg(), "api", RunStatusStarted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := st.CreateRun(context.Background(), "api")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run id")
	}

	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE pipeline_runs SET status=$1, errors=$2, finished_at=NOW() WHERE id=$3`)).
		WithArgs(RunStatusSuccess, pq.Array([]string{"send_email: smtp timeout"}), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinishRun(context.Background(), id, RunStatusSuccess, []string{"send_email: smtp timeout"}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHistoryStats(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT category, COUNT(*) FROM topic_history GROUP BY category`)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("psychology", 4).
			AddRow("systems-thinking", 2))

	last := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(published_at) FROM topic_history`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(last))

	stats, err := st.HistoryStats(context.Background())
	if err != nil {
		t.Fatalf("HistoryStats: %v", err)
	}
	if stats.TotalTopics != 6 {
		t.Fatalf("expected 6 topics, got %d", stats.TotalTopics)
	}
	if stats.ByCategory["psychology"] != 4 {
		t.Fatalf("unexpected category counts: %v", stats.ByCategory)
	}
	if stats.LastPublishedAt == nil || !stats.LastPublishedAt.Equal(last) {
		t.Fatalf("unexpected last published: %v", stats.LastPublishedAt)
	}
}

func TestHistoryStatsEmpty(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT category, COUNT(*) FROM topic_history GROUP BY category`)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(published_at) FROM topic_history`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	stats, err := st.HistoryStats(context.Background())
	if err != nil {
		t.Fatalf("HistoryStats: %v", err)
	}
	if stats.TotalTopics != 0 || stats.LastPublishedAt != nil {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}
