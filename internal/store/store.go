package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkpress/inkpress/internal/article"
	"github.com/inkpress/inkpress/internal/history"
)

// Run statuses persisted for pipeline runs.
const (
	RunStatusStarted = "started"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

type Store struct {
	DB *sql.DB
}

// Essay is the persisted form of a generated document together with its
// publication artifacts.
type Essay struct {
	ID          string
	HistoryID   string
	Title       string
	Category    string
	Tags        []string
	Summary     string
	Body        string
	WordCount   int
	ExternalURL string
	AudioURL    string
	CreatedAt   time.Time
}

// Stats summarizes the publication history.
type Stats struct {
	TotalTopics     int            `json:"total_topics"`
	ByCategory      map[string]int `json:"by_category"`
	LastPublishedAt *time.Time     `json:"last_published_at,omitempty"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// SaveTopicRecord records a published topic in the history table and returns
// its id.
func (s *Store) SaveTopicRecord(ctx context.Context, rec history.TopicRecord) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO topic_history (title, category, tags, word_count, external_url, published_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		rec.Title, rec.Category, pq.Array(rec.Tags), rec.WordCount, rec.ExternalURL, rec.PublishedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save topic record: %w", err)
	}
	return id, nil
}

// ListTopicRecords returns the full history, newest first.
func (s *Store) ListTopicRecords(ctx context.Context) ([]history.TopicRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, category, tags, word_count, external_url, published_at
FROM topic_history ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list topic records: %w", err)
	}
	defer rows.Close()

	var out []history.TopicRecord
	for rows.Next() {
		var rec history.TopicRecord
		var tags pq.StringArray
		var url sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Category, &tags, &rec.WordCount, &url, &rec.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan topic record: %w", err)
		}
		rec.Tags = []string(tags)
		rec.ExternalURL = url.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveEssay persists a generated document and returns the essay id.
func (s *Store) SaveEssay(ctx context.Context, doc article.Document, historyID string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO essays (history_id, title, category, tags, summary, body, word_count)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		nullIfEmpty(historyID), doc.Title, doc.Category, pq.Array(doc.Tags), doc.Summary, doc.Body, doc.WordCount,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save essay: %w", err)
	}
	return id, nil
}

// SetEssayAudio attaches a narration URL to a stored essay.
func (s *Store) SetEssayAudio(ctx context.Context, essayID, audioURL string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE essays SET audio_url=$1 WHERE id=$2`, audioURL, essayID)
	if err != nil {
		return fmt.Errorf("set essay audio: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("essay not found: %s", essayID)
	}
	return nil
}

// SetEssayExternalURL records where a stored essay was published.
func (s *Store) SetEssayExternalURL(ctx context.Context, essayID, externalURL string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE essays SET external_url=$1 WHERE id=$2`, externalURL, essayID)
	if err != nil {
		return fmt.Errorf("set essay external url: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("essay not found: %s", essayID)
	}
	return nil
}

// GetEssay fetches one essay by id.
func (s *Store) GetEssay(ctx context.Context, id string) (Essay, error) {
	var e Essay
	var tags pq.StringArray
	var historyID, externalURL, audioURL sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT id, history_id, title, category, tags, summary, body, word_count, external_url, audio_url, created_at
FROM essays WHERE id=$1`, id).Scan(
		&e.ID, &historyID, &e.Title, &e.Category, &tags, &e.Summary, &e.Body, &e.WordCount, &externalURL, &audioURL, &e.CreatedAt)
	if err != nil {
		return Essay{}, fmt.Errorf("get essay: %w", err)
	}
	e.HistoryID = historyID.String
	e.Tags = []string(tags)
	e.ExternalURL = externalURL.String
	e.AudioURL = audioURL.String
	return e, nil
}

// CreateRun opens a pipeline run row and returns its id.
func (s *Store) CreateRun(ctx context.Context, trigger string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, trigger, status) VALUES ($1,$2,$3)`,
		id, trigger, RunStatusStarted,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// FinishRun records the terminal status and any step errors for a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, stepErrors []string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE pipeline_runs SET status=$1, errors=$2, finished_at=NOW() WHERE id=$3`,
		status, pq.Array(stepErrors), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LastRunStarted returns the start time of the most recent pipeline run, or
// nil when no run has ever happened.
func (s *Store) LastRunStarted(ctx context.Context) (*time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(started_at) FROM pipeline_runs`).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("last run started: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

// HistoryStats aggregates the topic history for the stats endpoint.
func (s *Store) HistoryStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByCategory: map[string]int{}}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM topic_history GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByCategory[cat] = n
		stats.TotalTopics += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	var last sql.NullTime
	if err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(published_at) FROM topic_history`).Scan(&last); err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	if last.Valid {
		stats.LastPublishedAt = &last.Time
	}
	return stats, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
