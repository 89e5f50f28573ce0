// Package pipeline orchestrates one end-to-end publication run: exclusions,
// generation, extraction, persistence, notification, narration and
// publication.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inkpress/inkpress/internal/article"
	"github.com/inkpress/inkpress/internal/history"
	"github.com/inkpress/inkpress/internal/telemetry"
)

// Step names recorded in run errors and metrics.
const (
	StepExclusions = "build_exclusions"
	StepGenerate   = "generate"
	StepPublish    = "publish"
	StepPersist    = "persist"
	StepEmail      = "send_email"
	StepNarrate    = "narrate"
)

// Run statuses. Degraded steps accumulate in Result.Errors but only a
// critical failure moves a run off the success path.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Generator produces one raw essay, honoring the exclusion prompt.
type Generator interface {
	Generate(ctx context.Context, exclusionPrompt string) (string, error)
}

// HistoryStore reads and appends the published-topic history.
type HistoryStore interface {
	ListTopicRecords(ctx context.Context) ([]history.TopicRecord, error)
	SaveTopicRecord(ctx context.Context, rec history.TopicRecord) (string, error)
}

// EssayStore persists essays and their artifacts.
type EssayStore interface {
	SaveEssay(ctx context.Context, doc article.Document, historyID string) (string, error)
	SetEssayAudio(ctx context.Context, essayID, audioURL string) error
	SetEssayExternalURL(ctx context.Context, essayID, externalURL string) error
}

// RunStore records run lifecycles for the dashboard. Failures here never
// affect the run itself.
type RunStore interface {
	CreateRun(ctx context.Context, trigger string) (string, error)
	FinishRun(ctx context.Context, id, status string, stepErrors []string) error
}

// Publisher pushes a document to the external page store.
type Publisher interface {
	PublishDocument(ctx context.Context, doc article.Document) (string, error)
}

// Notifier sends the essay email.
type Notifier interface {
	Configured() bool
	SendEssay(ctx context.Context, doc article.Document, pageURL, audioURL string) error
}

// Narrator produces and stores audio for an essay.
type Narrator interface {
	Configured() bool
	Narrate(ctx context.Context, doc article.Document, essayID string) (string, error)
}

// Options tune run behavior.
type Options struct {
	// PublisherEnabled gates the publish step entirely.
	PublisherEnabled bool
	// PublisherCritical makes a publish failure abort the run instead of
	// degrading it.
	PublisherCritical bool
	// RecentWindowDays bounds category exclusions.
	RecentWindowDays int
	// GenerateAttempts caps generation tries, including the first.
	GenerateAttempts int
	// ReadBaseURL, when set, is joined with the essay id to produce the
	// reader link included in notification emails.
	ReadBaseURL string
}

// Result is the outcome of one run.
type Result struct {
	RunID           string    `json:"run_id,omitempty"`
	Status          string    `json:"status"`
	Title           string    `json:"title,omitempty"`
	Category        string    `json:"category,omitempty"`
	WordCount       int       `json:"word_count,omitempty"`
	PageURL         string    `json:"page_url,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	EssayID         string    `json:"essay_id,omitempty"`
	HistoryID       string    `json:"history_id,omitempty"`
	EmailSent       bool      `json:"email_sent"`
	Errors          []string  `json:"errors,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Pipeline wires the collaborators for publication runs.
type Pipeline struct {
	opts      Options
	generator Generator
	extractor *article.Extractor
	histStore HistoryStore
	essays    EssayStore
	runs      RunStore
	publisher Publisher
	notifier  Notifier
	narrator  Narrator
	cache     *history.SnapshotCache
	logger    *log.Logger
	now       func() time.Time

	// newBackOff is swapped in tests to avoid real waits.
	newBackOff func() backoff.BackOff
}

// New builds a Pipeline. runs, publisher, notifier, narrator and cache may be
// nil; the corresponding steps are skipped.
func New(opts Options, gen Generator, hist HistoryStore, essays EssayStore, runs RunStore,
	pub Publisher, notifier Notifier, narrator Narrator, cache *history.SnapshotCache, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)
	}
	if opts.GenerateAttempts <= 0 {
		opts.GenerateAttempts = 3
	}
	if opts.RecentWindowDays <= 0 {
		opts.RecentWindowDays = 7
	}
	p := &Pipeline{
		opts:      opts,
		generator: gen,
		extractor: article.NewExtractor(logger),
		histStore: hist,
		essays:    essays,
		runs:      runs,
		publisher: pub,
		notifier:  notifier,
		narrator:  narrator,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
	p.newBackOff = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 2 * time.Second
		bo.Multiplier = 2
		bo.RandomizationFactor = 0
		return bo
	}
	return p
}

// Run executes the full publication flow and always returns a terminal
// Result. Critical step failures abort the run; degradable ones are recorded
// and the remaining steps still execute.
func (p *Pipeline) Run(ctx context.Context, trigger string) Result {
	res := Result{Status: StatusStarted, StartedAt: p.now()}

	if p.runs != nil {
		if id, err := p.runs.CreateRun(ctx, trigger); err != nil {
			p.logger.Printf("run bookkeeping unavailable: %v", err)
		} else {
			res.RunID = id
		}
	}

	directive := p.buildExclusions(ctx, &res)

	raw, err := p.generate(ctx, directive.RenderedPrompt)
	if err != nil {
		p.fail(&res, StepGenerate, err)
		p.finish(&res)
		return res
	}

	doc := p.extractor.Extract(raw)
	res.Title = doc.Title
	res.Category = doc.Category
	res.WordCount = doc.WordCount
	p.logger.Printf("extracted %q (%s, %d words, %d videos, %d readings)",
		doc.Title, doc.Category, doc.WordCount, len(doc.VideoRefs), len(doc.ReadingRefs))
	p.checkStructure(doc)

	if err := p.persist(ctx, doc, &res); err != nil {
		p.fail(&res, StepPersist, err)
		p.finish(&res)
		return res
	}

	p.sendEmail(ctx, doc, &res)
	p.narrate(ctx, doc, &res)

	if err := p.publish(ctx, doc, &res); err != nil {
		p.fail(&res, StepPublish, err)
		p.finish(&res)
		return res
	}

	p.finish(&res)
	return res
}

// checkStructure flags suspicious generations without failing the run.
func (p *Pipeline) checkStructure(doc article.Document) {
	if !strings.Contains(doc.Body, "#") {
		p.logger.Println("structure check: body has no section headings")
	}
	if doc.Summary == "" {
		p.logger.Println("structure check: no summary extracted")
	}
	if len(doc.VideoRefs) == 0 && len(doc.ReadingRefs) == 0 {
		p.logger.Println("structure check: no references extracted")
	}
}

func (p *Pipeline) buildExclusions(ctx context.Context, res *Result) history.Directive {
	if p.cache != nil {
		if d, ok := p.cache.Get(ctx); ok {
			p.logger.Println("using cached exclusion snapshot")
			return d
		}
	}
	records, err := p.histStore.ListTopicRecords(ctx)
	if err != nil {
		// Exclusions are advisory. A fresh run without them is better
		// than no run at all.
		p.degrade(res, StepExclusions, err)
		return history.Directive{}
	}
	d := history.BuildExclusions(records, p.opts.RecentWindowDays, p.now())
	if p.cache != nil {
		p.cache.Put(ctx, d)
	}
	return d
}

func (p *Pipeline) generate(ctx context.Context, exclusionPrompt string) (string, error) {
	var raw string
	attempt := 0
	op := func() error {
		attempt++
		var err error
		raw, err = p.generator.Generate(ctx, exclusionPrompt)
		if err != nil {
			p.logger.Printf("generation attempt %d/%d failed: %v", attempt, p.opts.GenerateAttempts, err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.opts.GenerateAttempts-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("generation failed after %d attempts: %w", attempt, err)
	}
	return raw, nil
}

func (p *Pipeline) persist(ctx context.Context, doc article.Document, res *Result) error {
	rec := history.TopicRecord{
		Title:       doc.Title,
		Category:    doc.Category,
		Tags:        doc.Tags,
		WordCount:   doc.WordCount,
		PublishedAt: p.now(),
	}
	historyID, err := p.histStore.SaveTopicRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("save topic record: %w", err)
	}
	res.HistoryID = historyID

	essayID, err := p.essays.SaveEssay(ctx, doc, historyID)
	if err != nil {
		return fmt.Errorf("save essay: %w", err)
	}
	res.EssayID = essayID

	if p.cache != nil {
		p.cache.Invalidate(ctx)
	}
	return nil
}

func (p *Pipeline) sendEmail(ctx context.Context, doc article.Document, res *Result) {
	if p.notifier == nil || !p.notifier.Configured() {
		p.logger.Println("email skipped: notifier not configured")
		return
	}
	readURL := ""
	if p.opts.ReadBaseURL != "" && res.EssayID != "" {
		readURL = strings.TrimRight(p.opts.ReadBaseURL, "/") + "/" + res.EssayID
	}
	if err := p.notifier.SendEssay(ctx, doc, readURL, ""); err != nil {
		p.degrade(res, StepEmail, err)
		return
	}
	res.EmailSent = true
}

func (p *Pipeline) narrate(ctx context.Context, doc article.Document, res *Result) {
	if p.narrator == nil || !p.narrator.Configured() {
		p.logger.Println("narration skipped: not configured")
		return
	}
	if res.EssayID == "" {
		p.logger.Println("narration skipped: no essay id")
		return
	}
	audioURL, err := p.narrator.Narrate(ctx, doc, res.EssayID)
	if err != nil {
		p.degrade(res, StepNarrate, err)
		return
	}
	res.AudioURL = audioURL
	if err := p.essays.SetEssayAudio(ctx, res.EssayID, audioURL); err != nil {
		p.degrade(res, StepNarrate, err)
	}
}

// publish pushes the document to the external page store. A nil error with an
// empty PageURL means the step was skipped or degraded.
func (p *Pipeline) publish(ctx context.Context, doc article.Document, res *Result) error {
	if !p.opts.PublisherEnabled || p.publisher == nil {
		p.logger.Println("publish skipped: publisher disabled")
		return nil
	}
	pageURL, err := p.publisher.PublishDocument(ctx, doc)
	if err != nil {
		if p.opts.PublisherCritical {
			return err
		}
		p.degrade(res, StepPublish, err)
		return nil
	}
	res.PageURL = pageURL
	if res.EssayID != "" {
		if err := p.essays.SetEssayExternalURL(ctx, res.EssayID, pageURL); err != nil {
			p.degrade(res, StepPublish, err)
		}
	}
	return nil
}

func (p *Pipeline) degrade(res *Result, step string, err error) {
	p.logger.Printf("%s failed (degraded): %v", step, err)
	telemetry.StepFailuresTotal.WithLabelValues(step).Inc()
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", step, err))
}

func (p *Pipeline) fail(res *Result, step string, err error) {
	p.logger.Printf("%s failed (critical): %v", step, err)
	telemetry.StepFailuresTotal.WithLabelValues(step).Inc()
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", step, err))
	res.Status = StatusFailed
}

func (p *Pipeline) finish(res *Result) {
	if res.Status != StatusFailed {
		res.Status = StatusSuccess
	}
	res.CompletedAt = p.now()
	res.DurationSeconds = res.CompletedAt.Sub(res.StartedAt).Seconds()
	telemetry.RunsTotal.WithLabelValues(res.Status).Inc()
	telemetry.RunDuration.Observe(res.DurationSeconds)
	if p.runs != nil && res.RunID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.runs.FinishRun(ctx, res.RunID, res.Status, res.Errors); err != nil {
			p.logger.Printf("run bookkeeping unavailable: %v", err)
		}
	}
	p.logger.Printf("run finished: status=%s title=%q errors=%d duration=%.2fs",
		res.Status, res.Title, len(res.Errors), res.DurationSeconds)
}
