// Package narrate turns essay bodies into MP3 narration and stores the audio
// in an S3-compatible bucket.
package narrate

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/inkpress/inkpress/config"
	"github.com/inkpress/inkpress/internal/article"
)

// Synthesizer produces speech audio for a text. Implemented by the LLM
// client.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Narrator generates and stores audio narration for essays.
type Narrator struct {
	cfg    config.NarrationConfig
	tts    Synthesizer
	store  *minio.Client
	logger *log.Logger
}

// New creates a Narrator. The object store client is built lazily so a
// misconfigured narration section only fails when narration actually runs.
func New(cfg config.NarrationConfig, tts Synthesizer, logger *log.Logger) *Narrator {
	if logger == nil {
		logger = log.New(os.Stdout, "[NARRATE] ", log.LstdFlags)
	}
	return &Narrator{cfg: cfg, tts: tts, logger: logger}
}

// Configured reports whether narration can run at all.
func (n *Narrator) Configured() bool {
	return n.cfg.Configured()
}

// Narrate cleans the document body for speech, synthesizes audio and uploads
// it keyed by essay id. It returns the public URL of the stored file.
func (n *Narrator) Narrate(ctx context.Context, doc article.Document, essayID string) (string, error) {
	if !n.Configured() {
		return "", fmt.Errorf("narration not configured")
	}
	if essayID == "" {
		return "", fmt.Errorf("essay id required for narration key")
	}

	text := CleanForSpeech(doc.Body)
	if text == "" {
		return "", fmt.Errorf("nothing to narrate")
	}

	audio, err := n.tts.Synthesize(ctx, text, n.cfg.Voice)
	if err != nil {
		return "", fmt.Errorf("synthesize narration: %w", err)
	}

	key := fmt.Sprintf("audio/%s/%s.mp3", time.Now().UTC().Format("2006/01"), essayID)
	if err := n.upload(ctx, key, audio); err != nil {
		return "", err
	}
	url := n.publicURL(key)
	n.logger.Printf("stored narration for %q at %s (%d bytes)", doc.Title, url, len(audio))
	return url, nil
}

func (n *Narrator) upload(ctx context.Context, key string, audio []byte) error {
	client, err := n.client()
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, n.cfg.Bucket, key, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType:  "audio/mpeg",
		CacheControl: "max-age=31536000",
	})
	if err != nil {
		return fmt.Errorf("upload narration: %w", err)
	}
	return nil
}

func (n *Narrator) client() (*minio.Client, error) {
	if n.store != nil {
		return n.store, nil
	}
	client, err := minio.New(n.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(n.cfg.AccessKey, n.cfg.SecretKey, ""),
		Secure: n.cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	n.store = client
	return client, nil
}

func (n *Narrator) publicURL(key string) string {
	if n.cfg.PublicBaseURL != "" {
		return strings.TrimRight(n.cfg.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if n.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, n.cfg.Endpoint, n.cfg.Bucket, key)
}

var (
	headerMarks    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldStars      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicStars    = regexp.MustCompile(`\*([^*]+)\*`)
	boldUnders     = regexp.MustCompile(`__([^_]+)__`)
	italicUnders   = regexp.MustCompile(`_([^_]+)_`)
	mdLinks        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	inlineCode     = regexp.MustCompile("`([^`]+)`")
	codeFences     = regexp.MustCompile("(?s)```.*?```")
	quoteMarks     = regexp.MustCompile(`(?m)^>\s+`)
	horizontalRule = regexp.MustCompile(`(?m)^(?:-{3,}|\*{3,})$`)
	bulletMarks    = regexp.MustCompile(`(?m)^[-*+]\s+`)
	numberedMarks  = regexp.MustCompile(`(?m)^\d+\.\s+`)
	manyNewlines   = regexp.MustCompile(`\n{3,}`)
	runSpaces      = regexp.MustCompile(`[ \t]+`)
)

// CleanForSpeech strips markdown formatting that reads badly aloud: headers
// become plain sentences, links keep only their text, code blocks drop
// entirely.
func CleanForSpeech(markdown string) string {
	text := codeFences.ReplaceAllString(markdown, "")
	text = headerMarks.ReplaceAllString(text, "")
	text = boldStars.ReplaceAllString(text, "$1")
	text = italicStars.ReplaceAllString(text, "$1")
	text = boldUnders.ReplaceAllString(text, "$1")
	text = italicUnders.ReplaceAllString(text, "$1")
	text = mdLinks.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = quoteMarks.ReplaceAllString(text, "")
	text = horizontalRule.ReplaceAllString(text, "")
	text = bulletMarks.ReplaceAllString(text, "")
	text = numberedMarks.ReplaceAllString(text, "")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = runSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
