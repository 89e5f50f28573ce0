package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/inkpress/inkpress/config"
)

const (
	chatCompletionsPath = "/chat/completions"
	speechPath          = "/audio/speech"

	// OpenAI speech requests cap input at 4096 characters. Longer texts are
	// chunked on paragraph boundaries and the MP3 parts concatenated.
	maxSpeechChars = 4096
)

const systemPrompt = `You are a brilliant writer and deep thinker. You write like the best essayists: clear, engaging, profound. Your writing flows naturally, never formulaic.

You explore ideas with genuine curiosity and intellectual depth. You use vivid examples, stories, and analogies. You make complex ideas feel simple and obvious.

Write for someone intelligent but busy. Respect their time, reward their attention.

Always obey the user's last message as the primary instruction.`

const userPrompt = `Write a deeply researched, eloquent longform essay.

THE CRAFT
- 5,000-7,000 words of flowing prose. No numbered sections. No "Here are 5 tips". No headers like "Introduction" or "Conclusion". Just an eloquent flow.
- Start with a vivid scene, a paradox, or a question that pulls the reader in.
- Weave in research naturally. Let evidence appear as part of the story.
- Use concrete examples, mini-stories, and surprising analogies. Abstract ideas need flesh.
- Write with warmth, wit, and personality.

TOPICS: pick one topic within psychology, decision-making, productivity, communication, relationships, creativity, learning, or systems-thinking that a founder-engineer would genuinely benefit from understanding deeply.

AT THE VERY END, append this exact format (we extract it with regex):

---
METADATA:
Title: [Your title]
Category: [One of: psychology, decision-making, productivity, communication, relationships, creativity, learning, systems-thinking]
Tags: [3-5 relevant tags]
Summary: [One sentence core insight]
---

YOUTUBE:
- "Video Title" by Channel: https://youtube.com/watch?v=xxxxx - Why worth watching
(3-5 videos with real URLs)

RESOURCES:
- "Title" by Author (Year): https://... - One line why
(5-10 items with real URLs)

Write the best essay you've ever written.`

// Client talks to an OpenAI-compatible API for essay generation and speech
// synthesis.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	ttsModel    string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *log.Logger
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// New creates a client from config.
func New(cfg config.LLMConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stdout, "[LLM] ", log.LstdFlags)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		ttsModel:    cfg.TTSModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// Generate produces one raw essay. The exclusion prompt, when non-empty, is
// prepended to the user instruction so topic diversity constraints arrive
// before the writing brief.
func (c *Client) Generate(ctx context.Context, exclusionPrompt string) (string, error) {
	prompt := userPrompt
	if exclusionPrompt != "" {
		prompt = exclusionPrompt + "\n\n" + userPrompt
		c.logger.Println("added topic exclusions from history")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+chatCompletionsPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	content := out.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return content, nil
}

// Synthesize converts text to MP3 audio. Texts over the per-request limit are
// split on paragraph boundaries and the parts concatenated, which is valid
// for MP3 streams.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if len(text) <= maxSpeechChars {
		return c.speechRequest(ctx, text, voice)
	}

	chunks := splitParagraphs(text, maxSpeechChars)
	c.logger.Printf("text length %d exceeds %d, split into %d chunks", len(text), maxSpeechChars, len(chunks))

	var buf bytes.Buffer
	for i, chunk := range chunks {
		part, err := c.speechRequest(ctx, chunk, voice)
		if err != nil {
			return nil, fmt.Errorf("speech chunk %d/%d: %w", i+1, len(chunks), err)
		}
		buf.Write(part)
	}
	return buf.Bytes(), nil
}

func (c *Client) speechRequest(ctx context.Context, text, voice string) ([]byte, error) {
	reqBody := speechRequest{
		Model:          c.ttsModel,
		Voice:          voice,
		Input:          text,
		ResponseFormat: "mp3",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+speechPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// splitParagraphs packs paragraphs into chunks of at most max characters. A
// single paragraph longer than max becomes its own oversized chunk rather
// than being cut mid-sentence.
func splitParagraphs(text string, max int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder
	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+len(para)+2 > max {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
