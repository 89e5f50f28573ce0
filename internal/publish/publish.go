// Package publish pushes converted documents to a Notion workspace through
// the public REST API.
package publish

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
	"github.com/inkpress/inkpress/internal/article"
)

const (
	notionVersion = "2022-06-28"
	pageIcon      = "📚"

	// The API accepts at most 100 children per pages.create or
	// blocks.children.append call. Longer documents are split across one
	// create and as many appends as needed.
	maxBlocksPerCall = 100
)

// Client talks to the Notion REST API.
type Client struct {
	apiKey       string
	baseURL      string
	parentPageID string
	httpClient   *http.Client
	logger       *log.Logger
}

// New creates a publisher client from config.
func New(cfg config.PublisherConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stdout, "[PUBLISH] ", log.LstdFlags)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com/v1"
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		parentPageID: cfg.ParentPageID,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}
}

type createPageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PublishDocument converts the document body, appends reference sections and
// pushes everything as one page. It returns the page URL.
func (c *Client) PublishDocument(ctx context.Context, doc article.Document) (string, error) {
	blocks := article.ConvertBody(doc.Body)
	blocks = article.AppendReferenceBlocks(blocks, doc)

	first := blocks
	if len(first) > maxBlocksPerCall {
		first = blocks[:maxBlocksPerCall]
	}
	pageID, pageURL, err := c.CreatePage(ctx, doc.Title, first)
	if err != nil {
		return "", err
	}

	for offset := maxBlocksPerCall; offset < len(blocks); offset += maxBlocksPerCall {
		end := offset + maxBlocksPerCall
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := c.AppendBlocks(ctx, pageID, blocks[offset:end]); err != nil {
			return "", fmt.Errorf("append blocks %d-%d: %w", offset, end, err)
		}
	}

	c.logger.Printf("published %q as %d blocks: %s", doc.Title, len(blocks), pageURL)
	return pageURL, nil
}

// CreatePage creates a page under the configured parent and returns its id
// and URL. Callers must keep the initial children within the per-call limit.
func (c *Client) CreatePage(ctx context.Context, title string, blocks []article.Block) (string, string, error) {
	body := map[string]interface{}{
		"parent": map[string]interface{}{"page_id": c.parentPageID},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"title": []interface{}{
					map[string]interface{}{"text": map[string]interface{}{"content": title}},
				},
			},
		},
		"icon":     map[string]interface{}{"type": "emoji", "emoji": pageIcon},
		"children": wireBlocks(blocks),
	}

	var out createPageResponse
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return "", "", fmt.Errorf("create page: %w", err)
	}
	return out.ID, out.URL, nil
}

// AppendBlocks appends children to an existing page or block.
func (c *Client) AppendBlocks(ctx context.Context, pageID string, blocks []article.Block) error {
	body := map[string]interface{}{"children": wireBlocks(blocks)}
	if err := c.do(ctx, http.MethodPatch, "/blocks/"+pageID+"/children", body, nil); err != nil {
		return err
	}
	c.logger.Printf("appended %d blocks to page %s", len(blocks), pageID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func wireBlocks(blocks []article.Block) []interface{} {
	out := make([]interface{}, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, wireBlock(b))
	}
	return out
}

func wireBlock(b article.Block) map[string]interface{} {
	switch b.Type {
	case article.BlockDivider:
		return map[string]interface{}{
			"object":  "block",
			"type":    "divider",
			"divider": map[string]interface{}{},
		}
	case article.BlockHeading:
		key := fmt.Sprintf("heading_%d", b.Level)
		return map[string]interface{}{
			"object": "block",
			"type":   key,
			key: map[string]interface{}{
				"rich_text": richText(b),
			},
		}
	case article.BlockCallout:
		icon := b.Icon
		if icon == "" {
			icon = article.DefaultCalloutIcon
		}
		return map[string]interface{}{
			"object": "block",
			"type":   "callout",
			"callout": map[string]interface{}{
				"rich_text": richText(b),
				"icon":      map[string]interface{}{"type": "emoji", "emoji": icon},
			},
		}
	case article.BlockBullet:
		return map[string]interface{}{
			"object": "block",
			"type":   "bulleted_list_item",
			"bulleted_list_item": map[string]interface{}{
				"rich_text": richText(b),
			},
		}
	default:
		return map[string]interface{}{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]interface{}{
				"rich_text": richText(b),
			},
		}
	}
}

func richText(b article.Block) []interface{} {
	runs := b.Runs
	if len(runs) == 0 {
		runs = []article.Run{{Text: b.Text}}
	}
	out := make([]interface{}, 0, len(runs))
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		text := map[string]interface{}{"content": r.Text}
		if r.LinkURL != "" {
			text["link"] = map[string]interface{}{"url": r.LinkURL}
		}
		out = append(out, map[string]interface{}{"type": "text", "text": text})
	}
	return out
}
