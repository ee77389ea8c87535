package descriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"semsearch/internal/logging"
)

const (
	defaultModel = "claude-sonnet-4-5-20250929"
	maxRetries   = 3
)

// anthropicAPIURLOverride lets tests point the generator at a local test
// server; production code never sets it.
var anthropicAPIURLOverride string

func anthropicAPIURL() string {
	if anthropicAPIURLOverride != "" {
		return anthropicAPIURLOverride
	}
	return "https://api.anthropic.com/v1/messages"
}

const systemPrompt = "You write short descriptions of Magento 2 di.xml files for a semantic code search index. Favor the specific class names, interfaces and DI patterns a developer would search for over generic summary language."

const userPromptTemplate = `Describe the dependency-injection wiring in this di.xml file in 2-3 sentences, for someone searching a codebase rather than reading the XML directly.

Cover what applies:
- preferences, virtual types and argument injection it declares
- which classes are intercepted by plugins, and what the plugin changes
- the Magento module/subsystem and area (global, frontend, adminhtml, webapi) it belongs to

Name classes and interfaces explicitly. Don't restate the file path. Don't quote XML.

File: %s
Content:
%s`

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generator produces descriptions via the Anthropic Messages API.
type Generator struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGenerator builds a Generator. An empty model falls back to the default.
func NewGenerator(apiKey, model string) *Generator {
	if model == "" {
		model = defaultModel
	}
	return &Generator{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Report summarizes one Describe run.
type Report struct {
	TotalFiles     int
	Generated      int
	Skipped        int
	Errors         int
	DescribedPaths []string
}

// Describe generates descriptions for every di.xml file in files (keyed by
// relative path, valued by content), skipping any whose content hash
// already matches what's stored in db unless force is set.
func (g *Generator) Describe(ctx context.Context, files map[string]string, db *DB, force bool) (Report, error) {
	if g.apiKey == "" {
		return Report{}, fmt.Errorf("no API key configured for description generation")
	}

	report := Report{TotalFiles: len(files)}

	for path, content := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		hash := ComputeHash(content)
		if !force {
			if existing, ok, err := db.Get(ctx, path); err == nil && ok && existing.Hash == hash {
				logSkipped(path)
				report.Skipped++
				continue
			}
		}

		description, err := g.generateOne(ctx, path, content)
		if err != nil {
			logging.DescriptionsDebug("describing %s failed: %v", path, err)
			report.Errors++
			continue
		}

		fd := FileDescription{Path: path, Hash: hash, Description: description, Model: g.model, Timestamp: time.Now().Unix()}
		if err := db.Upsert(ctx, fd); err != nil {
			logging.DescriptionsDebug("saving description for %s failed: %v", path, err)
			report.Errors++
			continue
		}

		report.Generated++
		report.DescribedPaths = append(report.DescribedPaths, path)
	}

	return report, nil
}

// generateOne calls the Anthropic Messages API for a single file, retrying
// with exponential backoff (2s/4s/8s) on 429 and 5xx responses.
func (g *Generator) generateOne(ctx context.Context, path, content string) (string, error) {
	body := anthropicRequest{
		Model:     g.model,
		MaxTokens: 300,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, path, content)},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			logging.DescriptionsDebug("retrying describe for %s in %s (attempt %d/%d)", path, wait, attempt, maxRetries)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL(), bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("x-api-key", g.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API returned %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("parsing API response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Content) == 0 {
			return "", fmt.Errorf("no content returned")
		}
		return strings.TrimSpace(parsed.Content[0].Text), nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
