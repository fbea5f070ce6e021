package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"taskforge/config"
)

const anthropicVersion = "2023-06-01"

// ErrUnavailable is returned when no text-generation backend is configured.
// Steps decide per their metadata whether this degrades or hard-fails.
var ErrUnavailable = serr.New("text generation capability unavailable")

// GenerateOptions control a single generation call
type GenerateOptions struct {
	MaxTokens      int
	Temperature    float64
	ResponseFormat string // "json" hints the model to emit a JSON object
}

// Client handles communication with the Anthropic messages API
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

// NewClient creates a new text-generation client from configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiURL:     cfg.AnthropicAPIURL,
		apiKey:     cfg.AnthropicAPIKey,
		model:      cfg.Model,
	}
}

// Available reports whether the client can reach a backend at all
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// message mirrors the Anthropic messages API request shape
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createMessageRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
}

type createMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
}

// Generate sends a prompt and returns the model's text output.
// Transient HTTP failures (429, 5xx, network) are retried with
// exponential backoff; other failures return immediately.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	system := ""
	if opts.ResponseFormat == "json" {
		system = "Respond with a single valid JSON object and nothing else."
	}

	reqBody, err := json.Marshal(createMessageRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		System:      system,
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to marshal request")
	}

	var text string
	operation := func() error {
		out, err := c.send(ctx, reqBody)
		if err != nil {
			return err
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return text, nil
}

// send performs one HTTP round trip. Retryable failures are returned as
// plain errors; permanent ones are wrapped with backoff.Permanent.
func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(serr.Wrap(err, "failed to create request"))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// network errors are worth retrying
		return "", serr.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serr.Wrap(err, "failed to read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		logger.Debug("Retryable API response", "status", fmt.Sprintf("%d", resp.StatusCode))
		return "", serr.New(fmt.Sprintf("API returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(serr.New(fmt.Sprintf("API returned status %d: %s",
			resp.StatusCode, string(respBody))))
	}

	var parsed createMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(serr.Wrap(err, "failed to parse API response"))
	}

	var out bytes.Buffer
	for _, content := range parsed.Content {
		if content.Type == "text" {
			out.WriteString(content.Text)
		}
	}
	if out.Len() == 0 {
		return "", backoff.Permanent(serr.New("empty response from model"))
	}
	return out.String(), nil
}
