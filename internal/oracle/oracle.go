// Package oracle is the classification client. It sends one structured
// chat-completion request per text and validates the JSON the model
// returns before anything downstream sees it.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/metrics"
)

const systemPrompt = `You are a crypto social media analyst. Classify the sentiment of posts about tokens, presales, and on-chain projects. Respond with JSON only, no prose.`

const userPromptTemplate = `Analyze this post and respond with a JSON object of exactly this shape:
{"sentiment": "positive"|"negative"|"neutral", "score": <0..1 significance>, "topics": [<strings>], "summary": "<one sentence>"}

Post:
%s`

// Config configures the oracle client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient creates an oracle client.
func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  client,
	}
}

var _ domain.Oracle = (*Client)(nil)

// Classify sends one structured request for the given text.
// Malformed model output is a hard failure for the item.
func (c *Client) Classify(ctx context.Context, text string) (domain.Classification, error) {
	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf(userPromptTemplate, text)},
		},
		"temperature":     0.3,
		"response_format": map[string]string{"type": "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()
		return domain.Classification{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()
		respBody, _ := io.ReadAll(resp.Body)
		return domain.Classification{}, fmt.Errorf("oracle returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()
		return domain.Classification{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()
		return domain.Classification{}, fmt.Errorf("no choices in oracle response")
	}

	classification, err := parseClassification(result.Choices[0].Message.Content)
	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues("malformed").Inc()
		return domain.Classification{}, err
	}

	metrics.OracleCallsTotal.WithLabelValues("ok").Inc()
	return classification, nil
}

// parseClassification validates the model output against the expected
// schema, tolerating markdown code fences around the JSON.
func parseClassification(text string) (domain.Classification, error) {
	text = stripCodeFences(text)
	if text == "" {
		return domain.Classification{}, fmt.Errorf("empty oracle output")
	}

	var c domain.Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return domain.Classification{}, fmt.Errorf("malformed oracle JSON: %w", err)
	}

	if !c.Sentiment.Valid() {
		return domain.Classification{}, fmt.Errorf("invalid sentiment %q", c.Sentiment)
	}
	if c.Score < 0 || c.Score > 1 {
		return domain.Classification{}, fmt.Errorf("score %v out of range [0,1]", c.Score)
	}
	return c, nil
}

// stripCodeFences removes a ```json ... ``` wrapper if present.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
