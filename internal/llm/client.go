package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Result is a code continuation with the relay's confidence in it.
// Confidence is in [0,1]; callers gate on it.
type Result struct {
	Suggestion string
	Confidence float64
}

// Client turns code-plus-cursor into completion suggestions through an
// OpenAI-compatible chat endpoint. With no API key the client is
// disabled and every request resolves to an empty, zero-confidence
// result, which keeps autocomplete silent end to end.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *http.Client
}

func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		client:  &http.Client{},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

const systemPrompt = "You are a code completion engine. Continue the %s code at the cursor position. Respond with only the continuation, no explanations, no markdown fences."

// Complete requests a continuation of code at the cursor offset.
func (c *Client) Complete(ctx context.Context, code string, cursor int, language string) (Result, error) {
	if c.APIKey == "" {
		return Result{}, nil
	}

	if cursor < 0 || cursor > len(code) {
		cursor = len(code)
	}
	prompt := fmt.Sprintf("%s\n<cursor>\n%s", code[:cursor], code[cursor:])

	req := chatRequest{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, language)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   128,
		Temperature: 0.2,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return Result{}, nil
	}

	choice := chatResp.Choices[0]
	suggestion := strings.TrimSpace(choice.Message.Content)
	if suggestion == "" {
		return Result{}, nil
	}

	return Result{
		Suggestion: suggestion,
		Confidence: confidenceFor(choice.FinishReason),
	}, nil
}

// confidenceFor maps how the model stopped to a coarse confidence: a
// clean stop is trustworthy, a truncated answer much less so.
func confidenceFor(finishReason string) float64 {
	switch finishReason {
	case "stop":
		return 0.9
	case "length":
		return 0.6
	default:
		return 0.3
	}
}
