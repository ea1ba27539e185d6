package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ngmigrate/internal/apperr"

	"github.com/sirupsen/logrus"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements Client using the chat completions API.
type OpenAIClient struct {
	apiKey          string
	model           string
	temperature     float64
	baseURL         string
	maxPromptLength int
	client          *http.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey, model string, temperature float64) *OpenAIClient {
	return &OpenAIClient{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		baseURL:     openAIBaseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion with a system and a user message.
func (c *OpenAIClient) Complete(ctx context.Context, systemMessage, userPrompt string) (string, error) {
	const op = "openai chat completion"

	messages := make([]openAIMessage, 0, 2)
	if systemMessage != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: systemMessage})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: truncatePrompt(userPrompt, c.maxPromptLength)})

	payload, err := json.Marshal(openAIRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", upstreamError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamError(ctx, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Newf(apperr.UpstreamUnavailable, op, "status %d", resp.StatusCode).
			WithDetails(truncate(string(body), 2000))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperr.New(apperr.InvalidUpstreamResponse, op, err).WithDetails(truncate(string(body), 2000))
	}
	if parsed.Error != nil {
		return "", apperr.Newf(apperr.UpstreamUnavailable, op, "%s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.Newf(apperr.InvalidUpstreamResponse, op, "no choices returned")
	}

	logrus.Debugf("OpenAI finished with reason %q", parsed.Choices[0].FinishReason)
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Model returns the model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Backend returns "openai".
func (c *OpenAIClient) Backend() string { return "openai" }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
