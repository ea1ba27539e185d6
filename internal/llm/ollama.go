package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"ngmigrate/internal/apperr"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"
)

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	client          *ollama.Ollama
	model           string
	temperature     float64
	maxPromptLength int
}

// NewOllamaClient creates a new client for Ollama.
func NewOllamaClient(host, model string, temperature float64, maxPromptLength int) (*OllamaClient, error) {
	ollamaURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	client := ollama.New(*ollamaURL)

	logrus.Infof("Using Ollama client for host: %s", host)
	logrus.Infof("Using Ollama model: %s", model)

	return &OllamaClient{
		client:          client,
		model:           model,
		temperature:     temperature,
		maxPromptLength: maxPromptLength,
	}, nil
}

type ollamaResult struct {
	text string
	err  error
}

// Complete sends the request with Generate. The library call is not
// context-aware, so it runs in its own goroutine and ctx bounds the wait.
func (oc *OllamaClient) Complete(ctx context.Context, systemMessage, userPrompt string) (string, error) {
	userPrompt = truncatePrompt(userPrompt, oc.maxPromptLength)

	done := make(chan ollamaResult, 1)
	go func() {
		text, err := oc.generate(systemMessage, userPrompt)
		done <- ollamaResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", upstreamError(ctx, "ollama generate", ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

func (oc *OllamaClient) generate(systemMessage, userPrompt string) (string, error) {
	res, err := oc.client.Generate(
		oc.client.Generate.WithModel(oc.model),
		oc.client.Generate.WithSystem(systemMessage),
		oc.client.Generate.WithPrompt(userPrompt),
		oc.client.Generate.WithTemperature(oc.temperature),
	)
	if err != nil {
		return "", apperr.New(apperr.UpstreamUnavailable, "ollama generate", err)
	}

	if !res.Done {
		return "", apperr.Newf(apperr.UpstreamUnavailable, "ollama generate", "request not finished (unexpected streaming behaviour)")
	}
	if res.Response == "" {
		return "", apperr.Newf(apperr.InvalidUpstreamResponse, "ollama generate", "empty response marked as done")
	}

	logrus.Debug("Response received from Ollama.")
	return strings.TrimSpace(res.Response), nil
}

// Model returns the model identifier.
func (oc *OllamaClient) Model() string { return oc.model }

// Backend returns "ollama".
func (oc *OllamaClient) Backend() string { return "ollama" }
