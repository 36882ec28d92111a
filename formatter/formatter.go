// Package formatter rewrites raw transcripts for a delivery mode using a
// cloud LLM. Formatting is best-effort: every failure path returns the raw
// transcript unchanged, so callers never need to handle an error.
package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"murmur/log"
)

// Formatter rewrites raw into the style of mode. It is total: on any
// internal failure it returns raw unchanged.
type Formatter interface {
	Format(ctx context.Context, raw, mode string) string
}

// LLM formats transcripts through an OpenAI-style chat completions endpoint.
// A zero API key disables it, turning Format into the identity function.
type LLM struct {
	apiKey  string
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client
}

const (
	defaultAPIURL  = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 15 * time.Second

	// Keep output bounded relative to the dictated text; rewriting should
	// not grow the transcript much.
	tokensPerChar = 2
	minMaxTokens  = 256
)

func NewLLM(apiKey, apiURL, model string, timeout time.Duration) *LLM {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LLM{
		apiKey:  apiKey,
		apiURL:  apiURL,
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (l *LLM) Format(ctx context.Context, raw, mode string) string {
	if l.apiKey == "" {
		return raw
	}

	out, err := l.rewrite(ctx, raw, mode)
	if err != nil {
		log.Warnf("formatter: falling back to raw transcript: %v", err)
		return raw
	}
	return out
}

func (l *LLM) rewrite(ctx context.Context, raw, mode string) (string, error) {
	maxTokens := len(raw) * tokensPerChar
	if maxTokens < minMaxTokens {
		maxTokens = minMaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(mode, raw)},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", l.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("llm API error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cResp chatResponse
	if err := json.Unmarshal(data, &cResp); err != nil {
		return "", fmt.Errorf("llm response parse error: %w", err)
	}
	if len(cResp.Choices) == 0 {
		return "", fmt.Errorf("llm response has no choices")
	}

	out := strings.TrimSpace(cResp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("llm returned empty rewrite")
	}
	return out, nil
}
