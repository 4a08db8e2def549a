// Package openrouter implements the reasoning client against the OpenRouter
// chat completions API.
package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// Client is a single-attempt reasoning client. It carries no retry or fallback
// logic of its own: the call governor above it owns all degradation decisions,
// so a failed request surfaces immediately as an error.
type Client struct {
	apiKey    string
	baseURL   string
	maxTokens int
	hc        *http.Client
}

// New constructs an OpenRouter client from config. The HTTP client timeout is
// a backstop; the governor applies the real per-call deadline via context.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("OpenRouter %s %s", r.Method, r.URL.Host)
		}),
	)
	return &Client{
		apiKey:    cfg.ProviderAPIKey,
		baseURL:   cfg.ProviderBaseURL,
		maxTokens: cfg.MaxResponseTokens,
		hc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Invoke performs one chat completion and returns the raw message content.
func (c *Client) Invoke(ctx domain.Context, modelID, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: PROVIDER_API_KEY missing", domain.ErrInvalidArgument)
	}

	body := map[string]any{
		"model":       modelID,
		"temperature": 0.2,
		"max_tokens":  c.maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)

	start := time.Now()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(r)
	observability.ProviderRequestsTotal.WithLabelValues("openrouter").Inc()
	observability.ProviderRequestDuration.WithLabelValues("openrouter").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("provider rate limited",
			slog.String("provider", "openrouter"),
			slog.String("model", modelID),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
		return "", fmt.Errorf("%w: status 429", domain.ErrUpstreamRateLimit)
	case resp.StatusCode >= 400:
		snippet := string(bodyBytes)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		slog.Warn("provider error status",
			slog.String("provider", "openrouter"),
			slog.String("model", modelID),
			slog.Int("status", resp.StatusCode),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", snippet))
		return "", fmt.Errorf("chat status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty choices from model %s", modelID)
	}
	return out.Choices[0].Message.Content, nil
}
