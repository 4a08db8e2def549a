// Package catalog maintains a cached view of the provider's model list and
// verifies that the configured models are actually served.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Model is one entry from the provider model list.
type Model struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Context int    `json:"context_length"`
}

type listResponse struct {
	Data []Model `json:"data"`
}

// Service fetches and caches the provider model catalog. Unlike the governed
// reasoning path, catalog refresh is allowed to retry with backoff: it runs
// out of band and a stale catalog is worse than a slow refresh.
type Service struct {
	apiKey     string
	baseURL    string
	refreshDur time.Duration
	hc         *http.Client

	mu        sync.RWMutex
	models    []Model
	lastFetch time.Time
}

// NewService constructs a catalog service.
func NewService(apiKey, baseURL string, refreshDur time.Duration) *Service {
	return &Service{
		apiKey:     apiKey,
		baseURL:    baseURL,
		refreshDur: refreshDur,
		hc:         &http.Client{Timeout: 30 * time.Second},
	}
}

// Models returns the cached catalog, refreshing it when stale. On refresh
// failure a non-empty cache is served as-is.
func (s *Service) Models(ctx context.Context) ([]Model, error) {
	s.mu.RLock()
	fresh := s.models != nil && time.Since(s.lastFetch) <= s.refreshDur
	cached := s.models
	s.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	if err := s.Refresh(ctx); err != nil {
		if len(cached) > 0 {
			slog.Warn("model catalog refresh failed, serving cached list",
				slog.Int("cached_count", len(cached)), slog.Any("error", err))
			return cached, nil
		}
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models, nil
}

// Has reports whether the catalog lists the given model ID.
func (s *Service) Has(ctx context.Context, modelID string) (bool, error) {
	models, err := s.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.ID == modelID {
			return true, nil
		}
	}
	return false, nil
}

// Refresh re-fetches the model list, retrying transient failures with
// exponential backoff.
func (s *Service) Refresh(ctx context.Context) error {
	var models []Model

	op := func() error {
		fetched, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		models = fetched
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return fmt.Errorf("refresh model catalog: %w", err)
	}

	s.mu.Lock()
	s.models = models
	s.lastFetch = time.Now()
	s.mu.Unlock()

	slog.Info("model catalog refreshed", slog.Int("count", len(models)))
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]Model, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.hc.Do(r)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		// Client errors will not resolve on retry.
		return nil, backoff.Permanent(fmt.Errorf("models status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode models response: %w", err))
	}
	return out.Data, nil
}
