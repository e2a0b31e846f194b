package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/kilianp07/courier-dispatch/auth"
)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

type scoresRequest struct {
	IDs []string `json:"ids"`
}

type scoresResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// HTTPSource asks a remote service for scores with
// POST {"ids": [...]} and expects {"scores": {"<id>": <number>}} back.
type HTTPSource struct {
	client *http.Client
	url    string
}

// NewHTTPSource builds a source for cfg. Requests carry an OAuth2 bearer
// token when cfg.Auth is set.
func NewHTTPSource(ctx context.Context, cfg Config) *HTTPSource {
	return NewHTTPSourceWithClient(auth.NewHTTPClient(ctx, cfg.Auth, cfg.Timeout()), cfg.URL)
}

// NewHTTPSourceWithClient wraps an existing client.
func NewHTTPSourceWithClient(client *http.Client, url string) *HTTPSource {
	return &HTTPSource{client: client, url: url}
}

// Scores returns the scores the service knows among ids. Entries for ids
// that were not asked for are dropped.
func (s *HTTPSource) Scores(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	body, err := json.Marshal(scoresRequest{IDs: ids})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reliability request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reliability request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("reliability service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var sr scoresResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode reliability response: %w", err)
	}
	for _, id := range ids {
		if v, ok := sr.Scores[id]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[id] = v
		}
	}
	return out, nil
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
