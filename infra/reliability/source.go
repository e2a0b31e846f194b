package reliability

import (
	"context"
	"io"
)

// Source is a reliability backend. It satisfies dispatch.ReliabilitySource.
type Source interface {
	Scores(ctx context.Context, ids []string) (map[string]float64, error)
	io.Closer
}

// NewSource opens the backend selected by cfg. It returns nil for the none
// backend.
func NewSource(ctx context.Context, cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisSource(cfg), nil
	case BackendHTTP:
		return NewHTTPSource(ctx, cfg), nil
	default:
		return nil, nil
	}
}
