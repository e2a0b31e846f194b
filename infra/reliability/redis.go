// Package reliability serves courier reliability scores to the assignment
// manager from a Redis hash or a remote scoring service.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// hmgetBatch bounds the number of fields per HMGET.
const hmgetBatch = 500

// ErrInvalidScore is returned when a score is not a finite number.
var ErrInvalidScore = errors.New("reliability score must be a finite number")

// RedisSource reads and writes reliability scores in one Redis hash.
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSource connects to the Redis server described by cfg.
func NewRedisSource(cfg Config) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisSourceWithClient(client, cfg.Key)
}

// NewRedisSourceWithClient wraps an existing client.
func NewRedisSourceWithClient(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = DefaultKey
	}
	return &RedisSource{client: client, key: key}
}

// Scores returns the stored score of every id present in the hash. Fields
// that do not parse as finite numbers are treated as missing.
func (s *RedisSource) Scores(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var cmds []*redis.SliceCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for start := 0; start < len(ids); start += hmgetBatch {
			end := min(start+hmgetBatch, len(ids))
			cmds = append(cmds, p.HMGet(ctx, s.key, ids[start:end]...))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", s.key, err)
	}
	for b, cmd := range cmds {
		for i, v := range cmd.Val() {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			score, err := parseScore(raw)
			if err != nil {
				continue
			}
			out[ids[b*hmgetBatch+i]] = score
		}
	}
	return out, nil
}

// Set stores the score of one courier.
func (s *RedisSource) Set(ctx context.Context, courierID string, score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return ErrInvalidScore
	}
	if err := s.client.HSet(ctx, s.key, courierID, strconv.FormatFloat(score, 'f', -1, 64)).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}

// Get returns the score of one courier. ok is false when none is stored.
func (s *RedisSource) Get(ctx context.Context, courierID string) (score float64, ok bool, err error) {
	raw, err := s.client.HGet(ctx, s.key, courierID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("hget %s: %w", s.key, err)
	}
	score, err = parseScore(raw)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// Delete removes the score of one courier.
func (s *RedisSource) Delete(ctx context.Context, courierID string) error {
	return s.client.HDel(ctx, s.key, courierID).Err()
}

// Ping checks connectivity.
func (s *RedisSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisSource) Close() error { return s.client.Close() }

func parseScore(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", raw, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidScore
	}
	return f, nil
}
