package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultQueue is the Redis list alerts are pushed to when the target
// names none
const DefaultQueue = "legiswatch:alerts"

// pusher is the subset of the Redis client the queue sink uses
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// QueueSink appends each alert as JSON to a Redis list
type QueueSink struct {
	client pusher
	queue  string
}

// NewQueueSink connects to target, a redis:// or rediss:// URL whose
// fragment names the list ("redis://localhost:6379/0#alerts")
func NewQueueSink(target string) (*QueueSink, error) {
	addr, queue, err := parseQueueTarget(target)
	if err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: queue target: %w", model.ErrValidation, err)
	}

	return newQueueSink(redis.NewClient(opts), queue), nil
}

func newQueueSink(client pusher, queue string) *QueueSink {
	return &QueueSink{client: client, queue: queue}
}

func parseQueueTarget(target string) (addr, queue string, err error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return "", "", fmt.Errorf("%w: queue target must be a redis:// URL: %q", model.ErrValidation, target)
	}

	queue = u.Fragment
	if queue == "" {
		queue = DefaultQueue
	}
	u.Fragment = ""
	return u.String(), queue, nil
}

// Emit pushes the alert onto the list
func (s *QueueSink) Emit(ctx context.Context, alert model.ComplianceAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("%w: marshal alert: %w", model.ErrSink, err)
	}
	if err := s.client.RPush(ctx, s.queue, data).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %w", model.ErrSink, s.queue, err)
	}
	return nil
}

// Close closes the Redis connection pool
func (s *QueueSink) Close() error {
	return s.client.Close()
}
