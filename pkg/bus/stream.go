package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"SigFuse/internal/domain/repository"
	"SigFuse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Stream topics used by the pipeline.
const (
	TopicRawEvents = "events.raw"
	TopicFused     = "events.fused"
	TopicRouteCEX  = "events.route.cex"
	TopicRouteHL   = "events.route.hl"
	TopicRouteDEX  = "events.route.dex"
	TopicTrades    = "trades.executed"
	TopicAlerts    = "notifications.alerts"
)

// RedisStream implements the Bus over Redis Streams: XAdd append,
// XReadGroup consume, XAck acknowledge. Ordering holds per stream;
// cross-stream ordering is not guaranteed.
type RedisStream struct {
	logger    *logger.Logger
	client    *redis.Client
	keyPrefix string
	maxLen    int64
	groups    map[string]bool // topic:group pairs already ensured
	mu        sync.Mutex
}

// StreamOption configures RedisStream.
type StreamOption func(*RedisStream)

// WithKeyPrefix sets a custom stream key prefix.
func WithKeyPrefix(prefix string) StreamOption {
	return func(s *RedisStream) {
		s.keyPrefix = prefix
	}
}

// WithMaxLen caps stream length (approximate trim on XAdd).
func WithMaxLen(n int64) StreamOption {
	return func(s *RedisStream) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// NewRedisStream creates a stream bus on an existing Redis client.
func NewRedisStream(lgr *logger.Logger, client *redis.Client, opts ...StreamOption) (*RedisStream, error) {
	s := &RedisStream{
		logger:    lgr,
		client:    client,
		keyPrefix: "sigfuse:stream",
		maxLen:    100000,
		groups:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

// Publish appends a payload to the topic stream.
func (s *RedisStream) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey(topic),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Read fetches up to count entries for the consumer group, blocking at most
// block. An empty result after the block timeout is not an error.
func (s *RedisStream) Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]repository.BusMessage, error) {
	if err := s.ensureGroup(ctx, topic, group); err != nil {
		return nil, err
	}

	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.streamKey(topic), ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", topic, err)
	}

	var msgs []repository.BusMessage
	for _, stream := range res {
		for _, m := range stream.Messages {
			raw, ok := m.Values["payload"].(string)
			if !ok {
				s.logger.Warn("stream entry without payload field",
					logger.String("topic", topic), logger.String("id", m.ID))
				continue
			}
			msgs = append(msgs, repository.BusMessage{ID: m.ID, Payload: []byte(raw)})
		}
	}
	return msgs, nil
}

// Ack acknowledges processed entries for the group.
func (s *RedisStream) Ack(ctx context.Context, topic, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.streamKey(topic), group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", topic, err)
	}
	return nil
}

// Close releases nothing; the Redis client is owned by the caller.
func (s *RedisStream) Close() error { return nil }

// ensureGroup creates the consumer group once per topic, tolerating the
// already-exists reply.
func (s *RedisStream) ensureGroup(ctx context.Context, topic, group string) error {
	key := topic + ":" + group
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[key] {
		return nil
	}

	err := s.client.XGroupCreateMkStream(ctx, s.streamKey(topic), group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create %s: %w", topic, err)
	}
	s.groups[key] = true
	return nil
}

func (s *RedisStream) streamKey(topic string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, topic)
}

var _ repository.Bus = (*RedisStream)(nil)
