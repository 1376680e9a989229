package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes each message as JSON on a channel and appends it
// to the "<channel>:transcript" list.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to url and verifies the server with PING.
func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", opts.Addr, err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// TranscriptKey is the list that holds every delivered message.
func (s *RedisSink) TranscriptKey() string {
	return s.channel + ":transcript"
}

// Deliver publishes msg and appends it to the transcript in one
// pipeline.
func (s *RedisSink) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.channel, payload)
	pipe.RPush(ctx, s.TranscriptKey(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: deliver: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
