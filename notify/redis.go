package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dnldd/orb/shared"
	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes events as json to a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher initializes a new redis publisher.
func NewRedisPublisher(client *redis.Client, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel cannot be an empty string")
	}

	return &RedisPublisher{client: client, channel: channel}, nil
}

// Name identifies the sink.
func (p *RedisPublisher) Name() string {
	return "redis:" + p.channel
}

// Deliver publishes the provided event.
func (p *RedisPublisher) Deliver(ctx context.Context, event shared.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event.Name, err)
	}

	err = p.client.Publish(ctx, p.channel, data).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}

	return nil
}
