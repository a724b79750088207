package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StatusChannel carries bot status events between instances.
const StatusChannel = "pairing:status"

const clientName = "pairing-server"

// Client is shared by the rate limiter and the status broker when several
// instances sit behind one balancer.
type Client struct {
	*redis.Client
}

// NewClient fails unless the server answers a ping.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Client{client}, nil
}

func (c *Client) PublishStatus(ctx context.Context, payload []byte) error {
	if err := c.Publish(ctx, StatusChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

func (c *Client) SubscribeStatus(ctx context.Context) *redis.PubSub {
	return c.Subscribe(ctx, StatusChannel)
}
