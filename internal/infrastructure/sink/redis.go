package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PubSub publishes payloads to one redis pub/sub channel. The channel
// name distinguishes the development feed from production.
type PubSub struct {
	client  *redis.Client
	channel string
}

// NewPubSub wraps an existing redis client. The caller owns the client
// lifecycle when sharing it; Close here closes it.
func NewPubSub(client *redis.Client, channel string) *PubSub {
	return &PubSub{client: client, channel: channel}
}

// Publish pushes the payload onto the configured channel. The key is
// unused: pub/sub consumers subscribe to the whole channel.
func (p *PubSub) Publish(ctx context.Context, _ string, payload []byte) error {
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to channel %s: %w", p.channel, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *PubSub) Close() error {
	return p.client.Close()
}
