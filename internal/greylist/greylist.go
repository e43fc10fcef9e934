// Package greylist defers mail from senders it has not seen before, backed
// by Redis so multiple filter instances share state.
package greylist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Greylist tracks (client, sender, recipient) tuples. The first delivery
// attempt for a tuple is deferred; retries after the delay window pass.
type Greylist struct {
	client *redis.Client
	delay  time.Duration
	window time.Duration

	now func() time.Time
}

// New connects to the Redis instance at addr. delay is how long a tuple must
// wait before it passes; window is how long a tuple is remembered.
func New(addr string, delay, window time.Duration) *Greylist {
	return &Greylist{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		delay:  delay,
		window: window,
		now:    time.Now,
	}
}

// Check records a delivery attempt and reports whether it should be
// deferred. Tuples seen for the first time, or retried before the delay has
// passed, are deferred.
func (g *Greylist) Check(ctx context.Context, clientAddr, sender, recipient string) (bool, error) {
	key := fmt.Sprintf("greylist:%s:%s:%s", clientAddr, sender, recipient)

	created, err := g.client.SetNX(ctx, key, g.now().Unix(), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("greylist: %w", err)
	}
	if created {
		return true, nil
	}

	firstSeen, err := g.client.Get(ctx, key).Int64()
	if err != nil {
		return false, fmt.Errorf("greylist: %w", err)
	}
	return g.now().Sub(time.Unix(firstSeen, 0)) < g.delay, nil
}

// Close releases the Redis connection.
func (g *Greylist) Close() error {
	return g.client.Close()
}
