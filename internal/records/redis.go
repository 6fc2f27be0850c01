package records

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

const channelPrefix = "accounts:"

// RedisNotifier fans record changes out over Redis pub/sub so watchers in
// other processes re-read immediately instead of waiting for the next poll.
type RedisNotifier struct {
	rdb *redis.Client
	log logging.Logger
}

// NewRedisNotifier connects to addr and pings it.
func NewRedisNotifier(ctx context.Context, addr string, log logging.Logger) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisNotifier{rdb: rdb, log: log.With("module", "records", "component", "redis")}, nil
}

func channelFor(userID string) string {
	return channelPrefix + userID
}

func (n *RedisNotifier) Publish(ctx context.Context, userID string) error {
	return n.rdb.Publish(ctx, channelFor(userID), time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

// Subscribe returns a channel that receives a signal per published change. It
// is closed when ctx is done.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID string) (<-chan struct{}, error) {
	sub := n.rdb.Subscribe(ctx, channelFor(userID))

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				n.log.Debug(ctx, "record change", "channel", m.Channel)
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (n *RedisNotifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}
