package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBus publishes and subscribes over Redis pub/sub.
type RedisBus struct {
	rdb *redis.Client
}

var (
	_ Publisher  = (*RedisBus)(nil)
	_ Subscriber = (*RedisBus)(nil)
)

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, Channel(e.ProjectID), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning, so
// no event published after Subscribe returns is missed.
func (b *RedisBus) Subscribe(ctx context.Context, projectID uuid.UUID) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(projectID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return newRedisSubscription(ps.Channel(), ps.Close), nil
}

// redisSubscription copies payloads from a go-redis message channel to out.
// Close stops the pump even while it waits on a reader that went away.
type redisSubscription struct {
	out     chan []byte
	done    chan struct{}
	once    sync.Once
	closeFn func() error
	err     error
}

func newRedisSubscription(msgs <-chan *redis.Message, closeFn func() error) *redisSubscription {
	s := &redisSubscription{
		out:     make(chan []byte, 16),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
	go s.pump(msgs)
	return s
}

func (s *redisSubscription) pump(msgs <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.closeFn()
	})
	return s.err
}
