package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBus is an in-process bus for single-instance runs and tests.
// Slow subscribers drop events rather than block publishers.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*memorySubscription]struct{}
}

var (
	_ Publisher  = (*MemoryBus)(nil)
	_ Subscriber = (*MemoryBus)(nil)
)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[*memorySubscription]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[e.ProjectID] {
		select {
		case sub.out <- data:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, projectID uuid.UUID) (Subscription, error) {
	sub := &memorySubscription{bus: b, projectID: projectID, out: make(chan []byte, 16)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[*memorySubscription]struct{})
	}
	b.subs[projectID][sub] = struct{}{}
	return sub, nil
}

type memorySubscription struct {
	bus       *MemoryBus
	projectID uuid.UUID
	out       chan []byte
	once      sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.projectID], s)
		s.bus.mu.Unlock()
		close(s.out)
	})
	return nil
}
