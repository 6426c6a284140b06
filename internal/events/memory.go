package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 64

// MemoryBus is an in-process Bus. Slow subscribers lose events instead of
// blocking publishers.
type MemoryBus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]*memorySub
	dropped atomic.Int64
	buffer  int
}

// NewMemoryBus constructs an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uint64]*memorySub), buffer: defaultBuffer}
}

type memorySub struct {
	bus    *MemoryBus
	id     uint64
	topics map[Topic]struct{}
	ch     chan Event
	once   sync.Once
	done   chan struct{}
}

// Publish fans the event out to matching subscribers.
func (b *MemoryBus) Publish(_ context.Context, evt Event) error {
	if b == nil {
		return errors.New("events: bus not initialised")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(evt.Topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a subscriber for topics, or for every topic when none
// are given. The subscription is closed when ctx ends.
func (b *MemoryBus) Subscribe(ctx context.Context, topics ...Topic) (Subscription, error) {
	if b == nil {
		return nil, errors.New("events: bus not initialised")
	}
	sub := &memorySub{
		bus:    b,
		topics: topicSet(topics),
		ch:     make(chan Event, b.buffer),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *MemoryBus) Dropped() int64 {
	return b.dropped.Load()
}

func (s *memorySub) Events() <-chan Event {
	return s.ch
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		close(s.ch)
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *memorySub) matches(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

func topicSet(topics []Topic) map[Topic]struct{} {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}
