package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "supplyhub:events:"

var allTopics = []Topic{TopicInventory, TopicOrders, TopicRequests}

// RedisBus fans events out across processes through Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBus constructs a Redis backed bus.
func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, logger: logger}
}

// Publish encodes the event and publishes it on the topic channel.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	if b == nil || b.client == nil {
		return errors.New("events: redis bus not initialised")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+string(evt.Topic), raw).Err()
}

// Subscribe opens a pub/sub connection for topics.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...Topic) (Subscription, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("events: redis bus not initialised")
	}
	if len(topics) == 0 {
		topics = allTopics
	}
	channels := make([]string, 0, len(topics))
	for _, t := range topics {
		channels = append(channels, channelPrefix+string(t))
	}
	pubsub := b.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so events published after
	// Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub := &redisSub{
		pubsub:  pubsub,
		out:     make(chan Event, defaultBuffer),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go sub.forward(ctx, b.logger)
	return sub, nil
}

type redisSub struct {
	pubsub  *redis.PubSub
	out     chan Event
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	err     error
}

func (s *redisSub) forward(ctx context.Context, logger *slog.Logger) {
	defer close(s.stopped)
	defer close(s.out)
	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			go func() { _ = s.Close() }()
			return
		case <-s.stop:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warn("events: discard malformed message", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			select {
			case s.out <- evt:
			default:
				logger.Warn("events: subscriber buffer full", slog.String("topic", string(evt.Topic)))
			}
		}
	}
}

func (s *redisSub) Events() <-chan Event {
	return s.out
}

func (s *redisSub) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.err = s.pubsub.Close()
		<-s.stopped
	})
	return s.err
}
