// Package events carries change notifications between services and
// subscribers. Publishing happens after the owning transaction commits.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Topic groups related events.
type Topic string

const (
	TopicInventory Topic = "inventory"
	TopicOrders    Topic = "orders"
	TopicRequests  Topic = "requests"
)

// ParseTopic validates a topic name.
func ParseTopic(s string) (Topic, error) {
	switch t := Topic(s); t {
	case TopicInventory, TopicOrders, TopicRequests:
		return t, nil
	}
	return "", errors.New("events: unknown topic " + s)
}

// Event is a single change notification.
type Event struct {
	Topic    Topic           `json:"topic"`
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// New builds an event with a JSON encoded payload.
func New(topic Topic, typ, entityID string, payload any) (Event, error) {
	evt := Event{Topic: topic, Type: typ, EntityID: entityID, At: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		evt.Payload = raw
	}
	return evt, nil
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscription delivers events until closed. Close is idempotent; once it
// returns no further events are delivered and Events is closed.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Bus is a publish/subscribe transport.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topics ...Topic) (Subscription, error)
}

// Emit builds and publishes an event, ignoring a nil publisher.
func Emit(ctx context.Context, p Publisher, topic Topic, typ, entityID string, payload any) error {
	if p == nil {
		return nil
	}
	evt, err := New(topic, typ, entityID, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, evt)
}
