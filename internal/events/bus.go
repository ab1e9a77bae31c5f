package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// Event is the message delivered to subscribers.
type Event struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Tenant string          `json:"tenant"`
	At     time.Time       `json:"at"`
}

// Notifier reacts to published events in-process.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(ctx context.Context, topic string, data any) (Event, error)
}

// Bus fans events out over Redis pub/sub, one channel per tenant and room.
type Bus struct {
	R         *redis.Client
	Rooms     []string
	Notifiers []Notifier
	Now       func() time.Time
}

// Channel returns the Redis channel carrying room events for tenantID.
func Channel(tenantID, room string) string {
	return tenant.PrefixKey(tenantID, "events:"+room)
}

// Publish encodes data and sends it to every configured room. Delivery is
// best effort: failures are joined and returned after all rooms were tried.
func (b *Bus) Publish(ctx context.Context, topic string, data any) (Event, error) {
	if b == nil || b.R == nil {
		return Event{}, errors.New("events: redis not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	encoded, err := encodePayload(data)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	tenantID, _ := tenant.FromContext(ctx)
	ev := Event{Type: topic, Data: encoded, Tenant: tenantID, At: b.now().UTC()}
	msg, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode event: %w", err)
	}

	rooms := b.Rooms
	if len(rooms) == 0 {
		rooms = DefaultRooms()
	}
	var joined error
	for _, room := range rooms {
		if pubErr := b.R.Publish(ctx, Channel(tenantID, room), msg).Err(); pubErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: publish %s: %w", room, pubErr))
		}
	}
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

// Subscribe opens a pub/sub subscription to room for tenantID. Callers must
// close the returned subscription.
func (b *Bus) Subscribe(ctx context.Context, tenantID, room string) *redis.PubSub {
	return b.R.Subscribe(ctx, Channel(tenantID, room))
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}
