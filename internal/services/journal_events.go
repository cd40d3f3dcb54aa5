package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Journal event types.
const (
	EventJournalCreated = "journal.created"
	EventJournalUpdated = "journal.updated"
	EventJournalPatched = "journal.patched"
	EventJournalDeleted = "journal.deleted"
)

const (
	journalEventChannelPrefix = "journal:events:"
	subscriberBufferSize      = 16
	maxSubscriberBackoff      = 30 * time.Second
)

// JournalEvent is published to Redis and relayed to the owner's WebSocket
// connections.
type JournalEvent struct {
	Type      string    `json:"type"`
	JournalID string    `json:"journalId"`
	OwnerID   string    `json:"ownerId"`
	Timestamp time.Time `json:"timestamp"`
}

func journalEventChannel(ownerID string) string {
	return journalEventChannelPrefix + ownerID
}

// EventPublisher announces completed journal mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event JournalEvent) error
}

// RedisEventPublisher publishes on journal:events:<ownerId>.
type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event JournalEvent) error {
	if p.client == nil {
		return errRedisUnavailable
	}
	if event.OwnerID == "" {
		return errors.New("journal event without owner")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, journalEventChannel(event.OwnerID), data).Err(); err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

// NoopEventPublisher drops every event.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, JournalEvent) error { return nil }

// EventHub relays events received from Redis to the local subscribers of the
// event's owner.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan JournalEvent]struct{}
	started     sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]map[chan JournalEvent]struct{})}
}

// Subscribe registers a listener for ownerID. The returned func must be called
// once the listener is done; it closes the channel.
func (h *EventHub) Subscribe(ownerID string) (<-chan JournalEvent, func()) {
	ch := make(chan JournalEvent, subscriberBufferSize)

	h.mu.Lock()
	if h.subscribers[ownerID] == nil {
		h.subscribers[ownerID] = make(map[chan JournalEvent]struct{})
	}
	h.subscribers[ownerID][ch] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[ownerID], ch)
			if len(h.subscribers[ownerID]) == 0 {
				delete(h.subscribers, ownerID)
			}
			close(ch)
			h.mu.Unlock()
			metrics.WebSocketConnections.Dec()
		})
	}
}

// SubscriberCount returns the number of local listeners for ownerID.
func (h *EventHub) SubscriberCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[ownerID])
}

// FanOut delivers event to every local listener of its owner. A listener whose
// buffer is full misses the event.
func (h *EventHub) FanOut(event JournalEvent) {
	if event.OwnerID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.OwnerID] {
		select {
		case ch <- event:
		default:
			logging.Warn().Str("owner_id", event.OwnerID).Str("type", event.Type).
				Msg("journal event dropped for slow subscriber")
		}
	}
}

// Start launches the shared Redis listener once per hub.
func (h *EventHub) Start(ctx context.Context, client *redis.Client) {
	h.started.Do(func() {
		if client == nil {
			logging.Warn().Msg("Redis client not initialized; journal event subscriber not started")
			return
		}
		go h.run(ctx, client)
	})
}

func (h *EventHub) run(ctx context.Context, client *redis.Client) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := h.receive(ctx, client, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		logging.Warn().Err(err).Dur("backoff", backoff).Msg("journal event subscriber error, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxSubscriberBackoff {
			backoff = maxSubscriberBackoff
		}
	}
}

func (h *EventHub) receive(ctx context.Context, client *redis.Client, onMessage func()) error {
	pubsub := client.PSubscribe(ctx, journalEventChannelPrefix+"*")
	defer pubsub.Close()

	logging.Info().Str("pattern", journalEventChannelPrefix+"*").Msg("journal event subscriber started")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var event JournalEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logging.Warn().Err(err).Str("channel", msg.Channel).Msg("failed to unmarshal journal event")
			continue
		}
		h.FanOut(event)
	}
}
