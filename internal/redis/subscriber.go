package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Subscriber wraps Redis Pub/Sub for the broadcast service
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewSubscriber creates a new Redis Pub/Sub subscriber
func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{
		client: rdb,
	}, nil
}

// SubscribeCollectEvents subscribes to collect events for every item.
// Channel pattern: "collect_events:{itemID}"
func (s *Subscriber) SubscribeCollectEvents(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, collectEventsPrefix+"*")
	return nil
}

// Message is a parsed Pub/Sub message: the item the event belongs to and
// the raw JSON payload to forward
type Message struct {
	ItemID  string
	Payload string
}

// Listen forwards incoming messages to messageChan until ctx is cancelled.
// This is a blocking operation - run in a goroutine
func (s *Subscriber) Listen(ctx context.Context, messageChan chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			messageChan <- &Message{
				ItemID:  extractItemIDFromChannel(msg.Channel),
				Payload: msg.Payload,
			}
		}
	}
}

// extractItemIDFromChannel extracts the item ID from a channel name.
// Example: "collect_events:42" -> "42"
func extractItemIDFromChannel(channel string) string {
	if len(channel) > len(collectEventsPrefix) {
		return channel[len(collectEventsPrefix):]
	}
	return ""
}

// Close closes the subscriber
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
