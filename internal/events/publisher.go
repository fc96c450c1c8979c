// Package events publishes collect events to the streams consumed by the
// archival worker (NATS JetStream) and the broadcast service (Redis Pub/Sub).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// StreamName is the JetStream stream holding collect events until the
// archival worker consumes them.
const StreamName = "COLLECT_EVENTS"

// SubjectPrefix is the subject space of collect events; the item ID is the
// final token so consumers can filter per item.
const SubjectPrefix = "collect.events"

// Broadcaster fans an event out to live watchers of an item.
type Broadcaster interface {
	PublishCollectEvent(ctx context.Context, itemID int64, event interface{}) error
}

// Publisher sends collect events downstream
type Publisher struct {
	js        jetstream.JetStream
	broadcast Broadcaster
	logger    *slog.Logger
}

// NewPublisher creates a publisher and ensures the archival stream exists
func NewPublisher(natsConn *nats.Conn, broadcast Broadcaster, logger *slog.Logger) (*Publisher, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Stream for collect events archival",
		Subjects:    []string{SubjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,      // Persistent storage
		Retention:   jetstream.WorkQueuePolicy,  // Each message consumed once
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Publisher{
		js:        js,
		broadcast: broadcast,
		logger:    logger,
	}, nil
}

// Publish sends the event to JetStream for archival and to Redis Pub/Sub
// for the broadcast service. The JetStream publish waits for the server
// acknowledgment so the event is persisted before this returns; the
// broadcast is best effort
func (p *Publisher) Publish(ctx context.Context, event *models.CollectEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%d", SubjectPrefix, event.ItemID)
	ack, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	p.logger.Debug("published collect event",
		"subject", subject, "stream_seq", ack.Sequence, "event_id", event.EventID)

	if err := p.broadcast.PublishCollectEvent(ctx, event.ItemID, event); err != nil {
		// Live watchers just miss one update; the archival copy is safe
		p.logger.Warn("failed to publish collect event to Pub/Sub",
			"event_id", event.EventID, "error", err)
	}
	return nil
}
