// Package consumer drains collect events from NATS JetStream and archives
// them into PostgreSQL.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jimy3k/weapp-fangxianyu/internal/database"
	"github.com/jimy3k/weapp-fangxianyu/internal/events"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// ArchivalConsumer consumes collect events and persists them to the database
type ArchivalConsumer struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	db     *database.PostgresClient
	logger *slog.Logger
}

// NewArchivalConsumer creates a new JetStream consumer
func NewArchivalConsumer(natsURL string, db *database.PostgresClient, logger *slog.Logger) (*ArchivalConsumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &ArchivalConsumer{
		conn:   conn,
		js:     js,
		db:     db,
		logger: logger,
	}, nil
}

// Start consumes collect events until ctx is cancelled. The durable
// consumer picks up where it left off across restarts; the stream's
// work-queue retention drops each event once it is acknowledged
func (c *ArchivalConsumer) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		Durable:       "archival-worker",
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: events.SubjectPrefix + ".*",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	c.logger.Info("consuming collect events", "stream", events.StreamName)

	<-ctx.Done()
	return nil
}

// handleMessage archives a single collect event. The event is acked only
// after the database write succeeds; failures are redelivered
func (c *ArchivalConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var event models.CollectEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.logger.Error("failed to unmarshal collect event", "error", err)
		// Poison message; redelivery cannot fix it
		msg.Term()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.db.UpsertCollectEntry(dbCtx, &event); err != nil {
		c.logger.Error("failed to archive collect event",
			"event_id", event.EventID, "error", err)
		msg.Nak()
		return
	}

	c.logger.Debug("archived collect event",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"item_id", event.ItemID,
		"active", event.Active,
	)
	msg.Ack()
}

// Close closes the NATS connection
func (c *ArchivalConsumer) Close() error {
	c.conn.Close()
	return nil
}
