// Package redis implements the hot-path Collection Registry and session
// lookup on top of Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// collectEventsPrefix is the Pub/Sub channel namespace for collect events;
// the item ID follows the prefix. Publisher and subscriber both build
// channel names from it.
const collectEventsPrefix = "collect_events:"

func collectEventsChannel(itemID int64) string {
	return fmt.Sprintf("%s%d", collectEventsPrefix, itemID)
}

// Client wraps the Redis client with collect-registry operations
type Client struct {
	client *redis.Client
	// Lua script for the atomic last-writer-wins collect toggle
	toggleScript *redis.Script
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// The toggle must resolve concurrent writes by sequence number, not by
	// arrival order: a slow "add" carrying an older sequence must not
	// overwrite a "delete" that was issued later. The script runs atomically
	// on the Redis server, so the compare-and-set cannot interleave
	toggleScript := redis.NewScript(`
		-- KEYS[1]: collect:{userID}          (hash: itemID -> "<active>:<seq>")
		-- KEYS[2]: collect:{userID}:active   (zset: itemID scored by seq, active entries only)
		-- ARGV[1]: item ID
		-- ARGV[2]: wanted state ("1" or "0")
		-- ARGV[3]: sequence number

		local current = redis.call('HGET', KEYS[1], ARGV[1])
		local new_seq = tonumber(ARGV[3])

		if current then
			local sep = string.find(current, ':')
			local cur_seq = tonumber(string.sub(current, sep + 1))
			if cur_seq >= new_seq then
				-- A newer toggle already landed; last writer wins
				return {0, string.sub(current, 1, sep - 1)}
			end
		end

		redis.call('HSET', KEYS[1], ARGV[1], ARGV[2] .. ':' .. ARGV[3])
		if ARGV[2] == '1' then
			redis.call('ZADD', KEYS[2], new_seq, ARGV[1])
		else
			-- Keep the hash row so the entry history survives deactivation
			redis.call('ZREM', KEYS[2], ARGV[1])
		end
		return {1, ARGV[2]}
	`)

	return &Client{
		client:       rdb,
		toggleScript: toggleScript,
	}, nil
}

// Toggle atomically sets the user's collect flag on an item. The write is
// applied only when seq is newer than the stored sequence; calling with the
// already-current state is a harmless no-op from the outside. Returns
// whether the write was applied
func (c *Client) Toggle(ctx context.Context, userID string, itemID int64, active bool, seq int64) (bool, error) {
	keys := []string{
		fmt.Sprintf("collect:%s", userID),
		fmt.Sprintf("collect:%s:active", userID),
	}

	state := "0"
	if active {
		state = "1"
	}

	result, err := c.toggleScript.Run(ctx, c.client, keys, itemID, state, seq).Result()
	if err != nil {
		return false, fmt.Errorf("failed to execute toggle script: %w", err)
	}

	// Result is [applied_flag, resulting_state]
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return false, fmt.Errorf("unexpected script result format")
	}

	applied, ok := resultArray[0].(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result format")
	}
	return applied == 1, nil
}

// ListCollected returns the IDs of the user's actively collected items,
// most recently toggled first. Ranges past the end return an empty slice
func (c *Client) ListCollected(ctx context.Context, userID string, offset, count int64) ([]int64, error) {
	key := fmt.Sprintf("collect:%s:active", userID)

	members, err := c.client.ZRevRange(ctx, key, offset, offset+count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range collected items: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt collected item id %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveSession looks up the user ID behind a session token. Returns an
// empty string when the token is unknown or expired
func (c *Client) ResolveSession(ctx context.Context, token string) (string, error) {
	userID, err := c.client.Get(ctx, fmt.Sprintf("session:%s", token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}
	return userID, nil
}

// PublishCollectEvent publishes a collect event to Redis Pub/Sub.
// This will be picked up by the broadcast service for real-time WebSocket updates
func (c *Client) PublishCollectEvent(ctx context.Context, itemID int64, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return c.client.Publish(ctx, collectEventsChannel(itemID), eventJSON).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}
