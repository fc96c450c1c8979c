// Package broadcast fans collect events out to WebSocket clients watching
// individual items.
package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Manager tracks which clients watch which item and routes events to them
type Manager struct {
	// itemID -> set of clients watching that item
	watchers map[string]map[*Client]struct{}
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	logger *slog.Logger
}

// Client is one WebSocket connection watching one item
type Client struct {
	ID     string
	ItemID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Event is a payload to deliver to every watcher of an item
type Event struct {
	ItemID  string
	Payload []byte
}

// NewManager creates a new broadcast manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		watchers:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256), // Buffered for bursts of toggles
		logger:     logger,
	}
}

// Run processes registrations and broadcasts. Run in a goroutine
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.addWatcher(client)
		case client := <-m.unregister:
			m.removeWatcher(client)
		case event := <-m.broadcast:
			m.deliver(event)
		}
	}
}

// RegisterClient starts delivering events for the client's item to it
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient stops delivery and closes the client's connection
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast queues an event for every watcher of the item
func (m *Manager) Broadcast(itemID string, payload []byte) {
	m.broadcast <- &Event{ItemID: itemID, Payload: payload}
}

// WatcherCount returns how many clients are watching an item
func (m *Manager) WatcherCount(itemID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[itemID])
}

func (m *Manager) addWatcher(client *Client) {
	m.mu.Lock()
	set, ok := m.watchers[client.ItemID]
	if !ok {
		set = make(map[*Client]struct{})
		m.watchers[client.ItemID] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("client subscribed", "client_id", client.ID, "item_id", client.ItemID)

	go client.writePump()
}

func (m *Manager) removeWatcher(client *Client) {
	m.mu.Lock()
	present := false
	if set, ok := m.watchers[client.ItemID]; ok {
		if _, present = set[client]; present {
			delete(set, client)
			if len(set) == 0 {
				delete(m.watchers, client.ItemID)
			}
		}
	}
	m.mu.Unlock()

	// Eviction and the read pump can both unregister the same client; only
	// the removal that actually found it may close the channel
	if !present {
		return
	}

	close(client.Send)
	client.Conn.Close()

	m.logger.Debug("client unsubscribed", "client_id", client.ID, "item_id", client.ItemID)
}

func (m *Manager) deliver(event *Event) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.watchers[event.ItemID]))
	for client := range m.watchers[event.ItemID] {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- event.Payload:
		default:
			// Send buffer full; drop the slow client so it cannot
			// stall delivery to the others
			go m.UnregisterClient(client)
		}
	}
}

// writePump pumps messages from the Send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Ping to keep the connection alive
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client messages so pongs and disconnects are noticed
func (c *Client) readPump(unregister chan<- *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// StartReadPump starts the read pump for this client
func (c *Client) StartReadPump(unregister chan<- *Client) {
	go c.readPump(unregister)
}
