// Package notify streams committed-action notifications to websocket
// subscribers.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
)

// HubConfig configures websocket subscriber handling.
type HubConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a subscriber may stay silent (pongs included).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// BufferSize is the number of notifications queued per subscriber
	// before new ones are dropped.
	BufferSize int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   256,
	}
}

// Hub fans notifications out to websocket subscribers. A subscriber
// connecting with ?account=<id> receives that account's notifications only;
// without it, all notifications.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn    *websocket.Conn
	account domain.AccountID
	send    chan domain.Notification
	done    chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// withDefaults fills zero or negative fields from DefaultHubConfig.
func (c HubConfig) withDefaults() HubConfig {
	def := DefaultHubConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

// NewHub creates a hub. A nil config selects DefaultHubConfig; unset fields
// of a given config take their default values.
func NewHub(config *HubConfig, logger zerolog.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = config.withDefaults()
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "notify").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := domain.AccountID(r.URL.Query().Get("account"))
	if account != "" && !account.Valid() {
		http.Error(w, "invalid account", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:    conn,
		account: account,
		send:    make(chan domain.Notification, h.config.BufferSize),
		done:    make(chan struct{}),
	}
	if !h.add(c) {
		c.close()
		return
	}

	h.logger.Debug().Str("account", string(account)).Msg("subscriber connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Deliver queues n for every matching subscriber without blocking.
// A subscriber whose queue is full misses the notification.
func (h *Hub) Deliver(_ context.Context, n domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.account != "" && c.account != n.Recipient {
			continue
		}
		select {
		case c.send <- n:
			observability.RecordNotification(true)
		default:
			observability.RecordNotification(false)
			h.logger.Warn().
				Str("account", string(c.account)).
				Uint64("sequence", n.Sequence).
				Msg("subscriber queue full, notification dropped")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	observability.UpdateSubscribers(0)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	observability.UpdateSubscribers(len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	observability.UpdateSubscribers(n)
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Msg("subscriber read failed")
			}
			return
		}
	}
}

// writeLoop sends queued notifications and keepalive pings.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case n := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteJSON(n); err != nil {
				h.logger.Debug().Err(err).Msg("subscriber write failed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
