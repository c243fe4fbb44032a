package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
)

// SubscriberConfig configures notification stream behavior.
type SubscriberConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is how long the stream may stay silent (server pings included).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// BufferSize is the capacity of the notifications channel.
	BufferSize int
}

// DefaultSubscriberConfig returns default subscriber configuration.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		BufferSize:        1024,
	}
}

// Subscriber receives notifications from a ledger server's /ws stream and
// reconnects with exponential backoff when the connection drops.
type Subscriber struct {
	endpoint string
	config   SubscriberConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	notifications chan domain.Notification

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// Subscribe connects to the server at baseURL and streams notifications for
// account, or for every account when account is empty.
func Subscribe(ctx context.Context, baseURL string, account domain.AccountID, config *SubscriberConfig, logger zerolog.Logger) (*Subscriber, error) {
	cfg := DefaultSubscriberConfig()
	if config != nil {
		cfg = *config
	}

	endpoint, err := streamURL(baseURL, account)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		endpoint:      endpoint,
		config:        cfg,
		logger:        logger.With().Str("component", "subscriber").Logger(),
		notifications: make(chan domain.Notification, cfg.BufferSize),
		done:          make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// streamURL turns http(s)://host into ws(s)://host/ws?account=...
func streamURL(baseURL string, account domain.AccountID) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	if account != "" {
		u.RawQuery = url.Values{"account": {string(account)}}.Encode()
	}
	return u.String(), nil
}

// Notifications returns the notification channel. It is closed by Close.
func (s *Subscriber) Notifications() <-chan domain.Notification { return s.notifications }

// connect establishes the WebSocket connection.
func (s *Subscriber) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.config.WriteTimeout))
	})

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// Close closes the connection and the notification channel.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.config.WriteTimeout))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.notifications)
	return nil
}

// readLoop reads notifications and reconnects on connection errors.
func (s *Subscriber) readLoop() {
	defer s.wg.Done()

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn().Err(err).Msg("notification stream lost, reconnecting")
			if !s.reconnect() {
				return
			}
			continue
		}

		var n domain.Notification
		if err := json.Unmarshal(message, &n); err != nil {
			s.logger.Warn().Err(err).Msg("malformed notification")
			continue
		}

		select {
		case s.notifications <- n:
		case <-s.done:
			return
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// subscriber is closed.
func (s *Subscriber) reconnect() bool {
	s.connMu.Lock()
	s.conn.Close()
	s.connMu.Unlock()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			if s.closed.Load() {
				s.connMu.Lock()
				s.conn.Close()
				s.connMu.Unlock()
				return false
			}
			s.logger.Info().Msg("notification stream reconnected")
			return true
		}

		s.logger.Debug().Err(err).Dur("delay", delay).Msg("reconnect failed")

		// Exponential backoff
		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}
