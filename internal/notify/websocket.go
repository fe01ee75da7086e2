package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errRedialCooldown = errors.New("listener in redial cooldown")

// WebSocketConfig configures the WebSocket publisher.
type WebSocketConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each event write.
	WriteTimeout time.Duration
	// RedialDelay is the minimum pause before a reconnect attempt.
	RedialDelay time.Duration
}

// DefaultWebSocketConfig returns the default publisher configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		RedialDelay:      2 * time.Second,
	}
}

// WebSocketNotifier pushes events to a listener endpoint as JSON text
// frames. A broken connection is redialed lazily on the next publish;
// events emitted while the listener is unreachable are dropped, which is
// acceptable for advisory progress signals.
type WebSocketNotifier struct {
	endpoint string
	config   WebSocketConfig
	logger   *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	lastDialFail time.Time
}

// NewWebSocketNotifier creates a publisher for the endpoint. The first
// connection attempt happens on the first Publish, not here, so a missing
// listener never blocks pipeline startup.
func NewWebSocketNotifier(endpoint string, config *WebSocketConfig, logger *slog.Logger) *WebSocketNotifier {
	cfg := DefaultWebSocketConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketNotifier{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
	}
}

var _ Notifier = (*WebSocketNotifier)(nil)

// Publish sends one event, swallowing every failure.
func (n *WebSocketNotifier) Publish(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	conn := n.conn
	if conn == nil {
		var err error
		conn, err = n.dial(ctx)
		if err != nil {
			n.logger.Debug("event listener unreachable, dropping event",
				"kind", event.Kind, "run_id", event.RunID, "error", err)
			return
		}
		n.conn = conn
	}

	_ = conn.SetWriteDeadline(time.Now().Add(n.config.WriteTimeout))
	if err := conn.WriteJSON(event); err != nil {
		n.logger.Debug("event write failed, dropping connection",
			"kind", event.Kind, "run_id", event.RunID, "error", err)
		conn.Close()
		n.conn = nil
	}
}

// Close tears the connection down.
func (n *WebSocketNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		return err
	}
	return nil
}

// dial connects to the listener, rate-limited so a dead endpoint is not
// hammered on every event.
func (n *WebSocketNotifier) dial(ctx context.Context) (*websocket.Conn, error) {
	if since := time.Since(n.lastDialFail); since < n.config.RedialDelay {
		return nil, errRedialCooldown
	}

	dialer := websocket.Dialer{HandshakeTimeout: n.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, n.endpoint, nil)
	if err != nil {
		n.lastDialFail = time.Now()
		return nil, err
	}
	return conn, nil
}
