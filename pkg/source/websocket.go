// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/linstroke/pkg/drive"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
	wsWriteTimeout     = time.Second
)

// WebSocketConfig configures a remote console connection
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool

	// Reconnect backoff, doubling from MinBackoff up to MaxBackoff
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// WebSocketSource is a remote console. Text messages are console commands
// and get a text reply; each loop report is pushed as a binary CBOR status
// message. The connection is re-established with exponential backoff.
type WebSocketSource struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	// writeMu serializes writes from the reader and the status publisher
	writeMu sync.Mutex
	mu      sync.RWMutex
	conn    *websocket.Conn
}

// NewWebSocket validates cfg. No connection is made until Run.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) (*WebSocketSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(30*time.Second, cfg.MinBackoff)
	}

	return &WebSocketSource{
		cfg:    cfg,
		logger: logger.With("source", "websocket", "url", cfg.URL),
	}, nil
}

func (w *WebSocketSource) Name() string {
	return fmt.Sprintf("WebSocket: %s", w.cfg.URL)
}

// Connected reports whether a connection is currently up
func (w *WebSocketSource) Connected() bool {
	return w.getConn() != nil
}

func (w *WebSocketSource) getConn() *websocket.Conn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn
}

func (w *WebSocketSource) setConn(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = conn
}

// dial opens a connection with HTTP Basic auth
func (w *WebSocketSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if u, _ := url.Parse(w.cfg.URL); u != nil && u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: w.cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if w.cfg.Username != "" && w.cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.cfg.Username + ":" + w.cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, w.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}

// Run connects and serves commands, reconnecting with exponential backoff
// whenever the connection drops, until ctx is done
func (w *WebSocketSource) Run(ctx context.Context, console *stroke.Console) error {
	backoff := w.cfg.MinBackoff

	for {
		conn, err := w.dial(ctx)
		if err == nil {
			backoff = w.cfg.MinBackoff
			w.logger.Info("connected")

			err = w.serve(ctx, conn, console)
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("connection lost - reconnecting", "error", err)
		} else {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("connection attempt failed", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}
}

// serve handles one connection until it fails or ctx is done
func (w *WebSocketSource) serve(ctx context.Context, conn *websocket.Conn, console *stroke.Console) error {
	w.setConn(conn)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		w.setConn(nil)
		_ = conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrConnectionClosed
			}
			return err
		}

		// Binary messages are ours to send, not to receive
		if messageType != websocket.TextMessage {
			continue
		}

		reply := execute(console, string(data), w.logger)
		if err := w.write(conn, websocket.TextMessage, []byte(reply)); err != nil {
			return err
		}
	}
}

func (w *WebSocketSource) write(conn *websocket.Conn, messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// PublishReport pushes a status snapshot to the connected console. It
// blocks on network I/O, so register it with drive.AsyncObserver.
func (w *WebSocketSource) PublishReport(r drive.Report) {
	conn := w.getConn()
	if conn == nil {
		return
	}

	data, err := EncodeStatus(NewStatus(r))
	if err != nil {
		w.logger.Error("failed to encode status", "error", err)
		return
	}
	if err := w.write(conn, websocket.BinaryMessage, data); err != nil {
		w.logger.Debug("failed to push status", "error", err)
	}
}

// Close drops the current connection. Run keeps reconnecting until its
// context is cancelled.
func (w *WebSocketSource) Close() error {
	if conn := w.getConn(); conn != nil {
		return conn.Close()
	}
	return nil
}
