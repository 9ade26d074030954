// Package signalk is a small Signal K v1 stream client: it keeps one
// websocket open to the server, multiplexes path subscriptions over it and
// sends PUT requests.
package signalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/websocket"
)

// Defaults applied by NewClient for zero Config fields.
const (
	DefaultReconnectMin = 1 * time.Second
	DefaultReconnectMax = 30 * time.Second
	DefaultQueueSize    = 64

	listenerBuffer = 16
	writeTimeout   = 5 * time.Second
)

// ErrNotConnected is returned by Handshake when the handshake did not produce a
// hello message.
var ErrNotConnected = errors.New("signalk: not connected")

// Config configures a Client.
type Config struct {
	// URL is the stream endpoint, e.g. ws://localhost:3000/signalk/v1/stream.
	// http and https URLs are converted to ws and wss.
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	QueueSize    int
	Logger       *slog.Logger
}

type listener struct {
	ch     chan PathUpdate
	source string
}

// Client is a Signal K stream connection shared by all subscribers.
type Client struct {
	cfg    Config
	logger *slog.Logger

	puts chan putRequest

	mu        sync.RWMutex
	conn      *websocket.Conn
	listeners map[string]map[*listener]struct{}

	connected chan struct{} // closed and replaced on every state change
}

// NewClient creates a client. Nothing is dialed until Run is called.
func NewClient(cfg Config) (*Client, error) {
	u, err := streamURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	cfg.URL = u
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = DefaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = DefaultReconnectMax
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:       cfg,
		logger:    logger.With("component", "signalk"),
		puts:      make(chan putRequest, cfg.QueueSize),
		listeners: make(map[string]map[*listener]struct{}),
		connected: make(chan struct{}),
	}, nil
}

// streamURL normalizes u to a ws/wss stream URL without server-side default
// subscriptions.
func streamURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid signalk url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid signalk url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/signalk/v1/stream"
	}
	q := u.Query()
	if q.Get("subscribe") == "" {
		q.Set("subscribe", "none")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// URL returns the normalized stream URL.
func (c *Client) URL() string {
	return c.cfg.URL
}

// Connected reports whether a stream is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Run keeps the stream open until ctx is done, reconnecting with
// exponential backoff. Subscriptions registered before or during an outage
// are sent again after every reconnect.
func (c *Client) Run(ctx context.Context) error {
	for {
		var conn *websocket.Conn
		err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
			var err error
			conn, err = c.dial(ctx)
			if err != nil {
				c.logger.Warn("signalk connect failed", "url", c.cfg.URL, "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("signalk connect: %w", err)
		}

		c.logger.Info("signalk connected", "url", c.cfg.URL)
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("signalk connection lost", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectMin):
		}
	}
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.ReconnectMin)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(c.cfg.ReconnectMax, b)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsCfg, err := websocket.NewConfig(c.cfg.URL, "http://localhost/")
	if err != nil {
		return nil, fmt.Errorf("failed to build websocket config: %w", err)
	}
	if c.cfg.Token != "" {
		wsCfg.Header = http.Header{}
		wsCfg.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return wsCfg.DialContext(ctx)
}

// Handshake opens a short-lived stream and returns the server greeting.
func (c *Client) Handshake(ctx context.Context) (Hello, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return Hello{}, err
	}
	defer func() { _ = conn.Close() }()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	var msg inbound
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		return Hello{}, fmt.Errorf("failed to read hello: %w", err)
	}
	if msg.Name == "" && msg.Version == "" {
		return Hello{}, ErrNotConnected
	}
	return msg.Hello, nil
}

// serve runs one connected session: it resubscribes, then pumps queued PUTs
// out and deltas in until the connection fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		_ = conn.Close()
	}()

	if paths := c.paths(); len(paths) > 0 {
		if err := c.send(conn, subscribeMessage{Context: SelfContext, Subscribe: subscriptions(paths)}); err != nil {
			return fmt.Errorf("failed to resubscribe: %w", err)
		}
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.read(conn)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case req := <-c.puts:
			if err := c.send(conn, req); err != nil {
				c.logger.Warn("signalk put dropped", "path", req.Put.Path, "error", err)
				return err
			}
		}
	}
}

func (c *Client) read(conn *websocket.Conn) error {
	for {
		var msg inbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return err
		}
		switch {
		case msg.isResponse():
			if msg.StatusCode >= 300 {
				c.logger.Warn("signalk put rejected",
					"request_id", msg.RequestID, "status", msg.StatusCode, "message", msg.Message)
			}
		case len(msg.Updates) > 0:
			c.dispatch(msg.Updates)
		case msg.Name != "":
			c.logger.Debug("signalk hello", "server", msg.Name, "version", msg.Version, "self", msg.Self)
		}
	}
}

func (c *Client) send(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(conn, v)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	close(c.connected)
	c.connected = make(chan struct{})
	c.mu.Unlock()
}

// StateChanged returns a channel closed on the next connect or disconnect.
func (c *Client) StateChanged() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Publish queues a PUT of value to path tagged with origin. It never blocks:
// when the queue is full the request is dropped and logged.
func (c *Client) Publish(path string, value any, origin string) {
	req := putRequest{
		Context:   SelfContext,
		RequestID: uuid.New().String(),
		Put:       putValue{Path: path, Value: value, Source: origin},
	}
	select {
	case c.puts <- req:
	default:
		c.logger.Warn("signalk put queue full, dropping request", "path", path)
	}
}

// Subscribe delivers values of path until ctx is done. A non-empty
// sourceFilter keeps only updates whose source matches it. The returned
// channel is closed after ctx is done. When a listener falls behind, its
// oldest pending value is replaced by the newest.
func (c *Client) Subscribe(ctx context.Context, path, sourceFilter string) <-chan PathUpdate {
	l := &listener{ch: make(chan PathUpdate, listenerBuffer), source: sourceFilter}

	c.mu.Lock()
	set, ok := c.listeners[path]
	if !ok {
		set = make(map[*listener]struct{})
		c.listeners[path] = set
	}
	set[l] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if !ok && conn != nil {
		if err := c.send(conn, subscribeMessage{Context: SelfContext, Subscribe: subscriptions([]string{path})}); err != nil {
			c.logger.Warn("signalk subscribe failed, will retry on reconnect", "path", path, "error", err)
		}
	}
	c.logger.Debug("signalk subscribed", "path", path, "source", sourceFilter)

	go func() {
		<-ctx.Done()
		c.remove(path, l)
	}()
	return l.ch
}

func (c *Client) remove(path string, l *listener) {
	c.mu.Lock()
	set := c.listeners[path]
	delete(set, l)
	last := len(set) == 0
	if last {
		delete(c.listeners, path)
	}
	close(l.ch)
	conn := c.conn
	c.mu.Unlock()

	if last && conn != nil {
		if err := c.send(conn, subscribeMessage{Context: SelfContext, Unsubscribe: []subscription{{Path: path}}}); err != nil {
			c.logger.Debug("signalk unsubscribe failed", "path", path, "error", err)
		}
	}
	c.logger.Debug("signalk unsubscribed", "path", path)
}

func (c *Client) dispatch(updates []deltaUpdate) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, u := range updates {
		src := u.source()
		ts := u.timestamp()
		for _, v := range u.Values {
			for l := range c.listeners[v.Path] {
				if l.source != "" && l.source != src {
					continue
				}
				deliver(l.ch, PathUpdate{Path: v.Path, Value: v.Value, Source: src, Timestamp: ts})
			}
		}
	}
}

// deliver sends without blocking, evicting the oldest value when full.
func deliver(ch chan PathUpdate, u PathUpdate) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// paths returns the currently subscribed paths.
func (c *Client) paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.listeners))
	for p := range c.listeners {
		out = append(out, p)
	}
	return out
}

func subscriptions(paths []string) []subscription {
	out := make([]subscription, len(paths))
	for i, p := range paths {
		out[i] = subscription{Path: p, Policy: "instant"}
	}
	return out
}
