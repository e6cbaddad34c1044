package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"
)

const defaultClientBuffer = 32

// ClientConfig configures Dial.
type ClientConfig struct {
	// ServerURL is the http(s) base URL of the server; the websocket lives at /ws.
	ServerURL string
	Token     string
	// UserID identifies the local user; events carrying it are not delivered
	// to subscribers.
	UserID string
	// Buffer bounds the outgoing queue. Publish drops when it is full.
	Buffer int
}

// Client is a live progress connection. Publish never blocks the caller.
type Client struct {
	conn   *websocket.Conn
	userID string
	logger *slog.Logger

	out     chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64

	mu       sync.RWMutex
	handlers []func(Event)
}

// Dial connects to the live relay of the server.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	wsURL, origin, err := websocketURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	wcfg, err := websocket.NewConfig(wsURL, origin)
	if err != nil {
		return nil, fmt.Errorf("building websocket config: %w", err)
	}
	if cfg.Token != "" {
		wcfg.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	conn, err := wcfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialing live relay: %w", err)
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	c := &Client{
		conn:   conn,
		userID: cfg.UserID,
		logger: logger,
		out:    make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

func websocketURL(serverURL string) (string, string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", "", fmt.Errorf("parsing server url: %w", err)
	}
	origin := u.String()
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), origin, nil
}

// Publish queues ev for sending. It drops the event when the queue is full or
// the client is closed.
func (c *Client) Publish(ev Event) {
	data, err := encodeEvent(ev)
	if err != nil {
		c.dropped.Add(1)
		return
	}
	select {
	case <-c.done:
		c.dropped.Add(1)
		return
	default:
	}
	select {
	case c.out <- data:
	default:
		c.dropped.Add(1)
	}
}

// Subscribe registers h for events from other users. Handlers run on the
// reader goroutine and must not block.
func (c *Client) Subscribe(h func(Event)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// Dropped returns the number of events that were not sent.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Close shuts the connection and waits for the reader and writer to exit.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := websocket.Message.Send(c.conn, string(data)); err != nil {
				c.dropped.Add(1)
				if !c.closing() {
					c.logger.Debug("live publish failed", "error", err)
				}
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	for {
		var f frame
		if err := websocket.JSON.Receive(c.conn, &f); err != nil {
			if c.closing() || errors.Is(err, io.EOF) {
				return
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			c.logger.Warn("live connection lost", "error", err)
			return
		}
		if f.Type != TypeExerciseUpdate {
			continue
		}
		var ev Event
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			c.logger.Debug("ignoring malformed live event", "error", err)
			continue
		}
		if ev.UserID == c.userID {
			continue
		}
		c.mu.RLock()
		handlers := c.handlers
		c.mu.RUnlock()
		for _, h := range handlers {
			h(ev)
		}
	}
}
