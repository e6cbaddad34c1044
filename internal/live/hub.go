package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const maxDecodeErrorsPerConn = 8

// Drop reasons reported to HubMetrics.
const (
	DropSlowPeer    = "slow_peer"
	DropTooLarge    = "too_large"
	DropRateLimited = "rate_limited"
	DropMalformed   = "malformed"
)

// HubConfig bounds what a single connection may send.
type HubConfig struct {
	MaxFrameBytes      int
	MaxFramesPerSecond int
	PeerBuffer         int
}

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// HubMetrics observes relay traffic.
type HubMetrics interface {
	PeerConnected()
	PeerDisconnected()
	FrameRelayed()
	FrameDropped(reason string)
}

type userIDKey struct{}

// Hub relays exercise_update frames from each connection to every other
// connection. A peer whose queue is full misses the frame.
type Hub struct {
	cfg     HubConfig
	auth    Authenticator
	metrics HubMetrics
	logger  *slog.Logger
	ws      websocket.Server

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

type peer struct {
	userID string
	conn   *websocket.Conn
	out    chan []byte
}

// NewHub creates a relay hub. auth may be nil to accept anonymous peers.
func NewHub(cfg HubConfig, auth Authenticator, metrics HubMetrics, logger *slog.Logger) *Hub {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 4096
	}
	if cfg.MaxFramesPerSecond <= 0 {
		cfg.MaxFramesPerSecond = 20
	}
	if cfg.PeerBuffer <= 0 {
		cfg.PeerBuffer = 64
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	h := &Hub{
		cfg:     cfg,
		auth:    auth,
		metrics: metrics,
		logger:  logger,
		peers:   make(map[*peer]struct{}),
	}
	h.ws = websocket.Server{
		// Accept upgrades regardless of Origin.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.handleConn,
	}
	return h
}

// ServeHTTP authenticates the upgrade request and hands it to the websocket server.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := "anonymous"
	if h.auth != nil {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		id, err := h.auth.Authenticate(token)
		if err != nil {
			h.logger.Warn("live relay rejected token", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		userID = id
	}
	r = r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID))
	h.ws.ServeHTTP(w, r)
}

func tokenFromRequest(r *http.Request) string {
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close disconnects every peer. Hijacked connections are not closed by
// http.Server.Shutdown, so the server calls this on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		_ = p.conn.Close()
	}
}

func (h *Hub) handleConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.MaxPayloadBytes = h.cfg.MaxFrameBytes

	userID, _ := conn.Request().Context().Value(userIDKey{}).(string)
	p := &peer{userID: userID, conn: conn, out: make(chan []byte, h.cfg.PeerBuffer)}

	h.add(p)
	writerDone := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop(stop)
	}()
	defer func() {
		h.remove(p)
		close(stop)
		<-writerDone
	}()

	h.logger.Debug("live peer connected", "user_id", userID)

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				h.metrics.FrameDropped(DropTooLarge)
				continue
			}
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("live peer read failed", "user_id", userID, "error", err)
			}
			return
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > h.cfg.MaxFramesPerSecond {
			h.metrics.FrameDropped(DropRateLimited)
			continue
		}

		data, ok := h.stamp(raw, userID)
		if !ok {
			h.metrics.FrameDropped(DropMalformed)
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				h.logger.Warn("closing live peer after repeated malformed frames", "user_id", userID)
				return
			}
			continue
		}
		decodeErrors = 0
		h.broadcast(p, data)
	}
}

// stamp validates an exercise_update frame and overwrites its sender with the
// authenticated user id.
func (h *Hub) stamp(raw []byte, userID string) ([]byte, bool) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type != TypeExerciseUpdate {
		return nil, false
	}
	var ev Event
	if err := json.Unmarshal(f.Payload, &ev); err != nil {
		return nil, false
	}
	ev.UserID = userID
	data, err := encodeEvent(ev)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.metrics.PeerConnected()
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	h.metrics.PeerDisconnected()
}

func (h *Hub) broadcast(from *peer, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		if p == from {
			continue
		}
		select {
		case p.out <- data:
			h.metrics.FrameRelayed()
		default:
			h.metrics.FrameDropped(DropSlowPeer)
		}
	}
}

func (p *peer) writeLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case data := <-p.out:
			if err := websocket.Message.Send(p.conn, string(data)); err != nil {
				// The reader notices the broken connection and unregisters us.
				return
			}
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) PeerConnected()      {}
func (nopMetrics) PeerDisconnected()   {}
func (nopMetrics) FrameRelayed()       {}
func (nopMetrics) FrameDropped(string) {}
