package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/debatecards/debate-server-go/internal/config"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// WSMessage is the envelope for every websocket frame in both directions.
type WSMessage struct {
	Type   string          `json:"type"`
	GameID string          `json:"game_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Message types.
const (
	MessageEvent       = "event"
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageSubscribed  = "subscribed"
	MessageError       = "error"
)

type outbound struct {
	gameID  string
	client  *Client // set for direct replies
	payload []byte
}

// Hub fans engine events out to websocket clients. A client receives every
// game's events until it subscribes to a single game.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	broadcast  chan outbound
	direct     chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.Mutex
	bus     *rules.EventBus
	handles []int
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, sendBuffer),
		direct:     make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Attach subscribes the hub to bus. With commands the hub only forwards
// those event kinds. Events published while the hub is backed up are dropped
// rather than blocking the engine.
func (h *Hub) Attach(bus *rules.EventBus, commands ...rules.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe()
	h.bus = bus
	if len(commands) == 0 {
		h.handles = append(h.handles, bus.Subscribe(h.Publish))
		return
	}
	for _, command := range commands {
		h.handles = append(h.handles, bus.SubscribeTyped(command, h.Publish))
	}
}

// Detach removes the hub from its event bus.
func (h *Hub) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe()
}

func (h *Hub) unsubscribe() {
	for _, handle := range h.handles {
		h.bus.Unsubscribe(handle)
	}
	h.handles = nil
}

// Publish queues an event for broadcast.
func (h *Hub) Publish(event rules.Event) {
	data, err := json.Marshal(eventView(event))
	if err != nil {
		h.warn("failed to encode event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(WSMessage{Type: MessageEvent, GameID: event.GameID, Data: data})
	if err != nil {
		h.warn("failed to encode message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{gameID: event.GameID, payload: payload}:
	case <-h.done:
	default:
		h.warn("event dropped, hub is backed up", zap.String("game_id", event.GameID))
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.logger != nil {
				h.logger.Debug("websocket client connected", zap.Int("clients", len(h.clients)))
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.payload)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.wants(msg.gameID) {
					h.deliver(client, msg.payload)
				}
			}
		}
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) warn(msg string, fields ...zap.Field) {
	if h.logger != nil {
		h.logger.Warn(msg, fields...)
	}
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	gameID string
}

func (c *Client) wants(gameID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID == "" || c.gameID == gameID
}

func (c *Client) setGame(gameID string) {
	c.mu.Lock()
	c.gameID = gameID
	c.mu.Unlock()
}

func (c *Client) reply(msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- outbound{client: c, payload: payload}:
	case <-c.hub.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.warn("websocket read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case MessageSubscribe:
			c.setGame(msg.GameID)
			c.reply(WSMessage{Type: MessageSubscribed, GameID: msg.GameID})
		case MessageUnsubscribe:
			c.setGame("")
			c.reply(WSMessage{Type: MessageSubscribed})
		default:
			data, _ := json.Marshal(map[string]string{"message": "unknown message type " + msg.Type})
			c.reply(WSMessage{Type: MessageError, Data: data})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades HTTP requests to websocket clients of the hub. An optional
// game_id query parameter pre-subscribes the client to one game.
func (h *Hub) Handler(cfg config.WebSocketConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			hub:    h,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			gameID: r.URL.Query().Get("game_id"),
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}

// StartWebSocketServer serves the hub on cfg.Address until ctx is cancelled.
// The returned channel reports the terminal serve error, if any.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, logger *zap.Logger) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, hub.Handler(cfg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("websocket server listening", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv, errCh
}
