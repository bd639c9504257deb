package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 32
)

// Hub fans filter updates out to the members of an assessment room
type Hub struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	rooms   map[string]map[*client]struct{}
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan dto.RealtimeMessage
	room string // guarded by hub.mu

	sendMu sync.Mutex
	closed bool // guarded by sendMu
}

// NewHub creates a hub; allowOrigin decides which browser origins may connect, nil allows all
func NewHub(logger *zap.Logger, m *metrics.Metrics, allowOrigin func(origin string) bool) *Hub {
	h := &Hub{
		logger:  logger.Named("realtime"),
		metrics: m,
		rooms:   make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowOrigin == nil {
				return true
			}
			return allowOrigin(origin)
		},
	}
	return h
}

// HandleWebSocket upgrades the request and serves the client until it disconnects
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan dto.RealtimeMessage, sendBuffer),
	}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Debug("websocket client connected", zap.String("client_id", cl.id))

	go cl.writePump()
	cl.readPump()
}

// RoomSize returns the number of clients in the room
func (h *Hub) RoomSize(assessmentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[assessmentID])
}

// Shutdown closes every connection and rejects new ones
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for _, cl := range clients {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		cl.close()
	}
	return ctx.Err()
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.metrics.WSConnected()
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	h.leaveLocked(cl)
	delete(h.clients, cl)
	h.metrics.WSDisconnected()
}

// join moves cl into room and returns the new member count
func (h *Hub) join(cl *client, room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(cl)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[cl] = struct{}{}
	cl.room = room
	return len(members)
}

func (h *Hub) leave(cl *client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(cl)
}

func (h *Hub) leaveLocked(cl *client) string {
	room := cl.room
	if room == "" {
		return ""
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, cl)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	cl.room = ""
	return room
}

// broadcast delivers msg to every member of room except the sender.
// Slow clients whose buffer is full are dropped.
func (h *Hub) broadcast(room string, from *client, msg dto.RealtimeMessage) int {
	h.mu.RLock()
	var targets []*client
	for cl := range h.rooms[room] {
		if cl != from {
			targets = append(targets, cl)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, cl := range targets {
		if cl.trySend(msg) {
			delivered++
			continue
		}
		h.logger.Warn("dropping slow websocket client", zap.String("client_id", cl.id))
		cl.close()
	}
	return delivered
}

func (h *Hub) handle(cl *client, raw []byte) {
	var msg dto.RealtimeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		cl.trySend(errorMessage("invalid message"))
		return
	}

	switch msg.Type {
	case dto.MsgTypeJoin:
		if msg.AssessmentID == "" {
			cl.trySend(errorMessage("assessmentId is required"))
			return
		}
		members := h.join(cl, msg.AssessmentID)
		cl.trySend(dto.RealtimeMessage{
			Type:         dto.MsgTypeJoined,
			AssessmentID: msg.AssessmentID,
			Members:      members,
			Timestamp:    time.Now().UnixMilli(),
		})
	case dto.MsgTypeLeave:
		room := h.leave(cl)
		cl.trySend(dto.RealtimeMessage{
			Type:         dto.MsgTypeLeft,
			AssessmentID: room,
			Timestamp:    time.Now().UnixMilli(),
		})
	case dto.MsgTypeFilterUpdate:
		if msg.AssessmentID == "" {
			cl.trySend(errorMessage("assessmentId is required"))
			return
		}
		if h.roomOf(cl) != msg.AssessmentID {
			cl.trySend(errorMessage("join assessment " + msg.AssessmentID + " before sending filter updates"))
			return
		}
		h.broadcast(msg.AssessmentID, cl, dto.RealtimeMessage{
			Type:         dto.MsgTypeFiltersUpdated,
			AssessmentID: msg.AssessmentID,
			Filters:      msg.Filters,
			From:         cl.id,
			Timestamp:    time.Now().UnixMilli(),
		})
	default:
		cl.trySend(errorMessage("unknown message type: " + msg.Type))
	}
}

func errorMessage(text string) dto.RealtimeMessage {
	return dto.RealtimeMessage{Type: dto.MsgTypeError, Message: text, Timestamp: time.Now().UnixMilli()}
}

// trySend queues msg without blocking; it reports false once the client is closed or its buffer is full
func (cl *client) trySend(msg dto.RealtimeMessage) bool {
	cl.sendMu.Lock()
	defer cl.sendMu.Unlock()
	if cl.closed {
		return false
	}
	select {
	case cl.send <- msg:
		return true
	default:
		return false
	}
}

func (cl *client) close() {
	cl.sendMu.Lock()
	defer cl.sendMu.Unlock()
	if cl.closed {
		return
	}
	cl.closed = true
	close(cl.send)
}

func (h *Hub) roomOf(cl *client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cl.room
}

func (cl *client) readPump() {
	defer func() {
		cl.hub.unregister(cl)
		cl.close()
		_ = cl.conn.Close()
		cl.hub.logger.Debug("websocket client disconnected", zap.String("client_id", cl.id))
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				cl.hub.logger.Warn("websocket read failed", zap.String("client_id", cl.id), zap.Error(err))
			}
			return
		}
		cl.hub.handle(cl, raw)
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
