package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pdftext/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// WebSocket message types for the session protocol
const (
	// Client -> Server messages
	MsgTypeExtract = "extract"
	MsgTypeCancel  = "cancel"
	MsgTypeReset   = "reset"
	MsgTypeEscape  = "escape"
	MsgTypePing    = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "state"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error payload
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan WSMessage
	once sync.Once
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.send) })
}

// Hub pushes session snapshots to every connected websocket client and
// executes the commands they send. It implements lifecycle.Renderer.
type Hub struct {
	ctrl     SessionController
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[string]*wsClient
}

// NewHub creates a hub. bufferKB sizes the upgrader's read and write buffers.
func NewHub(bufferKB int, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if bufferKB <= 0 {
		bufferKB = 64
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  bufferKB * 1024,
			WriteBufferSize: bufferKB * 1024,
		},
		log:     logger.WithField("component", "websocket"),
		clients: make(map[string]*wsClient),
	}
}

// Attach sets the controller that client commands are applied to.
func (h *Hub) Attach(ctrl SessionController) {
	h.ctrl = ctrl
}

// OnStateChange broadcasts a snapshot. It never blocks: a client whose
// buffer is full is disconnected.
func (h *Hub) OnStateChange(session models.UploadSession) {
	msg := stateMessage(session)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			h.log.WithField("client", id).Warn("Dropping slow websocket client")
			delete(h.clients, id)
			cl.close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades HTTP connection to WebSocket and runs the session protocol
func (h *Hub) HandleWebSocket(c echo.Context) error {
	if h.ctrl == nil {
		return NewServiceUnavailableError("session controller not attached")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	cl := &wsClient{
		id:   uuid.New().String(),
		conn: ws,
		send: make(chan WSMessage, sendBufferSize),
	}
	log := h.log.WithField("client", cl.id)

	cl.send <- WSMessage{Type: MsgTypeConnected, ID: cl.id, Timestamp: time.Now().UnixMilli()}

	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()
	// Taken after registering so the last state the client sees is current.
	h.enqueue(cl, stateMessage(h.ctrl.Snapshot()))

	done := make(chan struct{})
	go h.writePump(cl, done)

	log.Info("Client connected")

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("Connection error")
			}
			break
		}
		if reply, ok := h.dispatch(msg); ok {
			if !h.enqueue(cl, reply) {
				break
			}
		}
	}

	h.mu.Lock()
	if h.clients[cl.id] == cl {
		delete(h.clients, cl.id)
		cl.close()
	}
	h.mu.Unlock()
	<-done

	log.Info("Client disconnected")
	return nil
}

// dispatch applies one client command. State changes reach the client
// through the broadcast, so only pings and failures produce a direct reply.
func (h *Hub) dispatch(msg WSMessage) (WSMessage, bool) {
	var err error
	switch msg.Type {
	case MsgTypePing:
		// Respond with pong to keep connection alive
		return WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()}, true
	case MsgTypeExtract:
		err = h.ctrl.StartExtraction()
	case MsgTypeCancel:
		h.ctrl.Cancel()
	case MsgTypeReset:
		h.ctrl.Reset()
	case MsgTypeEscape:
		err = h.ctrl.Escape()
	default:
		return errorMessage(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE"), true
	}

	if err != nil {
		apiErr := NewLifecycleError(err)
		return errorMessage(msg.ID, apiErr.Message, apiErr.Code), true
	}
	return WSMessage{}, false
}

func (h *Hub) enqueue(cl *wsClient, msg WSMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[cl.id] != cl {
		return false
	}
	select {
	case cl.send <- msg:
		return true
	default:
		delete(h.clients, cl.id)
		cl.close()
		return false
	}
}

func (h *Hub) writePump(cl *wsClient, done chan<- struct{}) {
	defer close(done)
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(msg); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				h.log.WithError(err).WithField("client", cl.id).Debug("Failed to send message")
			}
			// Unblock the reader so the handler can finish.
			cl.conn.Close()
			for range cl.send {
			}
			return
		}
	}
	cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func stateMessage(session models.UploadSession) WSMessage {
	return WSMessage{
		Type:      MsgTypeState,
		Payload:   mustJSON(session),
		Timestamp: time.Now().UnixMilli(),
	}
}

func errorMessage(id, message, code string) WSMessage {
	return WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
		Timestamp: time.Now().UnixMilli(),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
