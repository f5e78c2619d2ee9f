package notifyhub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const writeWait = 5 * time.Second

// client serializes writes, gorilla connections allow one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub holds the local UI WebSocket connections and broadcasts toasts, connection status
// and reload signals to all of them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[*websocket.Conn]*client
	lastStatus *types.Notification
}

// New creates a new notify hub.
func New() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]*client),
	}
}

// Register adds a WebSocket connection to the hub and sends it the latest status.
func (h *Hub) Register(conn *websocket.Conn) {
	c := &client{conn: conn}
	h.mu.Lock()
	h.conns[conn] = c
	last := h.lastStatus
	h.mu.Unlock()

	if last != nil {
		if payload, err := sonic.Marshal(last); err == nil {
			_ = c.write(payload)
		}
	}
}

// Unregister removes a WebSocket connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Clients returns the number of registered connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends the notification as JSON to all registered connections.
func (h *Hub) Broadcast(notification *types.Notification) {
	if notification == nil {
		return
	}
	payload, err := sonic.Marshal(notification)
	if err != nil {
		tool.DefaultLogger.Errorf("[Hub] marshal %s: %v", notification.Type, err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			tool.DefaultLogger.Debugf("[Hub] write failed: %v", err)
		}
	}
}

// Toast shows an in-app alert in every connected view.
func (h *Hub) Toast(title, message string) {
	h.Broadcast(&types.Notification{
		ID:        tool.GenerateRandomUUID(),
		Type:      types.NotifyTypeToast,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// BroadcastReload tells views to refetch; signal is one of types.ReloadSignals.
func (h *Hub) BroadcastReload(signal string) {
	h.Broadcast(&types.Notification{
		Type:      types.NotifyTypeReload,
		Message:   signal,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PushStatus broadcasts the badge status and remembers it for views that connect later.
func (h *Hub) PushStatus(status types.ConnectionStatus) {
	n := &types.Notification{
		Type:    types.NotifyTypeStatus,
		Message: status.Message,
		Data: map[string]any{
			"state":        string(status.State),
			"visible":      status.Visible,
			"retryEnabled": status.RetryEnabled,
			"hasConnected": status.HasConnected,
		},
		Timestamp: time.Now().UnixMilli(),
	}
	h.mu.Lock()
	h.lastStatus = n
	h.mu.Unlock()
	h.Broadcast(n)
}
