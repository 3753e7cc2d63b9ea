package display

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 200 * time.Millisecond

// 事件类型
const (
	EventState    = "state"
	EventEstimate = "estimate"
)

// Event 推送给 websocket 客户端的事件
type Event struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id"`
	State     string                    `json:"state,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Estimate  *models.HeartRateEstimate `json:"estimate,omitempty"`
	Timestamp int64                     `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub websocket 广播（会话观察者）
type Hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]bool
	writeMu sync.Mutex
	logger  *zap.Logger
	now     func() time.Time
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast 发送事件给所有客户端，写失败的连接被移除
func (h *Hub) Broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("Failed to marshal hub event", zap.Error(err))
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, c := range h.snapshot() {
		_ = c.SetWriteDeadline(h.now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug("Dropping websocket client", zap.Error(err))
			_ = c.Close()
			h.remove(c)
		}
	}
}

// OnStateChange 会话状态变化
func (h *Hub) OnStateChange(change session.StateChange) {
	h.Broadcast(Event{
		Type:      EventState,
		SessionID: change.SessionID,
		State:     change.To.String(),
		Message:   change.Message,
		Timestamp: h.now().UnixMilli(),
	})
}

// OnEstimate 每次估计更新（不含原始读数）
func (h *Hub) OnEstimate(sessionID string, est *models.HeartRateEstimate) {
	summary := est.Summary()
	h.Broadcast(Event{
		Type:      EventEstimate,
		SessionID: sessionID,
		Estimate:  &summary,
		Timestamp: h.now().UnixMilli(),
	})
}

// ServeWS 升级为 websocket，读循环只用于感知断开
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	h.add(conn)
	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, c := range h.snapshot() {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			h.now().Add(writeTimeout))
		_ = c.Close()
		h.remove(c)
	}
}
