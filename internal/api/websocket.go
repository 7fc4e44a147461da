// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// ProgressClient 表示一个订阅生成进度的 WebSocket 连接
type ProgressClient struct {
	conn     *websocket.Conn
	send     chan []byte
	closed   int32
	lastPing time.Time
}

// Close 安全关闭客户端连接
func (c *ProgressClient) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (c *ProgressClient) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// ProgressHub 向所有订阅者广播生成进度事件
type ProgressHub struct {
	clients map[*ProgressClient]bool
	mutex   sync.RWMutex
	logger  zerolog.Logger
}

// NewProgressHub 创建进度广播中心
func NewProgressHub(logger zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		clients: make(map[*ProgressClient]bool),
		logger:  logger.With().Str("component", "ws").Logger(),
	}
}

// ProgressEvent 推送给前端的进度消息
type ProgressEvent struct {
	Type      string    `json:"type"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish 广播一条进度消息；无订阅者时为空操作
func (h *ProgressHub) Publish(stage, message string) {
	event := ProgressEvent{
		Type:      "progress",
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- data:
		default:
			// 发送缓冲满，丢弃该条消息
		}
	}
}

func (h *ProgressHub) register(client *ProgressClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[client] = true
}

func (h *ProgressHub) unregister(client *ProgressClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, client)
	client.Close()
}

// HandleProgressSocket 处理 /ws/progress 连接升级与生命周期
func (h *ProgressHub) HandleProgressSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &ProgressClient{
		conn:     conn,
		send:     make(chan []byte, 64),
		lastPing: time.Now(),
	}
	h.register(client)
	h.logger.Debug().Msg("progress subscriber connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *ProgressHub) writeLoop(client *ProgressClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		h.unregister(client)
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ProgressHub) readLoop(client *ProgressClient) {
	defer h.unregister(client)

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.lastPing = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
