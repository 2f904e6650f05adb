package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeNewMail     MessageType = "new_mail"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Account   string          `json:"account,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMailData 新邮件通知数据
type NewMailData struct {
	EmailID  string `json:"emailId"`
	Account  string `json:"account"`
	Folder   string `json:"folder"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Category string `json:"category"`
	Preview  string `json:"preview,omitempty"`
	Date     string `json:"date"`
}

// Client 一个 WebSocket 客户端连接
//
// 未发送任何 subscribe 消息的客户端收到全部账户的事件；
// 订阅后只收到订阅账户的事件。
type Client struct {
	ID       string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	accounts map[string]bool // 订阅的账户
	mu       sync.RWMutex
	log      *zap.Logger
}

// Hub 管理所有 WebSocket 连接并广播新邮件事件。
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
}

// NewHub 创建 WebSocket Hub。
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *Message, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动 Hub，直到上下文取消。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// BroadcastNewEmail 将一封新入库的邮件推送给相关客户端。
func (h *Hub) BroadcastNewEmail(email *domain.Email) {
	preview := email.Body
	if len(preview) > 100 {
		preview = preview[:100]
	}

	data, err := json.Marshal(NewMailData{
		EmailID:  email.ID,
		Account:  email.Account,
		Folder:   email.Folder,
		From:     email.From.Address,
		Subject:  email.Subject,
		Category: string(email.Category),
		Preview:  preview,
		Date:     email.Date.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal new mail data", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeNewMail,
		Account:   email.Account,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		// 广播队列满时丢弃，实时通道不保证送达
		h.log.Warn("broadcast queue full, dropping event", zap.String("email_id", email.ID))
	}
}

// deliver 按订阅关系投递消息。
func (h *Hub) deliver(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if !client.wantsAccount(msg.Account) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
}

// ClientCount 返回当前连接的客户端数量。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 处理 WebSocket 连接升级。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:       uuid.NewString(),
			conn:     conn,
			send:     make(chan []byte, 256),
			hub:      hub,
			accounts: make(map[string]bool),
			log:      hub.log,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// wantsAccount 判断客户端是否关心指定账户的事件。
func (c *Client) wantsAccount(account string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.accounts) == 0 {
		return true
	}
	return c.accounts[account]
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(msg.Account)
	case MessageTypeUnsubscribe:
		c.unsubscribe(msg.Account)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribe 订阅账户事件
func (c *Client) subscribe(account string) {
	if account == "" {
		c.sendError("account is required")
		return
	}

	c.mu.Lock()
	c.accounts[account] = true
	c.mu.Unlock()

	c.log.Info("subscribed to account",
		zap.String("clientID", c.ID),
		zap.String("account", account))

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		Account:   account,
		Timestamp: time.Now(),
	})
}

// unsubscribe 取消订阅账户事件
func (c *Client) unsubscribe(account string) {
	c.mu.Lock()
	delete(c.accounts, account)
	c.mu.Unlock()

	c.log.Info("unsubscribed from account",
		zap.String("clientID", c.ID),
		zap.String("account", account))
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
