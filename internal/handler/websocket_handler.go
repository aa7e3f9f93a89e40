package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopassist/shopassist-go/internal/model"
	"github.com/shopassist/shopassist-go/internal/service"
	"go.uber.org/zap"
)

// 每个连接最多排队的未处理对话数
const chatQueueSize = 8

// WebSocketHandler WebSocket 聊天通道
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	sessions  *service.SessionService
	assistant *service.AssistantService
	logger    *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器，allowedOrigins 为空时接受任意来源
func NewWebSocketHandler(sessions *service.SessionService, assistant *service.AssistantService,
	allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		sessions:  sessions,
		assistant: assistant,
		logger:    logger,
	}
}

// HandleWebSocket WebSocket 连接入口
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	h.sessions.Register(sessionID, conn, c.ClientIP())
	defer h.sessions.Remove(sessionID)

	// 同一连接上的对话按到达顺序逐条处理，连接断开后取消仍在进行的对话
	ctx, cancel := context.WithCancel(context.Background())
	chats := make(chan model.ChatMessage, chatQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range chats {
			h.processChat(ctx, sessionID, msg)
		}
	}()
	defer func() {
		cancel()
		close(chats)
		<-done
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}
		h.sessions.Touch(sessionID)

		var msg model.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("无法解析的消息帧", zap.String("sessionId", sessionID), zap.Error(err))
			h.sendError(sessionID, "", "Invalid message format")
			continue
		}
		h.handleMessage(sessionID, msg, chats)
	}

	h.logger.Info("WebSocket 连接断开", zap.String("sessionId", sessionID))
}

func (h *WebSocketHandler) handleMessage(sessionID string, msg model.ChatMessage, chats chan<- model.ChatMessage) {
	switch msg.Type {
	case model.MessageTypeChat:
		select {
		case chats <- msg:
		default:
			h.logger.Warn("待处理对话过多，丢弃消息", zap.String("sessionId", sessionID))
			h.sendError(sessionID, msg.MessageID, "Too many pending messages")
		}

	case model.MessageTypeHeartbeat:
		h.logger.Debug("收到心跳", zap.String("sessionId", sessionID))

	default:
		h.logger.Warn("未知消息类型",
			zap.String("sessionId", sessionID),
			zap.String("type", msg.Type))
	}
}

func (h *WebSocketHandler) processChat(ctx context.Context, sessionID string, msg model.ChatMessage) {
	req := model.ChatRequest{
		Message: msg.Content,
		Image:   parseImage(msg.ImageData, h.logger),
	}

	result, err := h.assistant.Handle(ctx, req)
	if err != nil {
		text := "Sorry, something went wrong. Please try again."
		if errors.Is(err, service.ErrValidation) {
			text = "Message is required"
		}
		h.sendError(sessionID, msg.MessageID, text)
		return
	}

	h.sessions.Send(sessionID, model.NewResponseMessage(sessionID, result))
}

func (h *WebSocketHandler) sendError(sessionID, messageID, text string) {
	h.sessions.Send(sessionID, model.ChatMessage{
		MessageID: messageID,
		Type:      model.MessageTypeError,
		Content:   text,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}
