package model

import (
	"encoding/json"
	"time"
)

// WebSocket 消息类型
const (
	MessageTypeChat       = "CHAT"
	MessageTypeHeartbeat  = "HEARTBEAT"
	MessageTypeAIResponse = "AI_RESPONSE"
	MessageTypeError      = "ERROR"
)

// ChatMessage WebSocket 通道上的聊天帧
type ChatMessage struct {
	MessageID      string          `json:"messageId,omitempty"`
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	ImageData      json.RawMessage `json:"imageData,omitempty"` // data URL，仅客户端发送
	SessionID      string          `json:"sessionId,omitempty"`
	Source         string          `json:"source,omitempty"`
	QualityMetrics *QualityMetrics `json:"qualityMetrics,omitempty"`
	PurchaseIntent *PurchaseIntent `json:"purchaseIntent,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewResponseMessage 将助手结果封装为 AI_RESPONSE 帧
func NewResponseMessage(sessionID string, result *AssistantResult) ChatMessage {
	return ChatMessage{
		MessageID:      result.MessageID,
		Type:           MessageTypeAIResponse,
		Content:        result.Reply,
		SessionID:      sessionID,
		Source:         result.Source,
		QualityMetrics: result.QualityMetrics,
		PurchaseIntent: result.PurchaseIntent,
		Timestamp:      time.Now(),
	}
}
