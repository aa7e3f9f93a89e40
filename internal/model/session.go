package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxMissedBeats 连续丢失心跳达到该次数即清理会话
const maxMissedBeats = 3

// ChatSession WebSocket 聊天会话
type ChatSession struct {
	SessionID     string
	Conn          *websocket.Conn
	ClientIP      string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.Mutex // 保护心跳字段与连接写入
}

// NewChatSession 创建会话
func NewChatSession(sessionID string, conn *websocket.Conn, clientIP string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		SessionID:     sessionID,
		Conn:          conn,
		ClientIP:      clientIP,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
}

// Touch 收到心跳或消息时刷新活跃时间
func (s *ChatSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = time.Now()
	s.MissedBeats = 0
}

// CheckIdle 超过 timeout 未活跃则累计一次丢失心跳，返回是否应清理
func (s *ChatSession) CheckIdle(now time.Time, timeout time.Duration) (missed int, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.LastHeartbeat) <= timeout {
		return s.MissedBeats, false
	}
	s.MissedBeats++
	return s.MissedBeats, s.MissedBeats >= maxMissedBeats
}

// Send 向连接写入 JSON（线程安全）
func (s *ChatSession) Send(message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteJSON(message)
}
