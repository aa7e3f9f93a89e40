package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopassist/shopassist-go/internal/model"
	"go.uber.org/zap"
)

// ErrSessionNotFound 会话不存在或已断开
var ErrSessionNotFound = errors.New("session not found")

// SessionService WebSocket 会话管理
type SessionService struct {
	sessions map[string]*model.ChatSession // sessionId -> session
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewSessionService 创建会话管理服务
func NewSessionService(logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: make(map[string]*model.ChatSession),
		logger:   logger,
	}
}

// Register 注册会话
func (s *SessionService) Register(sessionID string, conn *websocket.Conn, clientIP string) *model.ChatSession {
	session := model.NewChatSession(sessionID, conn, clientIP)

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	s.logger.Info("会话注册成功",
		zap.String("sessionId", sessionID),
		zap.String("clientIp", clientIP))
	return session
}

// Send 向指定会话推送消息
func (s *SessionService) Send(sessionID string, message interface{}) error {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("会话不存在，消息未发送", zap.String("sessionId", sessionID))
		return ErrSessionNotFound
	}

	if err := session.Send(message); err != nil {
		s.logger.Error("消息发送失败",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		s.Remove(sessionID)
		return err
	}
	return nil
}

// Touch 刷新会话活跃时间
func (s *SessionService) Touch(sessionID string) bool {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	session.Touch()
	return true
}

// Remove 移除会话
func (s *SessionService) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.logger.Info("会话已移除", zap.String("sessionId", sessionID))
	}
}

// Count 在线会话数
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunHeartbeatChecker 定期清理失去心跳的会话，ctx 取消时退出
func (s *SessionService) RunHeartbeatChecker(ctx context.Context, interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now, idleTimeout)
		}
	}
}

func (s *SessionService) sweep(now time.Time, idleTimeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		missed, expired := session.CheckIdle(now, idleTimeout)
		switch {
		case expired:
			s.logger.Info("清理无效会话",
				zap.String("sessionId", id),
				zap.Int("missedBeats", missed))
			session.Conn.Close()
			delete(s.sessions, id)
		case missed > 0:
			s.logger.Warn("会话心跳丢失",
				zap.String("sessionId", id),
				zap.Int("missedBeats", missed))
		}
	}
}
