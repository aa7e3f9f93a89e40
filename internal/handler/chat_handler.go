package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopassist/shopassist-go/internal/model"
	"github.com/shopassist/shopassist-go/internal/service"
	"go.uber.org/zap"
)

var availableEndpoints = []string{"/api/chat", "/api/feedback", "/api/health"}

const (
	defaultRecentFeedback = 10
	maxRecentFeedback     = 100
)

// ServiceInfo 健康检查与首页展示的服务信息
type ServiceInfo struct {
	Name      string
	Version   string
	Provider  string
	Model     string
	StartedAt time.Time
}

// ChatHandler 对话与反馈接口
type ChatHandler struct {
	assistant *service.AssistantService
	feedback  *service.FeedbackService
	sessions  *service.SessionService
	info      ServiceInfo
	logger    *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(assistant *service.AssistantService, feedback *service.FeedbackService,
	sessions *service.SessionService, info ServiceInfo, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		feedback:  feedback,
		sessions:  sessions,
		info:      info,
		logger:    logger,
	}
}

type chatRequest struct {
	Message   *string         `json:"message"`
	ImageData json.RawMessage `json:"imageData"`
}

type feedbackRequest struct {
	MessageID string `json:"messageId"`
	Rating    string `json:"rating"`
}

// Chat POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil || *req.Message == "" {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	chatReq := model.ChatRequest{Message: *req.Message}
	chatReq.Image = parseImage(req.ImageData, h.logger)

	h.logger.Info("收到对话请求",
		zap.String("message", preview(chatReq.Message, 50)),
		zap.Bool("hasImage", chatReq.HasImage()))

	result, err := h.assistant.Handle(c.Request.Context(), chatReq)
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	if err != nil {
		h.logger.Error("对话处理失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Sorry, something went wrong. Please try again.",
			"reply": "I apologize for the inconvenience. Please try again in a moment.",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Feedback POST /api/feedback
func (h *ChatHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MessageID == "" || req.Rating == "" {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId and rating are required"})
		return
	}

	fb := model.Feedback{
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Timestamp: time.Now().UTC(),
	}
	if err := h.feedback.Record(c.Request.Context(), fb); err != nil {
		h.logger.Error("反馈保存失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save feedback", "success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Thank you for your feedback!"})
}

// FeedbackSummary GET /api/feedback/summary?recent=N
func (h *ChatHandler) FeedbackSummary(c *gin.Context) {
	n := int64(defaultRecentFeedback)
	if v := c.Query("recent"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be a non-negative integer"})
			return
		}
		n = min(parsed, maxRecentFeedback)
	}

	ctx := c.Request.Context()
	counts, err := h.feedback.Summary(ctx)
	if err != nil {
		h.logger.Error("读取反馈统计失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feedback"})
		return
	}
	recent, err := h.feedback.Recent(ctx, n)
	if err != nil {
		h.logger.Error("读取最近反馈失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feedback"})
		return
	}
	if recent == nil {
		recent = []model.Feedback{}
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "recent": recent})
}

// Health GET /api/health
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "UP",
		"service":        h.info.Name,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"provider":       h.info.Provider,
		"model":          h.info.Model,
		"uptime":         time.Since(h.info.StartedAt).Seconds(),
		"onlineSessions": h.sessions.Count(),
		"features": gin.H{
			"voiceSupport":   true,
			"visualSearch":   true,
			"qualityRanking": true,
			"purchaseIntent": true,
		},
	})
}

// Root GET /
func (h *ChatHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "AI Shopping Assistant API",
		"version": h.info.Version,
		"features": []string{
			"Voice Input/Output Support",
			"Visual Product Search",
			"Response Quality Ranking",
			"Purchase Intent Analysis",
			"User Feedback System",
		},
		"endpoints": gin.H{
			"chat":     "POST /api/chat",
			"feedback": "POST /api/feedback",
			"health":   "GET /api/health",
			"ws":       "GET /ws",
		},
	})
}

// NotFound 未匹配的路由
func (h *ChatHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":              "Route not found",
		"availableEndpoints": availableEndpoints,
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// parseImage 解析可选的 imageData 字段，非字符串或无法解码时按纯文本请求处理
func parseImage(raw json.RawMessage, logger *zap.Logger) *model.Image {
	data, err := imageDataString(raw)
	if err == nil && data != "" {
		var image *model.Image
		if image, err = decodeImageData(data); err == nil {
			return image
		}
	}
	if err != nil {
		logger.Warn("图片数据无法解析，忽略图片", zap.Error(err))
	}
	return nil
}

func imageDataString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("imageData 不是字符串: %w", err)
	}
	return s, nil
}

// decodeImageData 解析 data URL 或纯 base64 图片
func decodeImageData(imageData string) (*model.Image, error) {
	payload := imageData
	if _, after, found := strings.Cut(imageData, ","); found {
		payload = after
	}

	mimeType := "image/jpeg"
	if strings.Contains(imageData, "image/png") {
		mimeType = "image/png"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	return &model.Image{MimeType: mimeType, Data: data}, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
