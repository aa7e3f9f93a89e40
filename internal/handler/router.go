package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopassist/shopassist-go/internal/middleware"
	"go.uber.org/zap"
)

// RouterOptions 路由配置
type RouterOptions struct {
	AllowedOrigins []string
	BodyLimitMB    int64
}

// NewRouter 注册所有路由
func NewRouter(chat *ChatHandler, ws *WebSocketHandler, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	api := r.Group("/api")
	api.Use(middleware.BodyLimit(opts.BodyLimitMB))
	{
		api.POST("/chat", chat.Chat)
		api.POST("/feedback", chat.Feedback)
		api.GET("/feedback/summary", chat.FeedbackSummary)
		api.GET("/health", chat.Health)
	}

	r.GET("/ws", ws.HandleWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", chat.Root)
	r.NoRoute(chat.NotFound)

	return r
}
