package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopassist/shopassist-go/internal/client"
	"github.com/shopassist/shopassist-go/internal/config"
	"github.com/shopassist/shopassist-go/internal/handler"
	"github.com/shopassist/shopassist-go/internal/keyword"
	"github.com/shopassist/shopassist-go/internal/service"
	"github.com/shopassist/shopassist-go/pkg/logger"
	"github.com/shopassist/shopassist-go/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/assistant.yaml"
	}

	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("shopassist 服务启动中...",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
		zap.Bool("apiKeyConfigured", cfg.AI.Configured()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis 不可用时反馈只记录日志
	var redisClient *goredis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Warn("Redis 不可用，反馈将只写日志", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	// 初始化服务
	oracle := client.NewGeminiClient(cfg.AI, zapLogger)
	assistant := service.NewAssistantService(keyword.NewGate(keyword.DefaultRules), oracle, cfg.AI.Timeout, zapLogger)
	feedback := service.NewFeedbackService(redisClient, zapLogger)
	sessions := service.NewSessionService(zapLogger)
	go sessions.RunHeartbeatChecker(ctx, 30*time.Second, 60*time.Second)

	// 初始化处理器与路由
	gin.SetMode(gin.ReleaseMode)
	chatHandler := handler.NewChatHandler(assistant, feedback, sessions, handler.ServiceInfo{
		Name:      cfg.Server.Name,
		Version:   cfg.Server.Version,
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.Model,
		StartedAt: time.Now(),
	}, zapLogger)
	wsHandler := handler.NewWebSocketHandler(sessions, assistant, cfg.Server.AllowedOrigins, zapLogger)
	r := handler.NewRouter(chatHandler, wsHandler, handler.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BodyLimitMB:    cfg.Server.BodyLimitMB,
	}, zapLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		zapLogger.Info("shopassist 服务启动成功", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("收到退出信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("服务关闭超时，强制退出", zap.Error(err))
		return
	}
	zapLogger.Info("服务已关闭")
}
