package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopassist/shopassist-go/internal/metrics"
	"github.com/shopassist/shopassist-go/internal/model"
	"go.uber.org/zap"
)

const (
	feedbackListKey  = "feedback:ratings"
	feedbackCountKey = "feedback:counts"
)

// FeedbackService 记录用户评价，仅存储，不参与打分
type FeedbackService struct {
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewFeedbackService 创建反馈服务，redisClient 为 nil 时只记录日志
func NewFeedbackService(redisClient *redis.Client, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Record 保存一条评价
func (s *FeedbackService) Record(ctx context.Context, fb model.Feedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}

	// 统计字段只取有限取值，原始评价保留在列表中
	label := metrics.RatingLabel(fb.Rating)
	metrics.FeedbackReceived.WithLabelValues(label).Inc()
	s.logger.Info("收到反馈",
		zap.String("messageId", fb.MessageID),
		zap.String("rating", fb.Rating),
		zap.Time("timestamp", fb.Timestamp))

	if s.redisClient == nil {
		return nil
	}

	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("序列化反馈失败: %w", err)
	}

	pipe := s.redisClient.TxPipeline()
	pipe.RPush(ctx, feedbackListKey, data)
	pipe.HIncrBy(ctx, feedbackCountKey, label, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存反馈失败: %w", err)
	}
	return nil
}

// Summary 按评价值统计数量
func (s *FeedbackService) Summary(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	if s.redisClient == nil {
		return out, nil
	}

	counts, err := s.redisClient.HGetAll(ctx, feedbackCountKey).Result()
	if err != nil {
		return nil, fmt.Errorf("读取反馈统计失败: %w", err)
	}
	for rating, v := range counts {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("反馈统计格式错误: %w", err)
		}
		out[rating] = n
	}
	return out, nil
}

// Recent 返回最近 n 条评价
func (s *FeedbackService) Recent(ctx context.Context, n int64) ([]model.Feedback, error) {
	if s.redisClient == nil || n <= 0 {
		return nil, nil
	}

	raw, err := s.redisClient.LRange(ctx, feedbackListKey, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取反馈失败: %w", err)
	}

	out := make([]model.Feedback, 0, len(raw))
	for _, item := range raw {
		var fb model.Feedback
		if err := json.Unmarshal([]byte(item), &fb); err != nil {
			s.logger.Warn("跳过无法解析的反馈", zap.Error(err))
			continue
		}
		out = append(out, fb)
	}
	return out, nil
}
