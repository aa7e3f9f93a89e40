package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopassist/shopassist-go/internal/analysis"
	"github.com/shopassist/shopassist-go/internal/keyword"
	"github.com/shopassist/shopassist-go/internal/metrics"
	"github.com/shopassist/shopassist-go/internal/model"
	"go.uber.org/zap"
)

// ErrValidation 请求缺少有效的 message
var ErrValidation = errors.New("message is required")

const (
	fallbackReply = "I'm here to help! You can ask me about our products, pricing, shipping, returns, warranties, or upload an image to find similar products!"
	errorReply    = "I apologize, but I'm having trouble connecting to my AI service right now. You can ask me about shipping, returns, warranties, or product recommendations, and I'll do my best to help!"

	visualSearchTemplate = `[VISUAL SEARCH REQUEST] The user uploaded an image and asked: "%s".
Analyze the image and provide 3-5 similar product recommendations with:
- Product name and price
- Visual similarity percentage (80-95%%)
- Key features that match
- Why it's a good alternative`
)

// Oracle 生成式 AI 服务
type Oracle interface {
	Name() string
	Configured() bool
	Generate(ctx context.Context, prompt string, image *model.Image) (string, error)
}

// AssistantService 购物助手：关键词拦截 → 兜底 → 调用大模型并打分
type AssistantService struct {
	gate    *keyword.Gate
	oracle  Oracle
	timeout time.Duration
	logger  *zap.Logger
}

// NewAssistantService 创建购物助手服务，oracle 可为 nil（视为未配置）
func NewAssistantService(gate *keyword.Gate, oracle Oracle, timeout time.Duration, logger *zap.Logger) *AssistantService {
	if gate == nil {
		gate = keyword.NewGate(nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AssistantService{
		gate:    gate,
		oracle:  oracle,
		timeout: timeout,
		logger:  logger,
	}
}

// Handle 处理一次对话请求。除 ErrValidation 外所有失败都被吸收进结果
func (s *AssistantService) Handle(ctx context.Context, req model.ChatRequest) (*model.AssistantResult, error) {
	if req.Message == "" {
		metrics.ChatRejected.Inc()
		return nil, ErrValidation
	}

	result := s.route(ctx, req)
	result.MessageID = uuid.New().String()

	metrics.ChatRequests.WithLabelValues(result.Source).Inc()
	if result.PurchaseIntent != nil {
		metrics.PurchaseIntent.WithLabelValues(string(result.PurchaseIntent.Likelihood)).Inc()
	}
	return result, nil
}

func (s *AssistantService) route(ctx context.Context, req model.ChatRequest) *model.AssistantResult {
	// 带图片的请求必须交给大模型
	if !req.HasImage() {
		if match, ok := s.gate.Match(req.Message); ok {
			s.logger.Info("关键词命中",
				zap.String("rule", match.Rule),
				zap.Strings("triggers", match.Triggers))
			metricsCopy := analysis.KeywordReplyMetrics
			intent := analysis.ScoreIntent(req.Message)
			return &model.AssistantResult{
				Reply:          match.Reply,
				Source:         model.SourceKeyword,
				QualityMetrics: &metricsCopy,
				PurchaseIntent: &intent,
			}
		}
	}

	if s.oracle == nil || !s.oracle.Configured() {
		s.logger.Warn("未配置 AI_API_KEY，使用兜底回复")
		return &model.AssistantResult{
			Reply:  fallbackReply,
			Source: model.SourceFallback,
		}
	}

	prompt := req.Message
	if req.HasImage() {
		prompt = fmt.Sprintf(visualSearchTemplate, req.Message)
	}

	start := time.Now()
	reply, err := s.callOracle(ctx, prompt, req.Image)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.OracleDuration.WithLabelValues(s.oracle.Name(), outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("AI 调用失败，返回错误兜底",
			zap.String("provider", s.oracle.Name()),
			zap.Bool("hasImage", req.HasImage()),
			zap.Error(err))
		return &model.AssistantResult{
			Reply:       errorReply,
			Source:      model.SourceError,
			ErrorDetail: err.Error(),
		}
	}

	quality := analysis.ScoreQuality(reply)
	intent := analysis.ScoreIntent(req.Message)
	s.logger.Info("AI 回复完成",
		zap.String("provider", s.oracle.Name()),
		zap.Int("replyLength", len(reply)),
		zap.Int("intentScore", intent.Score))

	return &model.AssistantResult{
		Reply:          reply,
		Source:         s.oracle.Name(),
		QualityMetrics: &quality,
		PurchaseIntent: &intent,
	}
}

// callOracle 在超时内调用大模型，适配器 panic 也按失败处理
func (s *AssistantService) callOracle(ctx context.Context, prompt string, image *model.Image) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("oracle panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err = s.oracle.Generate(ctx, prompt, image)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return reply, err
}
