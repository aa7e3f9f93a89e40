package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopassist/shopassist-go/internal/config"
	"github.com/shopassist/shopassist-go/internal/model"
	"go.uber.org/zap"
)

const systemPrompt = `You are an advanced AI shopping assistant with the following capabilities:

CORE RESPONSIBILITIES:
- Product recommendations with detailed specifications
- Visual product search and similarity matching
- Purchase intent prediction and proactive assistance
- Order tracking and customer service
- Price comparison and deal alerts

TONE & STYLE:
- Friendly, professional, and conversational
- Use emojis occasionally (🔹 for product bullets)
- Be concise but informative
- Always prioritize customer safety and satisfaction

UNIQUE CAPABILITIES:
1. Visual Search: Analyze product images to find similar items
2. Intent Prediction: Identify when users are ready to purchase
3. Smart Recommendations: Consider budget, preferences, and past behavior
4. Proactive Assistance: Offer help before being asked

Always maintain high accuracy, appropriate tone, and safety in responses.`

// OracleError 调用生成式 AI 失败，StatusCode 为 0 表示未收到 HTTP 响应
type OracleError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *OracleError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oracle error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("oracle error: %s: %v", e.Message, e.Err)
	}
	return "oracle error: " + e.Message
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// GeminiClient Gemini generateContent 客户端
type GeminiClient struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiClient 创建 Gemini 客户端
func NewGeminiClient(cfg config.AIConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		provider:   cfg.Provider,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Content 对话内容
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part 内容片段，文本或内联图片
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData base64 编码的内联数据
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationConfig 生成参数
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

// SafetySetting 内容安全阈值
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateRequest generateContent 请求
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings"`
}

// GenerateResponse generateContent 响应
type GenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

var defaultSafetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// Name 服务商名称，作为回复来源返回
func (c *GeminiClient) Name() string {
	return c.provider
}

// Configured 是否配置了 API Key
func (c *GeminiClient) Configured() bool {
	return c.apiKey != ""
}

// Generate 调用 generateContent，返回第一个候选的文本
func (c *GeminiClient) Generate(ctx context.Context, prompt string, image *model.Image) (string, error) {
	reqBody := buildRequest(prompt, image)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &OracleError{Message: "序列化请求失败", Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?%s",
		c.baseURL, url.PathEscape(c.model), url.Values{"key": {c.apiKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", &OracleError{Message: "创建请求失败", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("调用 Gemini",
		zap.String("model", c.model),
		zap.Int("promptLength", len(prompt)),
		zap.Bool("hasImage", image != nil))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error 中带有完整 URL（含 key），只保留底层原因
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", &OracleError{Message: "请求失败", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &OracleError{Message: "读取响应失败", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Gemini 返回错误",
			zap.Int("status", resp.StatusCode),
			zap.String("hint", statusHint(resp.StatusCode)))
		return "", &OracleError{StatusCode: resp.StatusCode, Message: truncate(string(body), 512)}
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", &OracleError{Message: "解析响应失败", Err: err}
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 ||
		genResp.Candidates[0].Content.Parts[0].Text == "" {
		return "", &OracleError{Message: "响应中没有候选文本"}
	}

	return strings.TrimSpace(genResp.Candidates[0].Content.Parts[0].Text), nil
}

func buildRequest(prompt string, image *model.Image) GenerateRequest {
	parts := []Part{{
		Text: systemPrompt + "\n\nCustomer Question: " + prompt +
			"\n\nPlease provide a helpful response as a shopping assistant.",
	}}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, Part{InlineData: &InlineData{
			MimeType: image.MimeType,
			Data:     base64.StdEncoding.EncodeToString(image.Data),
		}})
	}

	return GenerateRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: GenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 1024,
			TopP:            0.95,
			TopK:            40,
		},
		SafetySettings: defaultSafetySettings,
	}
}

func statusHint(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "检查模型名称或请求格式"
	case http.StatusForbidden:
		return "API Key 无效或未开通计费"
	case http.StatusNotFound:
		return "模型不存在"
	case http.StatusTooManyRequests:
		return "请求过于频繁"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
