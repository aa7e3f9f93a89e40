package model

import "time"

// 回复来源
const (
	SourceKeyword  = "keyword"
	SourceFallback = "fallback"
	SourceError    = "error"
)

// Image 用户上传的图片
type Image struct {
	MimeType string
	Data     []byte
}

// ChatRequest 一次对话请求
type ChatRequest struct {
	Message string
	Image   *Image
}

// HasImage 是否附带图片
func (r ChatRequest) HasImage() bool {
	return r.Image != nil && len(r.Image.Data) > 0
}

// QualityMetrics 回复质量评分，各项独立取值 0-100
type QualityMetrics struct {
	Accuracy   float64 `json:"accuracy"`
	Tone       float64 `json:"tone"`
	Safety     float64 `json:"safety"`
	Confidence float64 `json:"confidence"`
}

// Likelihood 购买可能性
type Likelihood string

const (
	LikelihoodLow    Likelihood = "Low"
	LikelihoodMedium Likelihood = "Medium"
	LikelihoodHigh   Likelihood = "High"
)

// PurchaseIntent 购买意图
type PurchaseIntent struct {
	Score           int        `json:"score"`
	Likelihood      Likelihood `json:"likelihood"`
	SuggestedAction string     `json:"suggestedAction"`
}

// AssistantResult 助手处理结果
type AssistantResult struct {
	MessageID      string          `json:"messageId"`
	Reply          string          `json:"reply"`
	Source         string          `json:"source"`
	QualityMetrics *QualityMetrics `json:"qualityMetrics"`
	PurchaseIntent *PurchaseIntent `json:"purchaseIntent"`
	ErrorDetail    string          `json:"-"` // 仅用于诊断，不返回给前端
}

// Feedback 用户对回复的评价
type Feedback struct {
	MessageID string    `json:"messageId"`
	Rating    string    `json:"rating"` // positive, negative
	Timestamp time.Time `json:"timestamp"`
}
