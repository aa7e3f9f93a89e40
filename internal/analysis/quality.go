// Package analysis 对用户输入和模型回复做启发式打分。
//
// 所有函数都是纯函数，阈值与权重按线上版本原样保留。
package analysis

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopassist/shopassist-go/internal/model"
)

const maxScore = 95

// KeywordReplyMetrics 关键词回复不参与打分，统一使用的固定评分
var KeywordReplyMetrics = model.QualityMetrics{
	Accuracy:   95,
	Tone:       90,
	Safety:     100,
	Confidence: 95,
}

var (
	specificDetailPattern = regexp.MustCompile(`(?i)\$\d+|%|\d+\s*(day|hour|item|product)`)
	structurePattern      = regexp.MustCompile(`\n|•|🔹|-\s`)

	positivePattern     = regexp.MustCompile(`(?i)great|excellent|perfect|recommend|happy|glad|delighted`)
	professionalPattern = regexp.MustCompile(`(?i)certainly|definitely|specifically|particularly`)
	emojiPattern        = regexp.MustCompile(`[🔹📦✨🎁👍]`)

	unsafePattern  = regexp.MustCompile(`(?i)hack|cheat|fake|illegal|unauthorized|steal`)
	caveatPattern  = regexp.MustCompile(`(?i)caution|warning|careful|risk|consult|professional`)
	ctaPattern     = regexp.MustCompile(`(?i)would you like|can i help|let me know|feel free`)
	optionsPattern = regexp.MustCompile(`(?i)option|choice|alternative`)
)

// ScoreQuality 对模型回复做四项独立打分
func ScoreQuality(reply string) model.QualityMetrics {
	words := wordCount(reply)
	return model.QualityMetrics{
		Accuracy:   accuracy(reply, words),
		Tone:       tone(reply),
		Safety:     safety(reply),
		Confidence: confidence(reply, words),
	}
}

// wordCount 按单个空格切分计数，空串计为 1
func wordCount(text string) int {
	return len(strings.Split(text, " "))
}

func accuracy(text string, words int) float64 {
	score := 60 + lengthBonus(words, 50, 0.3)
	if specificDetailPattern.MatchString(text) {
		score += 10
	}
	if structurePattern.MatchString(text) {
		score += 10
	}
	return math.Min(maxScore, score)
}

func tone(text string) float64 {
	score := 70.0 +
		3*float64(countMatches(positivePattern, text)) +
		2*float64(countMatches(professionalPattern, text)) +
		2*float64(countMatches(emojiPattern, text))
	return math.Min(maxScore, score)
}

// safety 命中不安全词直接判 40，优先于安全提示
func safety(text string) float64 {
	switch {
	case unsafePattern.MatchString(text):
		return 40
	case caveatPattern.MatchString(text):
		return 100
	default:
		return 95
	}
}

func confidence(text string, words int) float64 {
	score := 65 + lengthBonus(words, 100, 0.15)
	if ctaPattern.MatchString(text) {
		score += 10
	}
	if optionsPattern.MatchString(text) {
		score += 5
	}
	return math.Min(maxScore, score)
}

// lengthBonus 超过 threshold 个词固定加 15，否则按词数线性加分
func lengthBonus(words, threshold int, perWord float64) float64 {
	if words > threshold {
		return 15
	}
	return float64(words) * perWord
}

func countMatches(re *regexp.Regexp, text string) int {
	return len(re.FindAllStringIndex(text, -1))
}
