package analysis

import (
	"regexp"
	"strings"

	"github.com/shopassist/shopassist-go/internal/model"
)

// 各信号的权重，三者互不重叠，总分上限 100
const (
	urgencyWeight = 40
	budgetWeight  = 30
	productWeight = 30
)

var (
	urgencyPattern = regexp.MustCompile(`urgent|asap|immediately|today|now|quickly|right now`)
	budgetPattern  = regexp.MustCompile(`\$\d+|budget|cheap|expensive|price|cost|under|below|around`)
	productPattern = regexp.MustCompile(`laptop|phone|headphone|watch|camera|tablet|computer|gaming|iphone|macbook`)
)

// ScoreIntent 根据用户输入估算购买意图
func ScoreIntent(userText string) model.PurchaseIntent {
	text := strings.ToLower(userText)

	score := 0
	if urgencyPattern.MatchString(text) {
		score += urgencyWeight
	}
	if budgetPattern.MatchString(text) {
		score += budgetWeight
	}
	if productPattern.MatchString(text) {
		score += productWeight
	}

	likelihood := LikelihoodFor(score)
	return model.PurchaseIntent{
		Score:           score,
		Likelihood:      likelihood,
		SuggestedAction: SuggestedActionFor(likelihood),
	}
}

// LikelihoodFor 分数到购买可能性的映射，边界值 30、60 归入较低档
func LikelihoodFor(score int) model.Likelihood {
	switch {
	case score > 60:
		return model.LikelihoodHigh
	case score > 30:
		return model.LikelihoodMedium
	default:
		return model.LikelihoodLow
	}
}

// SuggestedActionFor 只有高意图才引导结算
func SuggestedActionFor(likelihood model.Likelihood) string {
	if likelihood == model.LikelihoodHigh {
		return "Show checkout assistance"
	}
	return "Continue browsing"
}
