// Package keyword 在调用大模型前用固定关键词表拦截常见问题。
package keyword

import "strings"

// Rule 关键词规则：任一触发词出现在用户输入中即命中
type Rule struct {
	Name     string
	Triggers []string
	Reply    string
}

// Match 命中结果，Triggers 记录实际匹配到的触发词
type Match struct {
	Rule     string
	Reply    string
	Triggers []string
}

// Gate 关键词拦截器，规则按顺序匹配，先命中者优先
type Gate struct {
	rules []Rule
}

// NewGate 创建拦截器，rules 为空时使用 DefaultRules
func NewGate(rules []Rule) *Gate {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Gate{rules: rules}
}

// Match 返回第一条命中规则的回复
func (g *Gate) Match(text string) (Match, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Match{}, false
	}

	for _, rule := range g.rules {
		var hit []string
		for _, trigger := range rule.Triggers {
			if strings.Contains(normalized, trigger) {
				hit = append(hit, trigger)
			}
		}
		if len(hit) > 0 {
			return Match{Rule: rule.Name, Reply: rule.Reply, Triggers: hit}, true
		}
	}
	return Match{}, false
}

// Rules 返回规则副本
func (g *Gate) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// DefaultRules 商城助手的内置规则，顺序即优先级（问候先于运费等）
var DefaultRules = []Rule{
	{
		Name:     "greeting",
		Triggers: []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"},
		Reply:    "Hello! 👋 Welcome to our online store. I'm your AI shopping assistant with visual search and voice capabilities. How can I help you today?",
	},
	{
		Name:     "pricing",
		Triggers: []string{"price", "cost", "how much", "expensive", "cheap", "budget"},
		Reply:    "Our products range from budget-friendly to premium options. We have electronics, fashion, home, and fitness categories. What type of product are you looking for?",
	},
	{
		Name:     "suggestion",
		Triggers: []string{"suggestion", "suggest", "what should", "best product"},
		Reply:    "I'd love to help you find the perfect product! Could you tell me what category you're interested in? Electronics, fashion, home goods, or fitness equipment?",
	},
	{
		Name:     "returns",
		Triggers: []string{"return", "refund", "exchange", "policy", "send back", "money back"},
		Reply:    "🔹 Our Return Policy:\n\n✓ 30-day money-back guarantee\n✓ Free return shipping\n✓ Full refund or exchange\n✓ Items must be unused with original packaging\n✓ 90-day warranty for defective items\n\nNeed help processing a return?",
	},
	{
		Name:     "shipping",
		Triggers: []string{"shipping", "delivery", "when will", "how long", "tracking", "ship", "arrive"},
		Reply:    "📦 Shipping Options:\n\n🔹 Standard (5-7 days): FREE on orders $50+\n🔹 Express (2-3 days): $9.99\n🔹 Overnight (next day): $24.99\n\nAll orders include tracking via email!",
	},
	{
		Name:     "warranty",
		Triggers: []string{"warranty", "guarantee", "coverage", "defect", "broken", "not working"},
		Reply:    "🛡️ Warranty Coverage:\n\n🔹 Electronics: 1-year manufacturer warranty\n🔹 Extended warranties available at checkout\n🔹 90-day hassle-free returns for defects\n\nWhich product do you need warranty info for?",
	},
	{
		Name:     "availability",
		Triggers: []string{"size", "color", "colour", "available", "stock", "in stock", "out of stock"},
		Reply:    "Check product pages for available sizes and colors. You can sign up for notifications when items are back in stock. Which product are you interested in?",
	},
	{
		Name:     "thanks",
		Triggers: []string{"thank", "thanks", "thank you", "appreciate"},
		Reply:    "You're welcome! Anything else I can help with? 😊",
	},
}
