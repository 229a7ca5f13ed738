package moderation

import (
	"strings"

	"github.com/ding113/moderation-gateway/internal/model"
)

// DefaultRuleTerms 本地规则默认词表
var DefaultRuleTerms = map[model.Category][]string{
	model.CategoryProfanity:      {"fuck", "shit", "ass"},
	model.CategoryDiscrimination: {"racist", "sexist", "homophobic"},
	model.CategoryBullying:       {"loser", "stupid", "idiot"},
	model.CategorySpam:           {"buy now", "click here", "limited offer"},
}

// RuleClassifier 本地关键词分类器
// 大小写不敏感的子串匹配，词表在进程生命周期内固定
type RuleClassifier struct {
	terms map[model.Category][]string
}

// NewRuleClassifier 以默认词表加 extra 追加词创建分类器
// extra 中的非本地类别与空白词会被忽略
func NewRuleClassifier(extra map[model.Category][]string) *RuleClassifier {
	terms := make(map[model.Category][]string, len(model.LocalCategories))
	for _, category := range model.LocalCategories {
		terms[category] = normalizeTerms(DefaultRuleTerms[category], extra[category])
	}
	return &RuleClassifier{terms: terms}
}

func normalizeTerms(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var normalized []string
	for _, list := range lists {
		for _, term := range list {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			normalized = append(normalized, term)
		}
	}
	return normalized
}

// Classify 返回四个本地类别的完整标记
func (c *RuleClassifier) Classify(text string) map[model.Category]bool {
	lower := strings.ToLower(text)
	flags := make(map[model.Category]bool, len(model.LocalCategories))
	for _, category := range model.LocalCategories {
		flags[category] = containsAny(lower, c.terms[category])
	}
	return flags
}

// Terms 返回某个类别的生效词表
func (c *RuleClassifier) Terms(category model.Category) []string {
	return append([]string(nil), c.terms[category]...)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// ExtraTermsFromConfig 将配置中的字符串键转换为类别键
func ExtraTermsFromConfig(raw map[string][]string) map[model.Category][]string {
	extra := make(map[model.Category][]string, len(raw))
	for key, terms := range raw {
		category := model.Category(strings.ToLower(key))
		if !model.IsLocalCategory(category) {
			continue
		}
		extra[category] = terms
	}
	return extra
}
