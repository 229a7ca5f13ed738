package moderation

import (
	"context"
	"fmt"
	"math"

	"github.com/ding113/moderation-gateway/internal/model"
)

// RemoteVerdict 远程分类器对单条文本的判定
type RemoteVerdict struct {
	Flagged    bool                       `json:"flagged"`
	Categories map[model.Category]bool    `json:"categories"`
	Scores     map[model.Category]float64 `json:"scores"`
}

// Validate 检查 7 个远程类别及分数齐全且分数在 [0,1]
func (v *RemoteVerdict) Validate() error {
	for _, category := range model.RemoteCategories {
		if _, ok := v.Categories[category]; !ok {
			return fmt.Errorf("missing category %q", category)
		}
		score, ok := v.Scores[category]
		if !ok {
			return fmt.Errorf("missing score %q", category)
		}
		if !validScore(score) {
			return fmt.Errorf("score %q out of range: %v", category, score)
		}
	}
	return nil
}

func validScore(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= 1
}

// RemoteClassifier 远程分类能力
// 失败时返回 *errors.ClassifierError，绝不默认为"合规"
type RemoteClassifier interface {
	Classify(ctx context.Context, text string) (*RemoteVerdict, error)
}

// RemoteClassifierFunc 函数适配器
type RemoteClassifierFunc func(ctx context.Context, text string) (*RemoteVerdict, error)

// Classify 实现 RemoteClassifier
func (f RemoteClassifierFunc) Classify(ctx context.Context, text string) (*RemoteVerdict, error) {
	return f(ctx, text)
}
