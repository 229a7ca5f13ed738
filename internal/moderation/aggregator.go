package moderation

import (
	"github.com/ding113/moderation-gateway/internal/model"
)

// Aggregate 合并远程判定与本地规则标记
//   - is_appropriate 只取决于远程 flagged，本地标记仅作附加信息
//   - categories 为两组类别的不相交并集
//   - category_scores 只包含远程类别
//
// 不做阈值、归一化或加权，远程数值原样透传
func Aggregate(requestID string, remote *RemoteVerdict, local map[model.Category]bool) *model.ModerationResult {
	categories := make(map[model.Category]bool, len(model.RemoteCategories)+len(model.LocalCategories))
	scores := make(map[model.Category]float64, len(model.RemoteCategories))

	for _, category := range model.RemoteCategories {
		categories[category] = remote.Categories[category]
		scores[category] = remote.Scores[category]
	}
	for _, category := range model.LocalCategories {
		categories[category] = local[category]
	}

	return &model.ModerationResult{
		RequestID:      requestID,
		IsAppropriate:  !remote.Flagged,
		Categories:     categories,
		CategoryScores: scores,
	}
}
