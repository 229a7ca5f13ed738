package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ModerationResult 一次分类调用的聚合结果（返回给调用方，同时序列化入库）
type ModerationResult struct {
	RequestID      string               `json:"request_id"`
	IsAppropriate  bool                 `json:"is_appropriate"`
	Categories     map[Category]bool    `json:"categories"`
	CategoryScores map[Category]float64 `json:"category_scores"`
}

// ModerationRecord 分类记录模型
// moderation_result 创建后不可变；user_feedback/user_comment 由反馈接口写入
type ModerationRecord struct {
	bun.BaseModel `bun:"table:moderation_records,alias:mr"`

	ID               int64   `bun:"id,pk,autoincrement" json:"id"`
	RequestID        string  `bun:"request_id,notnull,unique,type:varchar(36)" json:"requestId"`
	OriginalText     string  `bun:"original_text,notnull,type:text" json:"originalText"`
	ModerationResult string  `bun:"moderation_result,notnull,type:text" json:"moderationResult"`
	UserFeedback     *bool   `bun:"user_feedback" json:"userFeedback"`
	UserComment      *string `bun:"user_comment,type:text" json:"userComment"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// HasFeedback 检查是否已收到反馈
func (r *ModerationRecord) HasFeedback() bool {
	return r.UserFeedback != nil
}

// DecodeResult 反序列化创建时保存的聚合结果
func (r *ModerationRecord) DecodeResult() (*ModerationResult, error) {
	var result ModerationResult
	if err := json.Unmarshal([]byte(r.ModerationResult), &result); err != nil {
		return nil, fmt.Errorf("decode moderation result %s: %w", r.RequestID, err)
	}
	return &result, nil
}

// EncodeResult 序列化聚合结果
func EncodeResult(result *ModerationResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode moderation result %s: %w", result.RequestID, err)
	}
	return string(data), nil
}
