package repository

import (
	"context"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/quagmt/udecimal"
	"github.com/uptrace/bun"
)

// agreementRatePrecision 认同率保留小数位
const agreementRatePrecision = 4

// FeedbackSummary 反馈汇总
type FeedbackSummary struct {
	TotalRecords  int              `json:"total_records"`
	FeedbackCount int              `json:"feedback_count"`
	Agreed        int              `json:"agreed"`
	Disagreed     int              `json:"disagreed"`
	AgreementRate udecimal.Decimal `json:"agreement_rate"`
}

// summaryRow 汇总查询行
type summaryRow struct {
	Total    int `bun:"total"`
	Feedback int `bun:"feedback"`
	Agreed   int `bun:"agreed"`
}

// StatisticsRepository 统计数据访问接口
type StatisticsRepository interface {
	Repository

	// FeedbackSummary 统计记录数、反馈数与认同率
	FeedbackSummary(ctx context.Context) (*FeedbackSummary, error)
}

// statisticsRepository StatisticsRepository 实现
type statisticsRepository struct {
	*BaseRepository
}

// NewStatisticsRepository 创建 StatisticsRepository
func NewStatisticsRepository(db *bun.DB) StatisticsRepository {
	return &statisticsRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// FeedbackSummary 统计记录数、反馈数与认同率
func (r *statisticsRepository) FeedbackSummary(ctx context.Context) (*FeedbackSummary, error) {
	var row summaryRow

	err := r.db.NewSelect().
		Model((*model.ModerationRecord)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COUNT(user_feedback) AS feedback").
		ColumnExpr("COALESCE(SUM(CASE WHEN user_feedback THEN 1 ELSE 0 END), 0) AS agreed").
		Scan(ctx, &row)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	rate, err := AgreementRate(row.Agreed, row.Feedback)
	if err != nil {
		return nil, errors.NewInternalError("failed to compute agreement rate").WithError(err)
	}

	return &FeedbackSummary{
		TotalRecords:  row.Total,
		FeedbackCount: row.Feedback,
		Agreed:        row.Agreed,
		Disagreed:     row.Feedback - row.Agreed,
		AgreementRate: rate,
	}, nil
}

// AgreementRate 计算认同率 agreed/feedback，保留 4 位小数；无反馈时为 0
func AgreementRate(agreed, feedback int) (udecimal.Decimal, error) {
	if feedback <= 0 {
		return udecimal.Zero, nil
	}

	rate, err := udecimal.MustFromInt64(int64(agreed), 0).
		Div(udecimal.MustFromInt64(int64(feedback), 0))
	if err != nil {
		return udecimal.Zero, err
	}

	return rate.RoundBank(agreementRatePrecision), nil
}
