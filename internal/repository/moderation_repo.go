package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// ModerationRepository 分类记录数据访问接口
type ModerationRepository interface {
	Repository

	// Create 创建分类记录，request_id 冲突时返回 CodeDuplicateKey
	Create(ctx context.Context, record *model.ModerationRecord) error

	// FindByRequestID 根据 request_id 查找记录，不存在时返回 (nil, nil)
	FindByRequestID(ctx context.Context, requestID string) (*model.ModerationRecord, error)

	// AttachFeedback 写入用户反馈（覆盖写，最后一次写入生效）
	AttachFeedback(ctx context.Context, requestID string, feedback bool, comment string) error

	// List 获取记录列表
	List(ctx context.Context, opts *ListOptions) ([]*model.ModerationRecord, error)

	// Count 统计记录总数
	Count(ctx context.Context, feedbackOnly bool) (int, error)
}

// moderationRepository ModerationRepository 实现
type moderationRepository struct {
	*BaseRepository
}

// NewModerationRepository 创建 ModerationRepository
func NewModerationRepository(db *bun.DB) ModerationRepository {
	return &moderationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 创建分类记录
func (r *moderationRepository) Create(ctx context.Context, record *model.ModerationRecord) error {
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(record).
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateKeyError("request_id "+record.RequestID, err)
		}
		return errors.NewDatabaseError(err)
	}

	return nil
}

// FindByRequestID 根据 request_id 查找记录
func (r *moderationRepository) FindByRequestID(ctx context.Context, requestID string) (*model.ModerationRecord, error) {
	record := new(model.ModerationRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("request_id = ?", requestID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError(err)
	}

	return record, nil
}

// AttachFeedback 写入用户反馈
// 单条 UPDATE 语句完成，同一 request_id 的并发写入由数据库串行化
func (r *moderationRepository) AttachFeedback(ctx context.Context, requestID string, feedback bool, comment string) error {
	result, err := r.db.NewUpdate().
		Model((*model.ModerationRecord)(nil)).
		Set("user_feedback = ?", feedback).
		Set("user_comment = ?", comment).
		Set("updated_at = ?", time.Now().UTC()).
		Where("request_id = ?", requestID).
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Moderation record")
	}

	return nil
}

// List 获取记录列表
func (r *moderationRepository) List(ctx context.Context, opts *ListOptions) ([]*model.ModerationRecord, error) {
	if opts == nil {
		opts = NewListOptions()
	}

	query := r.db.NewSelect().Model((*model.ModerationRecord)(nil))

	if opts.FeedbackOnly {
		query = query.Where("user_feedback IS NOT NULL")
	}

	if opts.OrderBy != "" {
		query = query.Order(opts.OrderBy)
	} else {
		query = query.Order("id DESC")
	}

	if opts.Pagination != nil {
		query = query.
			Limit(opts.Pagination.GetLimit()).
			Offset(opts.Pagination.GetOffset())
	}

	var records []*model.ModerationRecord
	err := query.Scan(ctx, &records)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	return records, nil
}

// Count 统计记录总数
func (r *moderationRepository) Count(ctx context.Context, feedbackOnly bool) (int, error) {
	query := r.db.NewSelect().Model((*model.ModerationRecord)(nil))

	if feedbackOnly {
		query = query.Where("user_feedback IS NOT NULL")
	}

	count, err := query.Count(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}

	return count, nil
}
