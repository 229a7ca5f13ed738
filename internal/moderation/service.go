package moderation

import (
	"context"
	"sort"
	"time"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/ding113/moderation-gateway/internal/pkg/utils"
	"github.com/ding113/moderation-gateway/internal/repository"
	"golang.org/x/sync/errgroup"
)

// RecordStore 分类记录存储
type RecordStore interface {
	Create(ctx context.Context, record *model.ModerationRecord) error
	FindByRequestID(ctx context.Context, requestID string) (*model.ModerationRecord, error)
	AttachFeedback(ctx context.Context, requestID string, feedback bool, comment string) error
	List(ctx context.Context, opts *repository.ListOptions) ([]*model.ModerationRecord, error)
	Count(ctx context.Context, feedbackOnly bool) (int, error)
}

// SummaryStore 反馈统计
type SummaryStore interface {
	FeedbackSummary(ctx context.Context) (*repository.FeedbackSummary, error)
}

// RecordView 对外展示的分类记录
type RecordView struct {
	RequestID    string                  `json:"request_id"`
	OriginalText string                  `json:"original_text"`
	Result       *model.ModerationResult `json:"moderation_result"`
	UserFeedback *bool                   `json:"user_feedback"`
	UserComment  *string                 `json:"user_comment"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// Service 内容审核服务
type Service struct {
	remote  RemoteClassifier
	rules   *RuleClassifier
	records RecordStore
	stats   SummaryStore
	newID   func() string
}

// NewService 创建内容审核服务
func NewService(remote RemoteClassifier, rules *RuleClassifier, records RecordStore, stats SummaryStore) *Service {
	return &Service{
		remote:  remote,
		rules:   rules,
		records: records,
		stats:   stats,
		newID:   utils.GenerateUUID,
	}
}

// Moderate 分类一条文本并持久化结果
// 远程与本地分类并发执行，二者都完成后才聚合；记录写入成功后才返回 request_id
func (s *Service) Moderate(ctx context.Context, text string) (*model.ModerationResult, error) {
	requestID := s.newID()
	log := logger.WithRequestID(requestID)

	var (
		verdict *RemoteVerdict
		local   map[model.Category]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.remote.Classify(gctx, text)
		if err != nil {
			return err
		}
		if v == nil {
			return errors.NewClassifierError(errors.ClassifierMalformedResponse, 0, "empty verdict", nil)
		}
		verdict = v
		return nil
	})
	g.Go(func() error {
		local = s.rules.Classify(text)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("Remote classification failed")
		return nil, err
	}

	result := Aggregate(requestID, verdict, local)

	encoded, err := model.EncodeResult(result)
	if err != nil {
		return nil, errors.NewInternalError("failed to serialize moderation result").WithError(err)
	}

	record := &model.ModerationRecord{
		RequestID:        requestID,
		OriginalText:     text,
		ModerationResult: encoded,
	}
	if err := s.records.Create(ctx, record); err != nil {
		log.Error().Err(err).Msg("Failed to persist moderation record")
		return nil, err
	}

	log.Info().
		Bool("is_appropriate", result.IsAppropriate).
		Strs("flagged", flaggedCategories(result)).
		Msg("Content moderated")

	return result, nil
}

// SubmitFeedback 为已有记录写入反馈（覆盖写）
// request_id 不存在时返回 NotFound
func (s *Service) SubmitFeedback(ctx context.Context, requestID string, feedback bool, comment string) error {
	log := logger.WithRequestID(requestID)

	if err := s.records.AttachFeedback(ctx, requestID, feedback, comment); err != nil {
		if !errors.Is(err, errors.ErrorTypeNotFound) {
			log.Error().Err(err).Msg("Failed to attach feedback")
		}
		return err
	}

	log.Info().
		Bool("user_feedback", feedback).
		Msg("Feedback submitted")
	return nil
}

// Lookup 查询一条分类记录
func (s *Service) Lookup(ctx context.Context, requestID string) (*RecordView, error) {
	record, err := s.records.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.NewNotFoundError("Moderation record")
	}
	return newRecordView(record)
}

// List 分页列出分类记录，并填充 opts.Pagination.Total
func (s *Service) List(ctx context.Context, opts *repository.ListOptions) ([]*RecordView, error) {
	if opts == nil {
		opts = repository.NewListOptions()
	}

	records, err := s.records.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.Pagination != nil {
		total, err := s.records.Count(ctx, opts.FeedbackOnly)
		if err != nil {
			return nil, err
		}
		opts.Pagination.Total = total
	}

	views := make([]*RecordView, 0, len(records))
	for _, record := range records {
		view, err := newRecordView(record)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Summary 返回反馈统计
func (s *Service) Summary(ctx context.Context) (*repository.FeedbackSummary, error) {
	return s.stats.FeedbackSummary(ctx)
}

func newRecordView(record *model.ModerationRecord) (*RecordView, error) {
	result, err := record.DecodeResult()
	if err != nil {
		return nil, errors.NewInternalError("stored moderation result is corrupt").WithError(err)
	}
	return &RecordView{
		RequestID:    record.RequestID,
		OriginalText: record.OriginalText,
		Result:       result,
		UserFeedback: record.UserFeedback,
		UserComment:  record.UserComment,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

func flaggedCategories(result *model.ModerationResult) []string {
	var flagged []string
	for category, on := range result.Categories {
		if on {
			flagged = append(flagged, string(category))
		}
	}
	sort.Strings(flagged)
	return flagged
}
