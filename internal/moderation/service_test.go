package moderation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/repository"
	"github.com/quagmt/udecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore 内存版 RecordStore / SummaryStore
type memoryStore struct {
	mu        sync.Mutex
	records   map[string]*model.ModerationRecord
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*model.ModerationRecord)}
}

func (m *memoryStore) Create(ctx context.Context, record *model.ModerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.records[record.RequestID]; ok {
		return errors.NewDuplicateKeyError(record.RequestID, nil)
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	copied := *record
	m.records[record.RequestID] = &copied
	return nil
}

func (m *memoryStore) FindByRequestID(ctx context.Context, requestID string) (*model.ModerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[requestID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *memoryStore) AttachFeedback(ctx context.Context, requestID string, feedback bool, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[requestID]
	if !ok {
		return errors.NewNotFoundError("Moderation record")
	}
	record.UserFeedback = &feedback
	record.UserComment = &comment
	record.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) List(ctx context.Context, opts *repository.ListOptions) ([]*model.ModerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.ModerationRecord, 0, len(m.records))
	for _, record := range m.records {
		if opts != nil && opts.FeedbackOnly && !record.HasFeedback() {
			continue
		}
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context, feedbackOnly bool) (int, error) {
	records, err := m.List(ctx, &repository.ListOptions{FeedbackOnly: feedbackOnly})
	return len(records), err
}

func (m *memoryStore) FeedbackSummary(ctx context.Context) (*repository.FeedbackSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &repository.FeedbackSummary{TotalRecords: len(m.records)}
	for _, record := range m.records {
		if record.UserFeedback == nil {
			continue
		}
		summary.FeedbackCount++
		if *record.UserFeedback {
			summary.Agreed++
		} else {
			summary.Disagreed++
		}
	}
	rate, err := repository.AgreementRate(summary.Agreed, summary.FeedbackCount)
	if err != nil {
		return nil, err
	}
	summary.AgreementRate = rate
	return summary, nil
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func staticRemote(verdict *RemoteVerdict) RemoteClassifier {
	return RemoteClassifierFunc(func(ctx context.Context, text string) (*RemoteVerdict, error) {
		return verdict, nil
	})
}

func newTestService(remote RemoteClassifier, store *memoryStore) *Service {
	return NewService(remote, NewRuleClassifier(nil), store, store)
}

func TestService_ModeratePersistsRecord(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(staticRemote(cleanVerdict()), store)

	result, err := svc.Moderate(context.Background(), "Buy now! Limited offer! Click here!")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RequestID)
	assert.True(t, result.IsAppropriate)
	assert.True(t, result.Categories[model.CategorySpam])
	assert.False(t, result.Categories[model.CategoryProfanity])

	record, err := store.FindByRequestID(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Buy now! Limited offer! Click here!", record.OriginalText)
	assert.Nil(t, record.UserFeedback)
	assert.Nil(t, record.UserComment)

	stored, err := record.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, result, stored)
}

func TestService_ModerateUniqueRequestIDs(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(staticRemote(cleanVerdict()), store)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		result, err := svc.Moderate(context.Background(), "This is a test message.")
		require.NoError(t, err)
		assert.False(t, seen[result.RequestID])
		seen[result.RequestID] = true
	}
	assert.Equal(t, 5, store.len())
}

func TestService_ModerateClassifierErrorWritesNothing(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(RemoteClassifierFunc(func(ctx context.Context, text string) (*RemoteVerdict, error) {
		return nil, errors.NewClassifierError(errors.ClassifierRateLimit, 429, "Rate limit reached", nil)
	}), store)

	result, err := svc.Moderate(context.Background(), "hello")
	assert.Nil(t, result)
	assert.True(t, errors.IsClassifierError(err))
	assert.Equal(t, 0, store.len())
}

func TestService_ModerateNilVerdictIsMalformed(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(staticRemote(nil), store)

	_, err := svc.Moderate(context.Background(), "hello")
	classifierErr, ok := errors.AsClassifierError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassifierMalformedResponse, classifierErr.Kind)
	assert.Equal(t, 0, store.len())
}

func TestService_ModerateStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.createErr = errors.NewDatabaseError(assert.AnError)
	svc := newTestService(staticRemote(cleanVerdict()), store)

	result, err := svc.Moderate(context.Background(), "hello")
	assert.Nil(t, result)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseError))
}

func TestService_ModerateWaitsForRemote(t *testing.T) {
	store := newMemoryStore()
	var finished int32
	svc := newTestService(RemoteClassifierFunc(func(ctx context.Context, text string) (*RemoteVerdict, error) {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return cleanVerdict(), nil
	}), store)

	result, err := svc.Moderate(context.Background(), "you idiot")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
	assert.True(t, result.Categories[model.CategoryBullying])
}

func TestService_SubmitFeedback(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(staticRemote(cleanVerdict()), store)
	ctx := context.Background()

	result, err := svc.Moderate(ctx, "This is a test message.")
	require.NoError(t, err)

	require.NoError(t, svc.SubmitFeedback(ctx, result.RequestID, true, "Accurate moderation"))
	require.NoError(t, svc.SubmitFeedback(ctx, result.RequestID, false, ""))

	view, err := svc.Lookup(ctx, result.RequestID)
	require.NoError(t, err)
	require.NotNil(t, view.UserFeedback)
	assert.False(t, *view.UserFeedback)
	require.NotNil(t, view.UserComment)
	assert.Equal(t, "", *view.UserComment)
	assert.Equal(t, result, view.Result)
}

func TestService_SubmitFeedbackUnknownID(t *testing.T) {
	svc := newTestService(staticRemote(cleanVerdict()), newMemoryStore())

	err := svc.SubmitFeedback(context.Background(), "invalid-request-id", true, "")
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestService_LookupUnknownID(t *testing.T) {
	svc := newTestService(staticRemote(cleanVerdict()), newMemoryStore())

	view, err := svc.Lookup(context.Background(), "missing")
	assert.Nil(t, view)
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestService_ListAndSummary(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(staticRemote(cleanVerdict()), store)
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		result, err := svc.Moderate(ctx, text)
		require.NoError(t, err)
		ids = append(ids, result.RequestID)
	}
	require.NoError(t, svc.SubmitFeedback(ctx, ids[0], true, ""))
	require.NoError(t, svc.SubmitFeedback(ctx, ids[1], false, "wrong"))

	all, err := svc.List(ctx, repository.NewListOptions())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	opts := repository.NewListOptions().WithFeedbackOnly(true)
	withFeedback, err := svc.List(ctx, opts)
	require.NoError(t, err)
	assert.Len(t, withFeedback, 2)
	assert.Equal(t, 2, opts.Pagination.Total)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 2, summary.FeedbackCount)
	assert.Equal(t, 1, summary.Agreed)
	assert.Equal(t, 1, summary.Disagreed)
	assert.True(t, summary.AgreementRate.Equal(udecimal.MustParse("0.5")))
}
