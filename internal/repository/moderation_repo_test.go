package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ding113/moderation-gateway/internal/database"
	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func newRecord(t *testing.T, text string) *model.ModerationRecord {
	t.Helper()

	result := &model.ModerationResult{
		RequestID:     uuid.NewString(),
		IsAppropriate: true,
		Categories: map[model.Category]bool{
			model.CategorySexual: false,
			model.CategorySpam:   true,
		},
		CategoryScores: map[model.Category]float64{
			model.CategorySexual: 0.0012,
		},
	}
	encoded, err := model.EncodeResult(result)
	require.NoError(t, err)

	return &model.ModerationRecord{
		RequestID:        result.RequestID,
		OriginalText:     text,
		ModerationResult: encoded,
	}
}

func TestModerationRepository_CreateAndFind(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))
	ctx := context.Background()

	record := newRecord(t, "Buy now! Limited offer! Click here!")
	require.NoError(t, repo.Create(ctx, record))
	assert.NotZero(t, record.ID)

	found, err := repo.FindByRequestID(ctx, record.RequestID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, record.RequestID, found.RequestID)
	assert.Equal(t, "Buy now! Limited offer! Click here!", found.OriginalText)
	assert.Nil(t, found.UserFeedback)
	assert.Nil(t, found.UserComment)
	assert.False(t, found.HasFeedback())

	decoded, err := found.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, record.RequestID, decoded.RequestID)
	assert.True(t, decoded.IsAppropriate)
	assert.True(t, decoded.Categories[model.CategorySpam])
	assert.InDelta(t, 0.0012, decoded.CategoryScores[model.CategorySexual], 1e-9)
	_, hasSpamScore := decoded.CategoryScores[model.CategorySpam]
	assert.False(t, hasSpamScore)
}

func TestModerationRepository_FindUnknownReturnsNil(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))

	found, err := repo.FindByRequestID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestModerationRepository_CreateDuplicateRequestID(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))
	ctx := context.Background()

	first := newRecord(t, "first")
	require.NoError(t, repo.Create(ctx, first))

	second := newRecord(t, "second")
	second.RequestID = first.RequestID

	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDuplicateKey))

	found, err := repo.FindByRequestID(ctx, first.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "first", found.OriginalText)
}

func TestModerationRepository_AttachFeedback(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))
	ctx := context.Background()

	record := newRecord(t, "This is a test message for feedback.")
	require.NoError(t, repo.Create(ctx, record))

	require.NoError(t, repo.AttachFeedback(ctx, record.RequestID, true, "This message is appropriate."))

	found, err := repo.FindByRequestID(ctx, record.RequestID)
	require.NoError(t, err)
	require.NotNil(t, found.UserFeedback)
	require.NotNil(t, found.UserComment)
	assert.True(t, *found.UserFeedback)
	assert.Equal(t, "This message is appropriate.", *found.UserComment)

	// 第二次反馈覆盖第一次
	require.NoError(t, repo.AttachFeedback(ctx, record.RequestID, false, "changed my mind"))

	found, err = repo.FindByRequestID(ctx, record.RequestID)
	require.NoError(t, err)
	assert.False(t, *found.UserFeedback)
	assert.Equal(t, "changed my mind", *found.UserComment)
	assert.Equal(t, record.ModerationResult, found.ModerationResult)

	// 相同内容重复提交依然成功
	require.NoError(t, repo.AttachFeedback(ctx, record.RequestID, false, "changed my mind"))
}

func TestModerationRepository_AttachFeedbackUnknown(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))

	err := repo.AttachFeedback(context.Background(), uuid.NewString(), true, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestModerationRepository_ConcurrentFeedbackIsLastWriteWins(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))
	ctx := context.Background()

	record := newRecord(t, "concurrent")
	require.NoError(t, repo.Create(ctx, record))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.AttachFeedback(ctx, record.RequestID, i%2 == 0, "writer-"+strconv.Itoa(i))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	found, err := repo.FindByRequestID(ctx, record.RequestID)
	require.NoError(t, err)
	require.NotNil(t, found.UserFeedback)
	require.NotNil(t, found.UserComment)

	// 反馈与评论总是来自同一次写入
	writer, err := strconv.Atoi(strings.TrimPrefix(*found.UserComment, "writer-"))
	require.NoError(t, err)
	assert.Equal(t, writer%2 == 0, *found.UserFeedback)
}

func TestModerationRepository_ListAndCount(t *testing.T) {
	repo := NewModerationRepository(newTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		record := newRecord(t, fmt.Sprintf("text %d", i))
		require.NoError(t, repo.Create(ctx, record))
		ids = append(ids, record.RequestID)
	}
	require.NoError(t, repo.AttachFeedback(ctx, ids[1], true, ""))
	require.NoError(t, repo.AttachFeedback(ctx, ids[3], false, "nope"))

	total, err := repo.Count(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	withFeedback, err := repo.Count(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, withFeedback)

	page, err := repo.List(ctx, NewListOptions().WithPagination(1, 2))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].RequestID)
	assert.Equal(t, ids[3], page[1].RequestID)

	feedbackOnly, err := repo.List(ctx, NewListOptions().WithFeedbackOnly(true))
	require.NoError(t, err)
	require.Len(t, feedbackOnly, 2)
	assert.Equal(t, ids[3], feedbackOnly[0].RequestID)
	assert.Equal(t, ids[1], feedbackOnly[1].RequestID)
}
