package moderation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerClassifier_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	upstream := RemoteClassifierFunc(func(ctx context.Context, text string) (*RemoteVerdict, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.NewClassifierError(errors.ClassifierUpstream, 500, "boom", nil)
	})

	breaker := NewBreakerClassifier(upstream, BreakerConfig{
		Name:                "test",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 3,
	})

	for i := 0; i < 3; i++ {
		_, err := breaker.Classify(context.Background(), "x")
		classifierErr, ok := errors.AsClassifierError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ClassifierUpstream, classifierErr.Kind)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := breaker.Classify(context.Background(), "x")
	classifierErr, ok := errors.AsClassifierError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassifierUnavailable, classifierErr.Kind)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestBreakerClassifier_PassesThroughVerdict(t *testing.T) {
	want := cleanVerdict()
	breaker := NewBreakerClassifier(RemoteClassifierFunc(func(ctx context.Context, text string) (*RemoteVerdict, error) {
		return want, nil
	}), BreakerConfig{Name: "test"})

	got, err := breaker.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}
