package moderation

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/sony/gobreaker"
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// BreakerClassifier 为远程分类器加上熔断保护
// 熔断打开期间直接返回 unavailable，不再访问上游
type BreakerClassifier struct {
	inner   RemoteClassifier
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClassifier 创建带熔断的分类器
func NewBreakerClassifier(inner RemoteClassifier, cfg BreakerConfig) *BreakerClassifier {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logger.WithComponent("breaker")
			log.Warn().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
	}

	return &BreakerClassifier{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Classify 实现 RemoteClassifier
func (b *BreakerClassifier) Classify(ctx context.Context, text string) (*RemoteVerdict, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Classify(ctx, text)
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.NewClassifierError(errors.ClassifierUnavailable, 0, "classifier temporarily unavailable: "+err.Error(), err)
		}
		return nil, err
	}
	return result.(*RemoteVerdict), nil
}

// State 返回当前熔断状态
func (b *BreakerClassifier) State() gobreaker.State {
	return b.breaker.State()
}
