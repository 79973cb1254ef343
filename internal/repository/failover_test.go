package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	limiter := NewFailoverRateLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "A", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.CheckRateLimit(ctx, "A", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, limiter.Degraded())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "B", 5, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "B", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.CheckRateLimit(ctx, "B", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.Degraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackUntilProbe", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "C", 5, time.Minute).Return(false, nil).Once()

		allowed, err := limiter.CheckRateLimit(ctx, "C", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "C", 5, time.Minute)
		fallback.AssertExpectations(t)
	})

	t.Run("FailedProbe", func(t *testing.T) {
		limiter.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("CheckRateLimit", ctx, "D", 5, time.Minute).Return(false, errors.New("still down")).Once()
		fallback.On("CheckRateLimit", ctx, "D", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.CheckRateLimit(ctx, "D", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.Degraded())
		assert.WithinDuration(t, time.Now(), limiter.lastCheck, time.Second)
	})

	t.Run("Recovery", func(t *testing.T) {
		limiter.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("CheckRateLimit", ctx, "E", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.CheckRateLimit(ctx, "E", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, limiter.Degraded())
		primary.AssertExpectations(t)
	})
}

func TestFailoverRateLimiterOverRedis(t *testing.T) {
	limiter := NewFailoverRateLimiter(NewRedisRateLimiter(nil, ""), NewMemoryRateLimiter(), nil)

	allowed, err := limiter.CheckRateLimit(context.Background(), "A", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.CheckRateLimit(context.Background(), "A", 1, time.Minute)
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, limiter.Degraded())
}
