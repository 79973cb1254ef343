package worker

import (
	"context"
	"time"

	"tutorslot/internal/logging"

	"github.com/rs/zerolog"
)

// Expirer cancels bookings that waited too long for payment.
type Expirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentSweeper periodically cancels pending bookings older than the payment timeout.
// After a failed sweep it retries sooner, backing off up to the regular interval.
type PaymentSweeper struct {
	expirer  Expirer
	timeout  time.Duration
	interval time.Duration
	retry    RetryPolicy
	logger   *zerolog.Logger
}

func NewPaymentSweeper(expirer Expirer, timeout, interval time.Duration, logger *zerolog.Logger) *PaymentSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PaymentSweeper{
		expirer:  expirer,
		timeout:  timeout,
		interval: interval,
		retry:    RetryPolicy{InitialDelay: time.Second, MaxDelay: interval, BackoffFactor: 2},
		logger:   logging.Component(logger, "payment-sweeper"),
	}
}

// Start runs until ctx is done. A zero timeout disables expiry.
func (s *PaymentSweeper) Start(ctx context.Context) {
	if s.timeout <= 0 {
		s.logger.Info().Msg("payment timeout disabled")
		return
	}
	s.logger.Info().Dur("timeout", s.timeout).Dur("interval", s.interval).Msg("payment sweeper started")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("payment sweeper stopped")
			return
		case <-timer.C:
		}

		next := s.interval
		if _, err := s.Sweep(ctx); err != nil {
			failures++
			next = s.retry.NextDelay(failures)
		} else {
			failures = 0
		}
		timer.Reset(next)
	}
}

// Sweep runs one expiry pass.
func (s *PaymentSweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.expirer.ExpirePending(ctx, s.timeout)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Int("expired", n).Msg("sweep failed")
		}
		return n, err
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("expired unpaid bookings")
	}
	return n, nil
}
