package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"qr-coupon-service/internal/infra/metrics"
	"qr-coupon-service/internal/usecase"
)

// ExpirySweeper periodically surveys the coupon store and publishes gauges.
// It is strictly read-only: expiry is enforced inside the atomic redeem
// predicate, and unused -> used is the only legal status transition, so there
// is nothing for a background job to mutate.
type ExpirySweeper struct {
	interval time.Duration
	queryUC  usecase.CouponQueryUseCase
	log      *zerolog.Logger
}

func NewExpirySweeper(interval time.Duration, queryUC usecase.CouponQueryUseCase, logger *zerolog.Logger) *ExpirySweeper {
	l := logger.With().Str("component", "ExpirySweeper").Logger()
	return &ExpirySweeper{interval: interval, queryUC: queryUC, log: &l}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	stats, err := w.queryUC.Stats(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	for status, n := range stats.ByStatus {
		metrics.SetCouponsByStatus(string(status), n)
	}
	metrics.SetCouponsExpiredUnused(stats.ExpiredUnused)
	metrics.SetCouponsOutstandingAmount(stats.OutstandingAmount)
	if stats.ExpiredUnused > 0 {
		w.log.Info().Int("count", stats.ExpiredUnused).Msg("coupons expired unredeemed")
	}
}
