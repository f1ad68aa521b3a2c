// File: internal/usecase/redeem_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"qr-coupon-service/internal/credential"
	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
	"qr-coupon-service/internal/infra/metrics"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

type RedemptionUseCase interface {
	// Redeem consumes a presented credential payload. On success the returned
	// snapshot reflects the used state. Every failed predicate (unknown id,
	// wrong secret, already used, expired) surfaces as the single uniform
	// domain.ErrNotRedeemable so an untrusted caller cannot probe coupon
	// state. Undecodable input is domain.ErrMalformedPayload. Neither outcome
	// is retried here; each attempt is independent.
	Redeem(ctx context.Context, rawPayload string) (*model.Coupon, error)
}

type redemptionUC struct {
	coupons repository.CouponRepository
	now     func() time.Time
	log     *zerolog.Logger
}

func NewRedemptionUseCase(coupons repository.CouponRepository, logger *zerolog.Logger) *redemptionUC {
	l := logger.With().Str("component", "RedemptionUC").Logger()
	return &redemptionUC{coupons: coupons, now: time.Now, log: &l}
}

func (u *redemptionUC) Redeem(ctx context.Context, rawPayload string) (*model.Coupon, error) {
	id, secret, err := credential.Decode(rawPayload)
	if err != nil {
		metrics.IncRedemption("malformed")
		return nil, domain.ErrMalformedPayload
	}

	start := time.Now()
	c, err := u.coupons.TryRedeem(ctx, repository.NoTX, id, credential.FingerprintOf(secret), u.now())
	metrics.ObserveRedeemLatency(time.Since(start))

	switch {
	case err == nil:
		metrics.IncRedemption("success")
		u.log.Info().Str("coupon_id", c.ID).Int64("amount", c.Amount).Msg("coupon redeemed")
		return c, nil
	case errors.Is(err, domain.ErrNotRedeemable), errors.Is(err, domain.ErrNotFound):
		// The caller only ever learns "rejected"; the precise cause stays in
		// the trusted log for operator diagnosis.
		metrics.IncRedemption("rejected")
		u.logRejection(ctx, id)
		return nil, domain.ErrNotRedeemable
	default:
		metrics.IncRedemption("error")
		u.log.Error().Err(err).Str("coupon_id", id).Msg("redeem store call failed")
		return nil, err
	}
}

// logRejection reads the row to record why the attempt failed. Best effort;
// the caller-visible outcome is already fixed by the atomic store call.
func (u *redemptionUC) logRejection(ctx context.Context, id string) {
	if u.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	c, err := u.coupons.FindByID(ctx, repository.NoTX, id)
	cause := "secret_mismatch"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cause = "unknown_id"
	case err != nil:
		u.log.Debug().Err(err).Str("coupon_id", id).Msg("redemption rejected; cause lookup failed")
		return
	case c.IsRedeemed():
		cause = "already_used"
	case c.IsExpired(u.now()):
		cause = "expired"
	}
	u.log.Debug().Str("coupon_id", id).Str("cause", cause).Msg("redemption rejected")
}
