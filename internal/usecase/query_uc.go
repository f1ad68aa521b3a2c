package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
)

// Compile-time check
var _ CouponQueryUseCase = (*couponQueryUC)(nil)

// CouponStats aggregates the store for the ops endpoint and the sweeper.
type CouponStats struct {
	ByStatus          map[model.CouponStatus]int
	OutstandingAmount int64 // unused, not yet expired, minor units
	ExpiredUnused     int
}

// CouponQueryUseCase is the trusted, read-only surface for operators. Nothing
// here mutates coupon state and none of it is reachable by redeemers.
type CouponQueryUseCase interface {
	Get(ctx context.Context, id string) (*model.Coupon, error)
	List(ctx context.Context, status model.CouponStatus, limit int) ([]*model.Coupon, error)
	Stats(ctx context.Context) (*CouponStats, error)
}

type couponQueryUC struct {
	coupons repository.CouponRepository
	log     *zerolog.Logger
}

func NewCouponQueryUseCase(coupons repository.CouponRepository, logger *zerolog.Logger) *couponQueryUC {
	l := logger.With().Str("component", "CouponQueryUC").Logger()
	return &couponQueryUC{coupons: coupons, log: &l}
}

func (u *couponQueryUC) Get(ctx context.Context, id string) (*model.Coupon, error) {
	return u.coupons.FindByID(ctx, repository.NoTX, id)
}

func (u *couponQueryUC) List(ctx context.Context, status model.CouponStatus, limit int) ([]*model.Coupon, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.coupons.ListByStatus(ctx, repository.NoTX, status, limit)
}

func (u *couponQueryUC) Stats(ctx context.Context) (*CouponStats, error) {
	now := time.Now()
	byStatus, err := u.coupons.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	outstanding, err := u.coupons.OutstandingAmount(ctx, repository.NoTX, now)
	if err != nil {
		return nil, err
	}
	expired, err := u.coupons.CountExpiredUnused(ctx, repository.NoTX, now)
	if err != nil {
		return nil, err
	}
	return &CouponStats{
		ByStatus:          byStatus,
		OutstandingAmount: outstanding,
		ExpiredUnused:     expired,
	}, nil
}
