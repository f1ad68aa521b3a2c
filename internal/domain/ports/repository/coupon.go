package repository

import (
	"context"
	"time"

	"qr-coupon-service/internal/domain/model"
)

// CouponRepository is the port for the durable coupon store.
type CouponRepository interface {
	// Insert persists a freshly issued coupon. Returns domain.ErrAlreadyExists
	// on id collision; the row either exists completely afterwards or not at all.
	Insert(ctx context.Context, tx Tx, coupon *model.Coupon) error

	// TryRedeem atomically flips the row matching id AND fingerprint AND
	// status=unused AND not expired at `now` to used, stamping UsedAt. The
	// predicate check and the mutation are indivisible at the storage layer:
	// of any number of concurrent attempts, at most one succeeds. When no row
	// matches, nothing is mutated and domain.ErrNotRedeemable is returned.
	TryRedeem(ctx context.Context, tx Tx, id, fingerprint string, now time.Time) (*model.Coupon, error)

	// FindByID is a read-only lookup. domain.ErrNotFound when absent.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Coupon, error)

	// ListByStatus returns up to limit coupons in the given status, newest first.
	ListByStatus(ctx context.Context, tx Tx, status model.CouponStatus, limit int) ([]*model.Coupon, error)

	// CountByStatus returns row counts keyed by status.
	CountByStatus(ctx context.Context, tx Tx) (map[model.CouponStatus]int, error)

	// OutstandingAmount sums the amounts of unused, not-yet-expired coupons.
	OutstandingAmount(ctx context.Context, tx Tx, now time.Time) (int64, error)

	// CountExpiredUnused counts coupons that expired without being redeemed.
	CountExpiredUnused(ctx context.Context, tx Tx, now time.Time) (int, error)
}
