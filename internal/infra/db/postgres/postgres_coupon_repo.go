package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CouponRepository = (*couponRepo)(nil)

const couponColumns = `id, secret_fingerprint, amount, holder_name, status, created_at, used_at, expires_at, meta`

type couponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) repository.CouponRepository {
	return &couponRepo{pool: pool}
}

func (r *couponRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (id, secret_fingerprint, amount, holder_name, status, created_at, used_at, expires_at, meta)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.SecretFingerprint, c.Amount, c.HolderName, c.Status, c.CreatedAt, c.UsedAt, c.ExpiresAt, c.Meta,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// TryRedeem is the correctness-critical primitive: a single conditional UPDATE
// whose predicate and mutation are indivisible. Expiry is part of the same
// predicate, so an expired coupon can never transition to used. Zero matched
// rows means nothing was mutated, whatever the cause.
func (r *couponRepo) TryRedeem(ctx context.Context, tx repository.Tx, id, fingerprint string, now time.Time) (*model.Coupon, error) {
	const q = `
UPDATE coupons
   SET status = 'used', used_at = $3
 WHERE id = $1
   AND secret_fingerprint = $2
   AND status = 'unused'
   AND (expires_at IS NULL OR expires_at > $3)
RETURNING ` + couponColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, id, fingerprint, now)
	if err != nil {
		return nil, err
	}
	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotRedeemable
		}
		return nil, err
	}
	return c, nil
}

func (r *couponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *couponRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.CouponStatus, limit int) ([]*model.Coupon, error) {
	const q = `
SELECT ` + couponColumns + `
  FROM coupons
 WHERE status = $1
 ORDER BY created_at DESC
 LIMIT $2;
`
	rows, err := pickRows(ctx, r.pool, tx, q, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *couponRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.CouponStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM coupons GROUP BY status;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.CouponStatus]int)
	for rows.Next() {
		var status model.CouponStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *couponRepo) OutstandingAmount(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount), 0)
  FROM coupons
 WHERE status = 'unused'
   AND (expires_at IS NULL OR expires_at > $1);
`
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return total, nil
}

func (r *couponRepo) CountExpiredUnused(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM coupons
 WHERE status = 'unused'
   AND expires_at IS NOT NULL
   AND expires_at <= $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID, &c.SecretFingerprint, &c.Amount, &c.HolderName, &c.Status,
		&c.CreatedAt, &c.UsedAt, &c.ExpiresAt, &c.Meta,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
