package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"qr-coupon-service/internal/domain"
)

type CouponStatus string

const (
	CouponStatusUnused CouponStatus = "unused"
	CouponStatusUsed   CouponStatus = "used"
)

// DefaultExpiry is applied when the issuer does not supply an explicit expiry.
const DefaultExpiry = 90 * 24 * time.Hour

// Coupon is a single-use monetary voucher. Possession of the matching secret,
// not identity, grants the right to redeem it. The raw secret is never stored;
// only its one-way fingerprint is. Status moves unused -> used exactly once
// and never reverts.
type Coupon struct {
	ID                string
	SecretFingerprint string
	Amount            int64 // minor currency units, fixed at creation
	HolderName        string
	Status            CouponStatus
	CreatedAt         time.Time
	UsedAt            *time.Time // set exactly when Status flips to used
	ExpiresAt         *time.Time
	Meta              map[string]interface{} // opaque extra payload (stored as JSONB)
}

// NewCoupon builds an unused coupon. Pass id == "" to get a fresh UUID.
// The expiry defaults to CreatedAt + DefaultExpiry when expiresAt is nil.
func NewCoupon(id, fingerprint string, amount int64, holderName string, expiresAt *time.Time, meta map[string]interface{}) (*Coupon, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		return nil, domain.ErrInvalidHolder
	}
	if fingerprint == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	if expiresAt == nil {
		e := now.Add(DefaultExpiry)
		expiresAt = &e
	}
	return &Coupon{
		ID:                id,
		SecretFingerprint: fingerprint,
		Amount:            amount,
		HolderName:        holderName,
		Status:            CouponStatusUnused,
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
		Meta:              meta,
	}, nil
}

// IsExpired reports whether the coupon may no longer be redeemed due to expiry.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func (c *Coupon) IsRedeemed() bool { return c.Status == CouponStatusUsed }
