// File: internal/usecase/issue_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"qr-coupon-service/internal/credential"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
	"qr-coupon-service/internal/infra/metrics"
)

// Compile-time check
var _ IssuanceUseCase = (*issuanceUC)(nil)

// IssueRequest is one coupon to create.
type IssueRequest struct {
	Amount     int64
	HolderName string
	ExpiresAt  *time.Time
	Meta       map[string]interface{}
}

// IssueResult carries the stored coupon plus the one-time secret and its
// shareable encodings. The secret exists nowhere else and is never
// retrievable again: losing it loses the credential.
type IssueResult struct {
	Coupon *model.Coupon
	Secret string
	Link   string // redemption URL with cid and t query parameters
	Record string // compact JSON record embedded in QR codes
}

type IssuanceUseCase interface {
	// Issue creates one coupon. Validation failures surface as
	// domain.ErrInvalidAmount / domain.ErrInvalidHolder; no row is created
	// unless the whole operation succeeds.
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	// IssueBatch creates all requested coupons inside one transaction:
	// either every coupon exists afterwards or none does.
	IssueBatch(ctx context.Context, reqs []IssueRequest) ([]*IssueResult, error)
}

type issuanceUC struct {
	coupons       repository.CouponRepository
	tm            repository.TransactionManager
	baseURL       string
	defaultExpiry time.Duration
	log           *zerolog.Logger
}

func NewIssuanceUseCase(coupons repository.CouponRepository, tm repository.TransactionManager, baseURL string, defaultExpiry time.Duration, logger *zerolog.Logger) *issuanceUC {
	if defaultExpiry <= 0 {
		defaultExpiry = model.DefaultExpiry
	}
	l := logger.With().Str("component", "IssuanceUC").Logger()
	return &issuanceUC{coupons: coupons, tm: tm, baseURL: baseURL, defaultExpiry: defaultExpiry, log: &l}
}

func (u *issuanceUC) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	res, err := u.build(req)
	if err != nil {
		return nil, err
	}
	if err := u.coupons.Insert(ctx, repository.NoTX, res.Coupon); err != nil {
		u.log.Error().Err(err).Str("coupon_id", res.Coupon.ID).Msg("insert coupon failed")
		return nil, err
	}
	u.logIssued(res.Coupon)
	return res, nil
}

func (u *issuanceUC) IssueBatch(ctx context.Context, reqs []IssueRequest) ([]*IssueResult, error) {
	results := make([]*IssueResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := u.build(req)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, res := range results {
			if err := u.coupons.Insert(ctx, tx, res.Coupon); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Int("count", len(reqs)).Msg("batch issuance rolled back")
		return nil, err
	}
	for _, res := range results {
		u.logIssued(res.Coupon)
	}
	return results, nil
}

// build validates the request, mints the secret, and assembles the coupon and
// its encodings without touching the store.
func (u *issuanceUC) build(req IssueRequest) (*IssueResult, error) {
	secret, err := credential.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil {
		e := time.Now().Add(u.defaultExpiry)
		expiresAt = &e
	}

	c, err := model.NewCoupon("", credential.FingerprintOf(secret), req.Amount, req.HolderName, expiresAt, req.Meta)
	if err != nil {
		return nil, err
	}

	record, err := credential.EncodeRecord(c.ID, secret)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return &IssueResult{
		Coupon: c,
		Secret: secret,
		Link:   credential.EncodeLink(u.baseURL, c.ID, secret),
		Record: record,
	}, nil
}

func (u *issuanceUC) logIssued(c *model.Coupon) {
	metrics.IncCouponIssued(c.Amount)
	ev := u.log.Info().Str("coupon_id", c.ID).Int64("amount", c.Amount).Str("holder", c.HolderName)
	if c.ExpiresAt != nil {
		ev = ev.Time("expires_at", *c.ExpiresAt)
	}
	ev.Msg("coupon issued")
}
