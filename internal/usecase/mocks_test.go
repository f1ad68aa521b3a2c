//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// MockCouponRepo is an in-memory coupon store for unit tests. TryRedeem holds
// the same atomicity contract as the real store: the predicate check and the
// mutation happen under one lock, so concurrent attempts race realistically.
type MockCouponRepo struct {
	mu    sync.Mutex
	store map[string]*model.Coupon

	// optional hooks to override behaviour per test
	InsertFunc    func(ctx context.Context, tx repository.Tx, c *model.Coupon) error
	TryRedeemFunc func(ctx context.Context, tx repository.Tx, id, fingerprint string, now time.Time) (*model.Coupon, error)
	FindByIDFunc  func(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error)
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{store: make(map[string]*model.Coupon)}
}

func (m *MockCouponRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *MockCouponRepo) TryRedeem(ctx context.Context, tx repository.Tx, id, fingerprint string, now time.Time) (*model.Coupon, error) {
	if m.TryRedeemFunc != nil {
		return m.TryRedeemFunc(ctx, tx, id, fingerprint, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok || c.SecretFingerprint != fingerprint || c.Status != model.CouponStatusUnused || c.IsExpired(now) {
		return nil, domain.ErrNotRedeemable
	}
	used := now
	c.Status = model.CouponStatusUsed
	c.UsedAt = &used
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.CouponStatus, limit int) ([]*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Coupon
	for _, c := range m.store {
		if c.Status == status && len(out) < limit {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCouponRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.CouponStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.CouponStatus]int)
	for _, c := range m.store {
		out[c.Status]++
	}
	return out, nil
}

func (m *MockCouponRepo) OutstandingAmount(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, c := range m.store {
		if c.Status == model.CouponStatusUnused && !c.IsExpired(now) {
			total += c.Amount
		}
	}
	return total, nil
}

func (m *MockCouponRepo) CountExpiredUnused(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		if c.Status == model.CouponStatusUnused && c.IsExpired(now) {
			n++
		}
	}
	return n, nil
}

// Get returns the stored coupon directly, bypassing the port. Test-only.
func (m *MockCouponRepo) Get(id string) *model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id]
}

type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
