//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"qr-coupon-service/internal/credential"
	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/domain/ports/repository"
)

func TestCouponRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewCouponRepo(testPool)

	newStoredCoupon := func(t *testing.T, secret string, expiresAt *time.Time) *model.Coupon {
		t.Helper()
		c, err := model.NewCoupon("", credential.FingerprintOf(secret), 5000, "Test Holder", expiresAt, nil)
		if err != nil {
			t.Fatalf("failed to build coupon: %v", err)
		}
		if err := repo.Insert(ctx, nil, c); err != nil {
			t.Fatalf("failed to insert coupon: %v", err)
		}
		return c
	}

	t.Run("should insert and find a coupon", func(t *testing.T) {
		cleanup(t)
		c := newStoredCoupon(t, "secret-a", nil)

		found, err := repo.FindByID(ctx, nil, c.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.SecretFingerprint != c.SecretFingerprint {
			t.Error("stored fingerprint does not match")
		}
		if found.Status != model.CouponStatusUnused {
			t.Errorf("expected unused status, got %q", found.Status)
		}
		if found.UsedAt != nil {
			t.Error("expected nil used_at on a fresh coupon")
		}
	})

	t.Run("should reject a duplicate id", func(t *testing.T) {
		cleanup(t)
		c := newStoredCoupon(t, "secret-a", nil)

		dup, _ := model.NewCoupon(c.ID, c.SecretFingerprint, 100, "Dup", nil, nil)
		if err := repo.Insert(ctx, nil, dup); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should redeem once and refuse the replay", func(t *testing.T) {
		cleanup(t)
		c := newStoredCoupon(t, "secret-a", nil)
		fp := credential.FingerprintOf("secret-a")

		redeemed, err := repo.TryRedeem(ctx, nil, c.ID, fp, time.Now())
		if err != nil {
			t.Fatalf("TryRedeem failed: %v", err)
		}
		if redeemed.Status != model.CouponStatusUsed || redeemed.UsedAt == nil {
			t.Error("redeemed coupon not marked used")
		}

		if _, err := repo.TryRedeem(ctx, nil, c.ID, fp, time.Now()); !errors.Is(err, domain.ErrNotRedeemable) {
			t.Errorf("expected ErrNotRedeemable on replay, got %v", err)
		}
	})

	t.Run("should refuse a wrong fingerprint and leave the row untouched", func(t *testing.T) {
		cleanup(t)
		c := newStoredCoupon(t, "secret-a", nil)

		if _, err := repo.TryRedeem(ctx, nil, c.ID, credential.FingerprintOf("secret-b"), time.Now()); !errors.Is(err, domain.ErrNotRedeemable) {
			t.Fatalf("expected ErrNotRedeemable, got %v", err)
		}

		found, err := repo.FindByID(ctx, nil, c.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Status != model.CouponStatusUnused || found.UsedAt != nil {
			t.Error("rejected attempt must not mutate the coupon")
		}
	})

	t.Run("should refuse an unknown id", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.TryRedeem(ctx, nil, "00000000-0000-0000-0000-000000000000", credential.FingerprintOf("x"), time.Now()); !errors.Is(err, domain.ErrNotRedeemable) {
			t.Errorf("expected ErrNotRedeemable, got %v", err)
		}
	})

	t.Run("should refuse an expired coupon", func(t *testing.T) {
		cleanup(t)
		past := time.Now().Add(-time.Hour)
		c := newStoredCoupon(t, "secret-a", &past)

		if _, err := repo.TryRedeem(ctx, nil, c.ID, credential.FingerprintOf("secret-a"), time.Now()); !errors.Is(err, domain.ErrNotRedeemable) {
			t.Fatalf("expected ErrNotRedeemable for expired coupon, got %v", err)
		}

		found, err := repo.FindByID(ctx, nil, c.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Status != model.CouponStatusUnused {
			t.Error("expired coupon must stay unused")
		}
	})

	t.Run("should let exactly one of two racing redeemers win", func(t *testing.T) {
		cleanup(t)
		c := newStoredCoupon(t, "secret-a", nil)
		fp := credential.FingerprintOf("secret-a")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.TryRedeem(ctx, nil, c.ID, fp, time.Now())
			}(i)
		}
		wg.Wait()

		var successes, rejections int
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrNotRedeemable):
				rejections++
			default:
				t.Fatalf("unexpected error from racing TryRedeem: %v", err)
			}
		}
		if successes != 1 || rejections != 1 {
			t.Errorf("expected exactly one winner, got %d successes and %d rejections", successes, rejections)
		}

		var status string
		if err := testPool.QueryRow(ctx, "SELECT status FROM coupons WHERE id = $1", c.ID).Scan(&status); err != nil {
			t.Fatalf("direct status query failed: %v", err)
		}
		if status != string(model.CouponStatusUsed) {
			t.Errorf("expected final status used, got %q", status)
		}
	})

	t.Run("should aggregate stats over the table", func(t *testing.T) {
		cleanup(t)
		newStoredCoupon(t, "s1", nil)
		newStoredCoupon(t, "s2", nil)
		used := newStoredCoupon(t, "s3", nil)
		past := time.Now().Add(-time.Hour)
		newStoredCoupon(t, "s4", &past)

		if _, err := repo.TryRedeem(ctx, nil, used.ID, credential.FingerprintOf("s3"), time.Now()); err != nil {
			t.Fatalf("TryRedeem failed: %v", err)
		}

		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[model.CouponStatusUnused] != 3 || counts[model.CouponStatusUsed] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}

		outstanding, err := repo.OutstandingAmount(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("OutstandingAmount failed: %v", err)
		}
		if outstanding != 10000 { // two live unused coupons of 5000 each
			t.Errorf("expected outstanding 10000, got %d", outstanding)
		}

		expired, err := repo.CountExpiredUnused(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("CountExpiredUnused failed: %v", err)
		}
		if expired != 1 {
			t.Errorf("expected 1 expired unused coupon, got %d", expired)
		}
	})

	t.Run("should list by status with a limit", func(t *testing.T) {
		cleanup(t)
		newStoredCoupon(t, "s1", nil)
		newStoredCoupon(t, "s2", nil)
		newStoredCoupon(t, "s3", nil)

		coupons, err := repo.ListByStatus(ctx, nil, model.CouponStatusUnused, 2)
		if err != nil {
			t.Fatalf("ListByStatus failed: %v", err)
		}
		if len(coupons) != 2 {
			t.Errorf("expected 2 coupons, got %d", len(coupons))
		}
	})
}

func TestTxManager_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewCouponRepo(testPool)
	tm := NewTxManager(testPool)

	t.Run("should roll the whole batch back when one insert fails", func(t *testing.T) {
		cleanup(t)

		good, _ := model.NewCoupon("", credential.FingerprintOf("s1"), 100, "A", nil, nil)
		dupID, _ := model.NewCoupon("", credential.FingerprintOf("s2"), 100, "B", nil, nil)

		err := tm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
			if err := repo.Insert(txCtx, tx, good); err != nil {
				return err
			}
			clash, _ := model.NewCoupon(good.ID, dupID.SecretFingerprint, 100, "B", nil, nil)
			return repo.Insert(txCtx, tx, clash)
		})
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists out of the transaction, got %v", err)
		}

		if _, err := repo.FindByID(ctx, nil, good.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected the first insert to be rolled back, got %v", err)
		}
	})
}
