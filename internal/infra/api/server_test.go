//go:build !integration

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/infra/api"
)

type mockRedeemUC struct {
	redeemFunc func(ctx context.Context, rawPayload string) (*model.Coupon, error)
	lastRaw    string
}

func (m *mockRedeemUC) Redeem(ctx context.Context, rawPayload string) (*model.Coupon, error) {
	m.lastRaw = rawPayload
	return m.redeemFunc(ctx, rawPayload)
}

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func newServer(uc *mockRedeemUC) http.Handler {
	return api.NewServer(uc, nil, 10, time.Minute, newLogger()).Routes()
}

func usedCoupon() *model.Coupon {
	now := time.Now()
	return &model.Coupon{
		ID:         "c1",
		Amount:     5000,
		HolderName: "A. Batbold",
		Status:     model.CouponStatusUsed,
		CreatedAt:  now.Add(-time.Hour),
		UsedAt:     &now,
	}
}

type redeemBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Coupon  *struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	} `json:"coupon"`
}

func doRequest(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, redeemBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body redeemBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, body
}

func TestRedeemEndpoints(t *testing.T) {
	t.Run("POST with the QR record succeeds", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return usedCoupon(), nil
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", strings.NewReader(`{"cid":"c1","token":"s1"}`))
		rec, body := doRequest(t, h, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !body.Success || body.Coupon == nil {
			t.Fatal("expected a success envelope with the coupon")
		}
		if body.Coupon.Status != "used" || body.Coupon.Amount != 5000 {
			t.Errorf("unexpected coupon view: %+v", body.Coupon)
		}
		if uc.lastRaw != `{"cid":"c1","token":"s1"}` {
			t.Errorf("handler must pass the body through untouched, got %q", uc.lastRaw)
		}
	})

	t.Run("GET link form passes the query through", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return usedCoupon(), nil
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodGet, "/redeem?cid=c1&t=s1", nil)
		rec, body := doRequest(t, h, req)

		if rec.Code != http.StatusOK || !body.Success {
			t.Fatalf("expected success, got %d %+v", rec.Code, body)
		}
		if uc.lastRaw != "cid=c1&t=s1" {
			t.Errorf("expected the raw query as payload, got %q", uc.lastRaw)
		}
	})

	t.Run("rejection is uniform regardless of cause", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return nil, domain.ErrNotRedeemable
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", strings.NewReader(`{"cid":"c1","token":"wrong"}`))
		rec, body := doRequest(t, h, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if body.Success {
			t.Error("expected success=false")
		}
		if body.Message != "Invalid or already used coupon" {
			t.Errorf("rejection message must not leak the cause, got %q", body.Message)
		}
		if body.Coupon != nil {
			t.Error("a rejection must not include coupon state")
		}
	})

	t.Run("malformed payload maps to 400", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return nil, domain.ErrMalformedPayload
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", strings.NewReader("garbage"))
		rec, body := doRequest(t, h, req)

		if rec.Code != http.StatusBadRequest || body.Success {
			t.Errorf("expected a 400 failure envelope, got %d %+v", rec.Code, body)
		}
	})

	t.Run("store failure maps to 500 and invites retry", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return nil, errors.New("pool exhausted")
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", strings.NewReader(`{"cid":"c1","token":"s1"}`))
		rec, body := doRequest(t, h, req)

		if rec.Code != http.StatusInternalServerError || body.Success {
			t.Errorf("expected a 500 failure envelope, got %d %+v", rec.Code, body)
		}
	})

	t.Run("responses carry a request id", func(t *testing.T) {
		uc := &mockRedeemUC{redeemFunc: func(ctx context.Context, raw string) (*model.Coupon, error) {
			return usedCoupon(), nil
		}}
		h := newServer(uc)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected an X-Request-ID header")
		}
	})
}
