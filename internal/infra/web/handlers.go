package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/usecase"
)

// couponCreateRequest is the expected JSON body for issuing a coupon.
type couponCreateRequest struct {
	Amount     int64                  `json:"amount"`
	HolderName string                 `json:"holder_name"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// couponCreateResponse carries everything the operator hands to the holder.
// The token appears here once and is never retrievable again.
type couponCreateResponse struct {
	ID         string     `json:"id"`
	Token      string     `json:"token"`
	URL        string     `json:"url"` // redemption link
	QR         string     `json:"qr"`  // JSON record to embed in a QR code
	Amount     int64      `json:"amount"`
	HolderName string     `json:"holder_name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type adminCouponView struct {
	ID         string     `json:"id"`
	Amount     int64      `json:"amount"`
	HolderName string     `json:"holder_name"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func adminView(c *model.Coupon) adminCouponView {
	return adminCouponView{
		ID:         c.ID,
		Amount:     c.Amount,
		HolderName: c.HolderName,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UsedAt:     c.UsedAt,
		ExpiresAt:  c.ExpiresAt,
	}
}

func (s *Server) couponCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req couponCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		res, err := s.issueUC.Issue(ctx, usecase.IssueRequest{
			Amount:     req.Amount,
			HolderName: req.HolderName,
			ExpiresAt:  req.ExpiresAt,
			Meta:       req.Meta,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrInvalidHolder) {
				// Validation detail helps legitimate operators; this surface
				// is trusted, unlike the redemption one.
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to create coupon", http.StatusInternalServerError)
			return
		}

		if s.issued != nil {
			if err := s.issued.Inc(ctx, time.Now()); err != nil {
				s.log.Warn().Err(err).Msg("issuance counter update failed")
			}
		}

		writeJSON(w, http.StatusCreated, couponCreateResponse{
			ID:         res.Coupon.ID,
			Token:      res.Secret,
			URL:        res.Link,
			QR:         res.Record,
			Amount:     res.Coupon.Amount,
			HolderName: res.Coupon.HolderName,
			ExpiresAt:  res.Coupon.ExpiresAt,
			CreatedAt:  res.Coupon.CreatedAt,
		})
	}
}

func (s *Server) couponGetHandler(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.queryUC.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Coupon not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load coupon", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, adminView(c))
	}
}

func (s *Server) couponListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.CouponStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = model.CouponStatusUnused
		}
		if status != model.CouponStatusUnused && status != model.CouponStatusUsed {
			http.Error(w, "Unknown status filter", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		coupons, err := s.queryUC.List(r.Context(), status, limit)
		if err != nil {
			http.Error(w, "Failed to list coupons", http.StatusInternalServerError)
			return
		}
		views := make([]adminCouponView, 0, len(coupons))
		for _, c := range coupons {
			views = append(views, adminView(c))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats, err := s.queryUC.Stats(ctx)
		if err != nil {
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}

		var issuedToday int64
		if s.issued != nil {
			if issuedToday, err = s.issued.Today(ctx, time.Now()); err != nil {
				s.log.Warn().Err(err).Msg("issuance counter read failed")
			}
		}

		response := struct {
			ByStatus          map[string]int `json:"coupons_by_status"`
			OutstandingAmount int64          `json:"outstanding_amount"`
			ExpiredUnused     int            `json:"expired_unused"`
			IssuedToday       int64          `json:"issued_today"`
		}{
			ByStatus:          make(map[string]int, len(stats.ByStatus)),
			OutstandingAmount: stats.OutstandingAmount,
			ExpiredUnused:     stats.ExpiredUnused,
			IssuedToday:       issuedToday,
		}
		for k, v := range stats.ByStatus {
			response.ByStatus[string(k)] = v
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
