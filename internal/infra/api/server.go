// Package api exposes the public redemption endpoint. Anyone holding a coupon
// payload may call it; every rejection is deliberately uniform.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"qr-coupon-service/internal/domain"
	"qr-coupon-service/internal/domain/model"
	"qr-coupon-service/internal/infra/metrics"
	red "qr-coupon-service/internal/infra/redis"
	"qr-coupon-service/internal/usecase"
)

const maxPayloadBytes = 4 << 10

// rejectedMessage is the single message every failed redemption gets,
// whatever the cause. Distinguishing "wrong token" from "already used" would
// hand an attacker an oracle over coupon existence and state.
const rejectedMessage = "Invalid or already used coupon"

type Server struct {
	redeemUC     usecase.RedemptionUseCase
	limiter      *red.RateLimiter
	redeemLimit  int
	redeemWindow time.Duration
	log          *zerolog.Logger
}

// NewServer constructs the public API layer. limiter may be nil to disable
// throttling (tests).
func NewServer(redeemUC usecase.RedemptionUseCase, limiter *red.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{redeemUC: redeemUC, limiter: limiter, redeemLimit: limit, redeemWindow: window, log: &l}
}

// Routes builds the public router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Post("/api/v1/redeem", s.handleRedeemPost)
	r.Get("/redeem", s.handleRedeemLink)
	return r
}

// handleRedeemPost accepts the JSON record form {"cid":...,"token":...},
// the payload a QR scanner extracts.
func (s *Server) handleRedeemPost(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		s.writeRejection(w, r, http.StatusBadRequest, "Malformed coupon payload")
		return
	}
	s.redeem(w, r, string(body))
}

// handleRedeemLink accepts the link form: GET /redeem?cid=<id>&t=<secret>.
func (s *Server) handleRedeemLink(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}
	s.redeem(w, r, r.URL.RawQuery)
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request, rawPayload string) {
	c, err := s.redeemUC.Redeem(r.Context(), rawPayload)
	switch {
	case err == nil:
		s.writeJSON(w, r, http.StatusOK, redeemResponse{Success: true, Coupon: couponView(c)})
	case errors.Is(err, domain.ErrMalformedPayload):
		s.writeRejection(w, r, http.StatusBadRequest, "Malformed coupon payload")
	case errors.Is(err, domain.ErrNotRedeemable):
		s.writeRejection(w, r, http.StatusBadRequest, rejectedMessage)
	default:
		// Infrastructure failure: nothing was mutated, the caller may retry.
		s.writeRejection(w, r, http.StatusInternalServerError, "Temporary failure, please retry")
	}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), red.RedeemAttemptKey(clientIP(r)), s.redeemLimit, s.redeemWindow)
	if err != nil {
		// Redis being down must not take redemption down with it.
		s.log.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		return true
	}
	if !ok {
		s.writeRejection(w, r, http.StatusTooManyRequests, "Too many attempts, slow down")
		return false
	}
	return true
}

type redeemResponse struct {
	Success bool        `json:"success"`
	Coupon  *couponJSON `json:"coupon,omitempty"`
	Message string      `json:"message,omitempty"`
}

type couponJSON struct {
	ID         string     `json:"id"`
	Amount     int64      `json:"amount"`
	HolderName string     `json:"holder_name"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func couponView(c *model.Coupon) *couponJSON {
	return &couponJSON{
		ID:         c.ID,
		Amount:     c.Amount,
		HolderName: c.HolderName,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UsedAt:     c.UsedAt,
		ExpiresAt:  c.ExpiresAt,
	}
}

func (s *Server) writeRejection(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, r, code, redeemResponse{Success: false, Message: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	metrics.IncHTTPRequest(r.URL.Path, code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
