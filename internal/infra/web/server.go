// Package web is the trusted operator surface: coupon issuance, lookup, and
// stats. It never serves redeemers.
package web

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	red "qr-coupon-service/internal/infra/redis"
	"qr-coupon-service/internal/usecase"
)

type Server struct {
	issueUC usecase.IssuanceUseCase
	queryUC usecase.CouponQueryUseCase
	issued  *red.IssuanceCounter
	auth    *AuthManager
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(
	issueUC usecase.IssuanceUseCase,
	queryUC usecase.CouponQueryUseCase,
	issued *red.IssuanceCounter,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		issueUC: issueUC,
		queryUC: queryUC,
		issued:  issued,
		auth:    auth,
		apiKey:  apiKey,
		log:     &l,
	}
}

// RegisterRoutes sets up the routing for the operator API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/session", s.sessionHandler)

	couponsRouter := s.authMiddleware(s.couponsRouter())
	mux.Handle("/api/v1/coupons", couponsRouter)  // POST (issue) and GET (list)
	mux.Handle("/api/v1/coupons/", couponsRouter) // GET one

	mux.Handle("/api/v1/stats", s.authMiddleware(s.statsHandler()))
}

// sessionHandler trades the configured API key for a short-lived session JWT,
// so browser-based operator tools don't have to hold the long-lived key.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.bearerMatchesAPIKey(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to mint operator session")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// authMiddleware admits either the static API key or a minted session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("operator API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if s.bearerMatchesAPIKey(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) bearerMatchesAPIKey(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	return len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey
}

func (s *Server) couponsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/coupons")
		path = strings.Trim(path, "/")

		if path == "" { // /api/v1/coupons
			switch r.Method {
			case http.MethodPost:
				s.couponCreateHandler()(w, r)
			case http.MethodGet:
				s.couponListHandler()(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// /api/v1/coupons/{id}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.couponGetHandler(path)(w, r)
	})
}
