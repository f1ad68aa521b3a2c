// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qr-coupon-service/internal/config"
	"qr-coupon-service/internal/infra/api"
	pg "qr-coupon-service/internal/infra/db/postgres"
	"qr-coupon-service/internal/infra/logging"
	"qr-coupon-service/internal/infra/metrics"
	red "qr-coupon-service/internal/infra/redis"
	"qr-coupon-service/internal/infra/sched"
	"qr-coupon-service/internal/infra/web"
	"qr-coupon-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	issuedCounter := red.NewIssuanceCounter(redisClient)

	// ---- Repositories ----
	couponRepo := pg.NewCouponRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	issueUC := usecase.NewIssuanceUseCase(couponRepo, txManager, cfg.Server.BaseURL, cfg.Coupon.DefaultExpiry(), logger)
	redeemUC := usecase.NewRedemptionUseCase(couponRepo, logger)
	queryUC := usecase.NewCouponQueryUseCase(couponRepo, logger)

	// ---- Public API (redemption) ----
	apiSrv := api.NewServer(redeemUC, rateLimiter, cfg.Redis.RedeemLimit, cfg.Redis.RedeemWindow(), logger)
	publicSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiSrv.Routes(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("public API listening")
		if err := publicSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public API server stopped")
			cancel()
		}
	}()

	// ---- Operator API + metrics ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL())
	webSrv := web.NewServer(issueUC, queryUC, issuedCounter, auth, cfg.Admin.APIKey, logger)
	adminMux := http.NewServeMux()
	webSrv.RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: adminMux,
	}
	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("operator API listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("operator API server stopped")
			cancel()
		}
	}()

	// ---- Background observers ----
	sweeper := sched.NewExpirySweeper(cfg.Sweeper.Interval(), queryUC, logger)
	go func() { _ = sweeper.Run(ctx) }()
	go pollPoolStats(ctx, pool)

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = publicSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
}

func pollPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
