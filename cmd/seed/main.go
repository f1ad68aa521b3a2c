// Seed issues a small batch of demo coupons and prints their redemption
// links. The printed tokens are the only copy; treat the output accordingly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"qr-coupon-service/internal/config"
	pg "qr-coupon-service/internal/infra/db/postgres"
	"qr-coupon-service/internal/infra/logging"
	"qr-coupon-service/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	count := flag.Int("n", 3, "number of demo coupons to issue")
	amount := flag.Int64("amount", 5000, "amount per coupon, minor units")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	couponRepo := pg.NewCouponRepo(pool)
	issueUC := usecase.NewIssuanceUseCase(couponRepo, pg.NewTxManager(pool), cfg.Server.BaseURL, cfg.Coupon.DefaultExpiry(), logger)

	reqs := make([]usecase.IssueRequest, 0, *count)
	for i := 0; i < *count; i++ {
		reqs = append(reqs, usecase.IssueRequest{
			Amount:     *amount,
			HolderName: fmt.Sprintf("Demo Holder %d", i+1),
			Meta:       map[string]interface{}{"seed": true},
		})
	}

	// All-or-nothing: the batch goes through one transaction.
	results, err := issueUC.IssueBatch(ctx, reqs)
	if err != nil {
		log.Fatalf("issue batch: %v", err)
	}

	fmt.Printf("issued %d coupons:\n", len(results))
	for _, res := range results {
		fmt.Printf("  %s  amount=%d\n    link: %s\n    qr:   %s\n", res.Coupon.ID, res.Coupon.Amount, res.Link, res.Record)
	}
}
