// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/domain/ports/repository"
	pg "bytebill/internal/infra/db/postgres"
	"bytebill/internal/infra/inproc"
	"bytebill/internal/infra/logging"
	"bytebill/internal/usecase"

	"github.com/dustin/go-humanize"
)

// Seeds the catalog and, optionally, a batch of vouchers for manual testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "wipe all sessions, vouchers, payments and plans first")
	vouchers := flag.Int("vouchers", 0, "vouchers to generate for -plan")
	planName := flag.String("plan", "1 Hour Basic", "plan to generate vouchers for")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("seed needs database.driver=postgres, got %q", cfg.Database.Driver)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if *reset {
		log.Println("wiping existing data...")
		if _, err := pool.Exec(ctx, `TRUNCATE session_extensions, sessions, payment_requests, vouchers, plans RESTART IDENTITY CASCADE`); err != nil {
			log.Fatalf("truncate: %v", err)
		}
	}

	plans := pg.NewPlanRepo(pool)
	planUC := usecase.NewPlanUseCase(plans, logger)
	n, err := planUC.Seed(ctx, usecase.DefaultPlans())
	if err != nil {
		log.Fatalf("seed plans: %v", err)
	}
	all, err := planUC.List(ctx, false)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	fmt.Printf("%d plans added, %d in catalog:\n", n, len(all))
	for _, p := range all {
		data := "unlimited"
		if p.DataCapBytes > 0 {
			data = humanize.IBytes(uint64(p.DataCapBytes))
		}
		fmt.Printf("  - %-18s %-8s %-10s %6d %s (id=%s)\n",
			p.Name, p.Duration(), data, p.Price, p.Currency, p.ID)
	}

	if *vouchers <= 0 {
		return
	}
	plan, err := plans.FindByName(ctx, repository.NoTX, *planName)
	if err != nil {
		log.Fatalf("plan %q: %v", *planName, err)
	}
	sessionUC := usecase.NewSessionUseCase(pg.NewSessionRepo(pool), pg.NewTxManager(pool), nil, logger)
	voucherUC := usecase.NewVoucherUseCase(pg.NewVoucherRepo(pool), plans, sessionUC, pg.NewTxManager(pool),
		inproc.NewLocker(), inproc.NewRateLimiter(), usecase.VoucherPolicy{
			MaxBatch:      cfg.Voucher.MaxBatch,
			MaxExpiryDays: cfg.Voucher.MaxExpiryDays,
		}, usecase.LockPolicy{TTL: cfg.Lock.TTL, Wait: cfg.Lock.Wait}, logger)
	vs, err := voucherUC.Generate(ctx, usecase.GenerateVouchersInput{
		PlanID: plan.ID, Count: *vouchers, ExpiresInDays: 30, CreatedBy: "seed", Notes: "manual testing",
	}, time.Now())
	if err != nil {
		log.Fatalf("generate vouchers: %v", err)
	}
	fmt.Printf("%d vouchers for %s (batch %s):\n", len(vs), plan.Name, vs[0].BatchID)
	for _, v := range vs {
		fmt.Println("  " + v.DisplayCode())
	}
}
