// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
	payAdapters "bytebill/internal/infra/adapters/payment"
	tele "bytebill/internal/infra/adapters/telegram"
	"bytebill/internal/infra/api"
	"bytebill/internal/infra/db/memory"
	pg "bytebill/internal/infra/db/postgres"
	"bytebill/internal/infra/db/sqlite"
	"bytebill/internal/infra/events"
	"bytebill/internal/infra/inproc"
	"bytebill/internal/infra/logging"
	"bytebill/internal/infra/metrics"
	red "bytebill/internal/infra/redis"
	"bytebill/internal/infra/sched"
	"bytebill/internal/infra/scheduler"
	"bytebill/internal/infra/sysinfo"
	"bytebill/internal/infra/worker"
	"bytebill/internal/usecase"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
)

type storage struct {
	plans    repository.PlanRepository
	vouchers repository.VoucherRepository
	sessions repository.SessionRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	ready    func(ctx context.Context) error
	close    func()
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (memory store, simulated payments)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bytebill stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Redis ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		redisClient = c
	}

	// ---- Storage ----
	st, err := openStorage(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ---- Locks & rate limits ----
	g, gctx := errgroup.WithContext(ctx)
	var (
		locker  adapter.Locker
		limiter adapter.RateLimiter
	)
	if redisClient != nil {
		locker, limiter = red.NewLocker(redisClient), red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; locks and rate limits are in-process (single instance only)")
		rl := inproc.NewRateLimiter()
		locker, limiter = inproc.NewLocker(), rl
		pruner := scheduler.NewScheduler("rate_limit_prune", cfg.Voucher.RedeemWindow, func(ctx context.Context) (int, error) {
			return rl.Prune(), nil
		}, logger)
		pruner.Start(gctx)
		defer pruner.Stop()
	}

	// ---- Settings ----
	settingsStore, err := sqlite.Open(cfg.Settings.Path)
	if err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	defer settingsStore.Close()
	settingsUC := usecase.NewSettingsUseCase(settingsStore, logger)
	if _, err := settingsUC.Load(ctx, cfg.Settings.Defaults, time.Now()); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// ---- Workers ----
	pool := worker.NewPool(cfg.Workers, logger)
	pool.Start(gctx)
	defer pool.Stop()

	// ---- Operator notifications ----
	var (
		notifier adapter.OperatorNotifier = tele.NewNoopNotifier(logger)
		bot      *tgbotapi.BotAPI
	)
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bn, err := tele.NewBotNotifier(bot, cfg.Telegram.AdminChatIDs, logger)
		if err != nil {
			return fmt.Errorf("telegram notifier: %w", err)
		}
		notifier = tele.NewAsyncNotifier(bn, pool, 10*time.Second)
		logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
	}

	// ---- Payment provider ----
	var (
		gateway   adapter.PaymentGateway
		simulator api.CallbackSimulator
	)
	switch cfg.Payment.Provider {
	case "mpesa":
		gateway, err = payAdapters.NewMPesaGateway(cfg.Payment.MPesa, cfg.Payment.ProviderTimeout, logger)
		if err != nil {
			return fmt.Errorf("mpesa gateway: %w", err)
		}
	default:
		noop := payAdapters.NewNoopPaymentGateway()
		gateway, simulator = noop, noop
		logger.Warn().Msg("payment.provider=noop; callbacks must be simulated")
	}

	// ---- Events ----
	hub := events.NewHub(logger)
	host := sysinfo.NewHost()

	// ---- Use cases ----
	locks := usecase.LockPolicy{TTL: cfg.Lock.TTL, Wait: cfg.Lock.Wait}
	planUC := usecase.NewPlanUseCase(st.plans, logger)
	sessionUC := usecase.NewSessionUseCase(st.sessions, st.tm, hub, logger)
	voucherUC := usecase.NewVoucherUseCase(st.vouchers, st.plans, sessionUC, st.tm, locker, limiter, usecase.VoucherPolicy{
		MaxBatch:       cfg.Voucher.MaxBatch,
		MaxExpiryDays:  cfg.Voucher.MaxExpiryDays,
		PageSize:       cfg.Voucher.PageSize,
		RedeemAttempts: cfg.Voucher.RedeemAttempts,
		RedeemWindow:   cfg.Voucher.RedeemWindow,
	}, locks, logger)
	paymentUC := usecase.NewPaymentUseCase(st.payments, st.plans, sessionUC, st.tm, gateway, locker, notifier, usecase.PaymentPolicy{
		PendingTimeout:  cfg.Payment.PendingTimeout,
		ProviderTimeout: cfg.Payment.ProviderTimeout,
		Currency:        cfg.Payment.Currency,
		Reference:       settingsUC.Current().CompanyName,
	}, locks, logger)
	quotaUC := usecase.NewQuotaUseCase(st.sessions, sessionUC, cfg.Quota.PageSize, logger)
	admissionUC := usecase.NewAdmissionUseCase(sessionUC, settingsUC, logger)
	statsUC := usecase.NewStatsUseCase(sessionUC, st.sessions, st.vouchers, st.payments, host, usecase.StatsPolicy{
		Currency:        cfg.Payment.Currency,
		LowVoucherStock: cfg.Dashboard.LowVoucherStock,
		BusySessions:    cfg.Dashboard.BusySessions,
	}, logger)

	if cfg.Runtime.Dev {
		if n, err := planUC.Seed(ctx, usecase.DefaultPlans()); err != nil {
			logger.Warn().Err(err).Msg("seeding default plans failed")
		} else if n > 0 {
			logger.Info().Int("plans", n).Msg("seeded default plans")
		}
	}

	// ---- HTTP ----
	srv := api.NewServer(api.Services{
		Plans:     planUC,
		Vouchers:  voucherUC,
		Payments:  paymentUC,
		Sessions:  sessionUC,
		Quota:     quotaUC,
		Admission: admissionUC,
		Stats:     statsUC,
		Settings:  settingsUC,
	}, api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), api.Options{
		ControllerToken: cfg.Auth.ControllerToken,
		CallbackToken:   cfg.Payment.MPesa.CallbackToken,
		RequestTimeout:  cfg.Server.RequestTimeout,
		Events:          hub,
		Simulator:       simulator,
		Ready:           st.ready,
	}, logger)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutCtx)
	})

	// ---- Background jobs ----
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		return sched.NewQuotaEnforcer(cfg.Quota.SweepInterval, quotaUC, notifier, logger).Run(gctx)
	})
	g.Go(func() error {
		return sched.NewPaymentReclaimer(paymentUC, cfg.Payment.ReclaimInterval, logger).Run(gctx)
	})
	g.Go(func() error {
		return sched.NewDigestWorker(cfg.Telegram.DigestInterval, statsUC, notifier, logger).Run(gctx)
	})

	if bot != nil {
		commands := tele.NewCommandBot(bot, cfg.Telegram.AdminChatIDs, map[string]tele.Report{
			"stats": func(ctx context.Context) (string, error) {
				d, err := statsUC.Dashboard(ctx, time.Now().UTC())
				if err != nil {
					return "", err
				}
				return sched.FormatDigest(d), nil
			},
			"sweep": func(ctx context.Context) (string, error) {
				res, err := quotaUC.Sweep(ctx, time.Now().UTC())
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Checked %d sessions, expired %d, failed %d.", res.Checked, res.Expired, res.Failed), nil
			},
		}, cfg.Workers, logger)
		g.Go(func() error { return commands.StartPolling(gctx) })
	}

	watcher, err := config.NewWatcher(cfg.Runtime.ConfigPath, func(s model.Settings) {
		if _, err := settingsUC.Update(context.Background(), s, time.Now()); err != nil {
			logger.Error().Err(err).Msg("applying reloaded settings failed")
		}
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable; settings reload disabled")
	} else {
		g.Go(watcher.Run)
		g.Go(func() error {
			<-gctx.Done()
			watcher.Stop()
			return nil
		})
	}

	logger.Info().
		Str("version", version).
		Str("database", cfg.Database.Driver).
		Str("payments", gateway.Name()).
		Msg("bytebill started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, redisClient *red.Client, logger *zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("database.driver=memory; all state is lost on restart")
		store := memory.NewStore()
		return &storage{
			plans:    memory.NewPlanRepo(store),
			vouchers: memory.NewVoucherRepo(store),
			sessions: memory.NewSessionRepo(store),
			payments: memory.NewPaymentRepo(store),
			tm:       memory.NewTxManager(store),
			close:    func() {},
		}, nil
	}

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	statsCtx, cancelStats := context.WithCancel(ctx)
	go pg.ReportPoolStats(statsCtx, pool, 15*time.Second)

	var plans repository.PlanRepository = pg.NewPlanRepo(pool)
	if redisClient != nil {
		plans = pg.NewPlanRepoCacheDecorator(plans, redisClient, cfg.Redis.TTL, logger)
	}
	return &storage{
		plans:    plans,
		vouchers: pg.NewVoucherRepo(pool),
		sessions: pg.NewSessionRepo(pool),
		payments: pg.NewPaymentRepo(pool),
		tm:       pg.NewTxManager(pool),
		ready:    func(ctx context.Context) error { return pool.Ping(ctx) },
		close: func() {
			cancelStats()
			pool.Close()
		},
	}, nil
}
