package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	rcache "github.com/open-builders/premium-backend/internal/cache/redis"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/config"
	apphttp "github.com/open-builders/premium-backend/internal/http"
	"github.com/open-builders/premium-backend/internal/platform/db"
	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
	"github.com/open-builders/premium-backend/internal/repository/sqldb"
	auditsvc "github.com/open-builders/premium-backend/internal/service/audit"
	"github.com/open-builders/premium-backend/internal/service/bot"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
	"github.com/open-builders/premium-backend/internal/service/notifications"
	queuesvc "github.com/open-builders/premium-backend/internal/service/queue"
	"github.com/open-builders/premium-backend/internal/service/signals"
	"github.com/open-builders/premium-backend/internal/service/telegram"
	usersvc "github.com/open-builders/premium-backend/internal/service/user"
	verifsvc "github.com/open-builders/premium-backend/internal/service/verification"
	"github.com/open-builders/premium-backend/internal/workers"
)

const (
	identCacheTTL   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg          *config.Config
	db           *db.Client
	redis        *rplatform.Client
	tg           *telegram.Client
	users        *usersvc.Service
	entitlements *entitlement.Manager
	claims       *verifsvc.Service
	queue        *queuesvc.Service
	audit        *auditsvc.Service
	notifier     *notifications.Service
	payments     *sqldb.PaymentRepository
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.ServiceName, cfg.Debug)
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*db.Client, error) {
	client, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established")
	return client, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a := &app{cfg: cfg, db: client}

	if cfg.Redis.Addr != "" {
		a.redis, err = rplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis open: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	} else {
		log.Warn().Msg("REDIS_ADDR is empty: caches, reminders and the payment matcher are disabled")
	}

	a.tg = telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken)
	if a.tg.Enabled() {
		a.notifier = notifications.NewService(a.tg)
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN is empty: notifications and the bot are disabled")
	}

	timeout := cfg.Database.StoreTimeout
	userRepo := sqldb.NewUserRepository(client.DB)
	a.audit = auditsvc.NewService(sqldb.NewAdminActionRepository(client.DB), timeout)
	a.payments = sqldb.NewPaymentRepository(client.DB)

	var identCache usersvc.IdentCache
	if a.redis != nil {
		identCache = rcache.NewIdentCache(a.redis, identCacheTTL)
	}
	a.users = usersvc.NewService(userRepo, identCache, timeout)

	a.entitlements = entitlement.NewManager(userRepo, a.audit, a.notifier, entitlement.Options{
		StoreTimeout: timeout,
		MaxGrantDays: cfg.Premium.MaxGrantDays,
		ReminderDays: cfg.Premium.ReminderDays,
	})
	if a.redis != nil {
		a.entitlements.WithLedger(rcache.NewNoticeLedger(a.redis))
	}
	a.claims = verifsvc.NewService(sqldb.NewClaimRepository(client.DB), a.audit, a.notifier, timeout)
	a.queue = queuesvc.NewService(sqldb.NewQueueRepository(client.DB), a.audit, timeout)

	log.Info().Msg("Services initialized")
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

func (a *app) newBot() *bot.Bot {
	if !a.tg.Enabled() {
		return nil
	}
	return bot.New(a.tg, a.users, a.entitlements, a.claims, a.queue, bot.Options{
		IsAdmin:          a.cfg.IsAdmin,
		DefaultGrantDays: a.cfg.Premium.DefaultGrantDays,
		PriceText:        a.cfg.Premium.PriceText,
		UPIID:            a.cfg.Payments.UPIID,
		USDTAddress:      a.cfg.Payments.USDTTRC20Address,
		EVMAddress:       a.cfg.Payments.EVMAddress,
	}).WithSignals(signals.NewSample())
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("version", Version).Bool("debug", cfg.Debug).Msg("Starting premium backend")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.newBot()
	deps := apphttp.Deps{
		Config:       cfg,
		DB:           a.db,
		Redis:        a.redis,
		Users:        a.users,
		Entitlements: a.entitlements,
		Claims:       a.claims,
		Queue:        a.queue,
		Audit:        a.audit,
		Notifier:     a.notifier,
	}
	if b != nil && cfg.Telegram.BotMode == config.BotModeWebhook {
		deps.Bot = b
	}

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      apphttp.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var sched *workers.Scheduler
	if cfg.Premium.SweepSchedule != "" {
		if sched, err = workers.NewScheduler(cfg.Premium.SweepSchedule, a.entitlements); err != nil {
			return err
		}
	}
	if cfg.Payments.MatcherEnabled && a.redis == nil {
		return errors.New("PAYMENT_MATCHER_ENABLED requires REDIS_ADDR")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if sched != nil {
		g.Go(func() error { return sched.Start(gctx) })
	}

	if cfg.Payments.MatcherEnabled {
		w := workers.NewPaymentStreamWorker(a.redis, a.payments, a.queue, a.entitlements, workers.PaymentStreamConfig{
			Stream:       cfg.Payments.Stream,
			Group:        cfg.Payments.ConsumerGroup,
			GrantDays:    cfg.Premium.DefaultGrantDays,
			MinAmount:    cfg.Payments.MinAmount,
			StoreTimeout: cfg.Database.StoreTimeout,
		})
		g.Go(func() error { return w.Start(gctx) })
	}

	if b != nil && cfg.Telegram.BotMode == config.BotModePolling {
		p := workers.NewBotPoller(a.tg, b, cfg.Telegram.PollTimeout)
		g.Go(func() error { return p.Start(gctx) })
	}

	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

func runMigrate(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openDB(parent, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Migrate(parent); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("Migrations applied")
	return nil
}

// runSweep performs one maintenance cycle, for deployments that drive it
// from an external cron instead of the in-process scheduler.
func runSweep(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.entitlements.RunCycle(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("expired", res.Expired).Int("notices", res.Notices).Msg("Maintenance cycle finished")
	return nil
}
