package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	httpadp "tuition-escrow/internal/adapter/http"
	"tuition-escrow/internal/adapter/ledger/xrpl"
	"tuition-escrow/internal/adapter/metadata/pinata"
	"tuition-escrow/internal/adapter/middleware"
	"tuition-escrow/internal/adapter/repository/mysql"
	"tuition-escrow/internal/config"
	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/infrastructure/cache"
	"tuition-escrow/internal/infrastructure/db"
	"tuition-escrow/internal/infrastructure/lock"
	"tuition-escrow/internal/infrastructure/metrics"
	"tuition-escrow/internal/usecase/lifecycle"
	"tuition-escrow/internal/usecase/marketplace"
	"tuition-escrow/internal/usecase/reconcile"
	"tuition-escrow/internal/usecase/repayment"
	"tuition-escrow/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), db.LogLevel(cfg.GormLogLevel))
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	gw, err := xrpl.NewGateway(xrpl.Config{
		RPCURL:          cfg.XRPLRPCURL,
		WSURL:           cfg.XRPLWSURL,
		ReleaserAccount: cfg.ReleaserAccount,
		ReleaserSecret:  cfg.ReleaserSecret,
		LedgerWindow:    cfg.LedgerWindow,
		PollInterval:    cfg.LedgerPollPeriod,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	pub, err := pinata.NewPublisher(pinata.Config{
		BaseURL:   cfg.PinataBaseURL,
		APIKey:    cfg.PinataAPIKey,
		APISecret: cfg.PinataAPISecret,
	})
	if err != nil {
		return err
	}

	repos := mysql.Repos(gdb)
	tx := mysql.NewGormUoW(gdb)

	orch := lifecycle.NewOrchestrator(repos, tx, gw, pub,
		lifecycle.Settings{MaturityZone: cfg.MaturityZone(), MinLockLead: cfg.MinLockLead},
		lifecycle.WithLogger(log.With("component", "lifecycle")),
		lifecycle.OnTransition(func(_ string, from, to agreement.Status) {
			metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
		}),
	)
	mkt := marketplace.NewUsecase(repos, tx, log.With("component", "marketplace"))

	listener := repayment.NewListener(repos.Agreements, repos.Repayments, gw, orch, repayment.Config{
		RefreshInterval: cfg.ListenerRefresh,
		BackoffMin:      cfg.ListenerBackoffMin,
		BackoffMax:      cfg.ListenerBackoffMax,
	}, log)
	orch.AddTransitionHook(func(_ string, _, to agreement.Status) {
		if to == agreement.StatusRepaying {
			listener.Refresh()
		}
	})

	if !cfg.ReleaseEnabled() {
		log.Warn("RELEASER_ACCOUNT not set; matured locks must be finished out of band")
	}
	rec := reconcile.New(repos.Agreements, gw, orch, lock.NewRedisLocker(rdb, "lock:"), reconcile.Config{
		Interval:         cfg.ReconcileInterval,
		AgreementTimeout: cfg.ReconcileAgreementTimeout,
		LockTTL:          cfg.ReconcileLockTTL,
	}, log)
	rec.OnRepaying = func(string) { listener.Refresh() }

	e := newServer(cfg, log, rdb, httpadp.Handlers{
		Health: httpadp.NewHandler(
			httpadp.Check{Name: "db", Probe: sqlDB.PingContext},
			httpadp.Check{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		),
		Requests:   httpadp.NewRequestHandler(mkt),
		Offers:     httpadp.NewOfferHandler(mkt),
		Agreements: httpadp.NewAgreementHandler(orch),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.AppPort
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return listener.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("shutdown complete")
	return err
}

func newServer(cfg *config.Config, log *slog.Logger, rdb redis.Cmdable, h httpadp.Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(
		echomw.Recover(),
		middleware.RequestLogger(log.With("component", "http")),
		middleware.Metrics(),
		middleware.Idempotency(rdb, cfg.IdempTTL, log.With("component", "idempotency")),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpadp.Register(e, h)
	return e
}
