package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadp "zkloan/internal/adapter/http"
	mw "zkloan/internal/adapter/middleware"
	"zkloan/internal/adapter/repository/mysql"
	"zkloan/internal/domain/pool"
	"zkloan/internal/infrastructure/cache"
	"zkloan/internal/infrastructure/db"
	"zkloan/internal/infrastructure/metrics"
	"zkloan/internal/infrastructure/policy"
	"zkloan/internal/infrastructure/zk"
	loanuc "zkloan/internal/usecase/loan"
	pooluc "zkloan/internal/usecase/pool"
	"zkloan/pkg/amount"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	lockWait        = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the lending API. SIGHUP reloads the policy file; SIGINT or SIGTERM
drains in-flight requests and exits.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	minDeposit, err := amount.FromDecimal(cfg.MinSecurityDeposit, cfg.AssetDecimals)
	if err != nil {
		return err
	}
	rules, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}
	verifier, err := zk.LoadVerifier(cfg.VerifyingKeyFile, logger.Named("zk"))
	if err != nil {
		return err
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	m := metrics.New(cfg.AssetDecimals)
	tx := mysql.NewGormUoW(gdb)
	pub := cache.NewPublisher(rdb, cache.EventsChannel)

	loans := loanuc.NewUsecase(loanuc.Deps{
		UoW:          tx,
		Locker:       cache.NewLocker(rdb, cfg.BorrowerLockTTL, lockWait),
		Verifier:     verifier,
		Models:       rules,
		Constraints:  rules,
		LoanDuration: cfg.LoanDuration,
		Publisher:    pub,
		Metrics:      m,
		Logger:       logger.Named("loan"),
	})
	pools := pooluc.NewUsecase(tx, pooluc.Policy{
		LoanDuration:       cfg.LoanDuration,
		MinSecurityDeposit: minDeposit,
		AssetDecimals:      cfg.AssetDecimals,
	}, pub, m, logger.Named("pool"))

	// gauges start from the stored counters, not zero
	if s, err := pools.Stats(ctx); err == nil {
		m.ObservePool(pool.State{TotalValueLocked: s.TotalValueLocked, Liquidity: s.Liquidity})
	} else {
		logger.Warn("read pool state", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator(cfg.AssetDecimals)
	e.Use(middleware.Logger(), middleware.Recover(), mw.RequestMetrics(m))

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	health := httpadp.NewHandler(map[string]httpadp.Check{
		"mysql": sqlDB.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	httpadp.Register(e, health,
		httpadp.NewLoanHandler(loans, cfg.AssetDecimals, minDeposit, logger.Named("http")),
		httpadp.NewPoolHandler(pools, cfg.AssetDecimals, logger.Named("http")),
		mw.NewIdempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, logger.Named("idempotency")).Middleware(),
	)

	addr := ":" + cfg.AppPort
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr), zap.String("policy", rules.Current().Version))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reloadOnHangup(gctx, rules)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// reloadOnHangup swaps in a fresh policy on SIGHUP. A bad file is logged and
// the running policy stays.
func reloadOnHangup(ctx context.Context, rules *policy.Registry) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := rules.Reload(); err != nil {
				logger.Warn("policy reload failed, keeping current", zap.Error(err))
				continue
			}
			logger.Info("policy reloaded", zap.String("version", rules.Current().Version))
		}
	}
}
