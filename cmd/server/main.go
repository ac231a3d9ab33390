// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal/faucet packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"faucetd/internal/faucet/eligibility"
	"faucetd/internal/faucet/executor"
	faucethandler "faucetd/internal/faucet/handler"
	"faucetd/internal/faucet/ledger"
	faucetmetrics "faucetd/internal/faucet/metrics"
	"faucetd/internal/faucet/ports"
	"faucetd/internal/faucet/service"
	"faucetd/internal/faucet/signer"
	grantstore "faucetd/internal/faucet/store/grant"
	httpapi "faucetd/internal/http"
	"faucetd/internal/platform/config"
	"faucetd/internal/platform/httpserver"
	"faucetd/internal/platform/logger"
	"faucetd/internal/platform/postgres"
	platformredis "faucetd/internal/platform/redis"
	auditkafka "faucetd/pkg/platform/audit/kafka"
	"faucetd/pkg/platform/circuit"
	"faucetd/pkg/platform/middleware/throttle"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ledger.New(cfg.LedgerURL)
	if err != nil {
		log.Error("ledger client init failed", "error", err)
		os.Exit(1)
	}
	gateway := ledger.WithBreaker(client, circuit.New("ledger",
		circuit.WithFailureThreshold(5),
		circuit.WithSuccessThreshold(2),
	), log)

	authority, err := signer.FromSeed(cfg.SigningSeed)
	if err != nil {
		log.Error("signer init failed", "error", err)
		os.Exit(1)
	}
	log.Info("disbursement authority loaded", "address", authority.Address().String())

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("claim store init failed", "store", string(cfg.Store), "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var auditor ports.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic, auditkafka.WithLogger(log))
		if err != nil {
			log.Error("audit publisher init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Close(flushCtx); err != nil {
				log.Warn("audit flush on shutdown failed", "error", err)
			}
		}()
		auditor = publisher
	}

	checker, err := eligibility.New(gateway, cfg.AssetCode, cfg.AssetIssuer, eligibility.WithLogger(log))
	if err != nil {
		log.Error("eligibility checker init failed", "error", err)
		os.Exit(1)
	}

	exec, err := executor.New(gateway, authority,
		executor.WithLogger(log),
		executor.WithWaitBound(cfg.SubmitWaitBound),
	)
	if err != nil {
		log.Error("executor init failed", "error", err)
		os.Exit(1)
	}

	metrics := faucetmetrics.New()

	controller, err := service.New(service.Config{
		AssetCode:       cfg.AssetCode,
		AssetIssuer:     cfg.AssetIssuer,
		Amount:          cfg.Amount,
		Window:          cfg.Window,
		ValidityLedgers: cfg.ValidityLedgers,
	}, store, checker, exec,
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("controller init failed", "error", err)
		os.Exit(1)
	}

	var handlerOpts []faucethandler.Option
	if cfg.ThrottleLimit > 0 {
		limiter := throttle.NewLimiter(cfg.ThrottleLimit, cfg.ThrottleWindow)
		handlerOpts = append(handlerOpts, faucethandler.WithClaimThrottle(throttle.PerClientIP(limiter, log)))
	}

	h := faucethandler.New(controller, log, cfg.AdminToken, handlerOpts...)
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(h, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("faucetd listening", "addr", cfg.Addr, "asset", cfg.AssetCode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStore constructs the configured claim ledger backend.
func buildStore(ctx context.Context, cfg config.Config) (ports.GrantStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := grantstore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := grantstore.NewRedis(client, cfg.Window)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		return grantstore.NewInMemory(), func() {}, nil
	}
}
