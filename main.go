package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	appAudit "github.com/Zhima-Mochi/escrowshop/internal/application/audit"
	"github.com/Zhima-Mochi/escrowshop/internal/application/fulfilment"
	appInventory "github.com/Zhima-Mochi/escrowshop/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/escrowshop/internal/application/order"
	"github.com/Zhima-Mochi/escrowshop/internal/config"
	domaudit "github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
	domescrow "github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/escrow"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/gormstore"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/memory"
	obsprovider "github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/redisledger"
	"github.com/Zhima-Mochi/escrowshop/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/escrowshop/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "escrowshop:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service:    cfg.Service,
		Env:        cfg.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)
	logger := zaplogger.New(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, cfg.Service, cfg.Env, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			systemLogger.Warn("tracer_shutdown_error", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := obsprovider.New(oteltrace.New(cfg.Service), logger, prometrics.Instruments(prometrics.New(reg, "", "")))

	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	if err := seedPrincipals(ctx, st.principals, cfg.Principals); err != nil {
		return err
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	bus := outbox.NewBus(logger, outbox.Options{
		QueueSize:   cfg.Outbox.QueueSize,
		Concurrency: cfg.Outbox.Concurrency,
	})
	ids := id.NewUUIDGenerator()

	appAudit.NewWorker(bus, st.audit, ids, tel).Start()
	bus.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		bus.Stop(sctx)
	}()

	engine := appOrder.NewEngine(appOrder.Deps{
		Orders:     st.orders,
		Ledger:     st.ledger,
		Principals: st.principals,
		Gateway:    gateway,
		Publisher:  bus,
		IDs:        ids,
		Tel:        tel,
	}, appOrder.Config{
		Currency:        cfg.Escrow.Currency,
		DefaultVerifier: cfg.Escrow.VerifierAddress,
		VerifierKey:     cfg.Escrow.VerifierPrivateKey,
		EscrowTimeout:   cfg.Escrow.Timeout,
	})
	fulfilmentSvc := fulfilment.NewService(fulfilment.Deps{
		Orders:     st.orders,
		Principals: st.principals,
		Gateway:    gateway,
		Publisher:  bus,
		Tel:        tel,
	}, cfg.Escrow.Timeout)
	catalogue := appInventory.NewCatalogue(st.ledger, ids, tel)
	history := appAudit.NewHistory(st.orders, st.audit, application.NewInstrument("audit-service", tel))

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = "dev-secret"
		systemLogger.Warn("jwt_secret_defaulted", zap.String("env", cfg.Env))
	}
	verifier, err := auth.NewVerifier(secret, st.principals)
	if err != nil {
		return err
	}

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Orders:     engine,
		Fulfilment: fulfilmentSvc,
		Catalogue:  catalogue,
		History:    history,
		Auth:       verifier,
		Limiter:    auth.NewLimiter(cfg.HTTP.RateLimitRPM),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:     logger,
		Tel:        tel,
	})

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Router(),
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store_driver", cfg.Store.Driver),
			zap.Bool("redis_ledger", cfg.Store.RedisAddr != ""),
			zap.Bool("escrow_simulated", cfg.Escrow.RPCURL == ""),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	return nil
}

type stores struct {
	orders     domorder.Repository
	ledger     dominv.Ledger
	principals principal.Directory
	audit      domaudit.Repository
}

func openStores(ctx context.Context, cfg config.Config) (stores, func(), error) {
	var (
		s       stores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Store.Driver == config.DriverMemory {
		s = stores{
			orders:     memory.NewOrderRepository(),
			ledger:     memory.NewInventoryLedger(),
			principals: memory.NewPrincipalDirectory(),
			audit:      memory.NewAuditRepository(),
		}
	} else {
		db, err := gormstore.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return stores{}, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		s = stores{
			orders:     gormstore.NewOrders(db),
			ledger:     gormstore.NewLedger(db),
			principals: gormstore.NewPrincipals(db),
			audit:      gormstore.NewAuditLog(db),
		}
	}

	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			closeAll()
			return stores{}, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		s.ledger = redisledger.New(client, cfg.Store.RedisPrefix)
	}
	return s, closeAll, nil
}

func seedPrincipals(ctx context.Context, dir principal.Directory, seeds []config.PrincipalConfig) error {
	for _, pc := range seeds {
		role, err := principal.ParseRole(pc.Role)
		if err != nil {
			return fmt.Errorf("principal %s: %w", pc.ID, err)
		}
		if err := dir.Upsert(ctx, &principal.Principal{
			ID:            pc.ID,
			Role:          role,
			Name:          pc.Name,
			WalletAddress: pc.Wallet,
		}); err != nil {
			return fmt.Errorf("seed principal %s: %w", pc.ID, err)
		}
	}
	return nil
}

func newGateway(cfg config.Config) (domescrow.Gateway, error) {
	if cfg.Escrow.RPCURL == "" {
		return escrow.NewSimulator(cfg.Escrow.SimulatedLatency), nil
	}
	return escrow.NewRPCClient(cfg.Escrow.RPCURL, cfg.Escrow.RPCToken, cfg.Escrow.Timeout)
}
