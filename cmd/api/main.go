package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/memstore"
	"storefront/internal/infra/mongostore"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/ratelimit"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/shutdown"
	"storefront/internal/textgen"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	// .env はローカル用。無くても環境変数で動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	//ストア生成
	tx, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	//レート制限
	limiter, closeLimiter, err := openLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	providers := payment.NewRegistryFromConfig(cfg, log)
	gen := textgen.NewClient(cfg.TextGenURL, cfg.TextGenAPIKey, 30*time.Second)

	//Usecase生成
	productUC := usecase.NewProductUsecase(tx, log)
	orderUC := usecase.NewOrderUsecase(tx, cfg.DeliveryFee, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(tx, cfg.StrictFulfillment, log)
	paymentUC := usecase.NewPaymentUsecase(tx, providers, cfg.DefaultMerchantCode, log)
	webhookUC := usecase.NewWebhookUsecase(tx, providers, log)
	assistantUC := usecase.NewAssistantUsecase(gen, log)

	//Handler生成
	h := server.Handlers{
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		Webhook:      handler.NewWebhookHandler(webhookUC),
		Assistant:    handler.NewAssistantHandler(assistantUC),
	}

	if cfg.APIToken == "" {
		log.Warn("API_TOKEN is empty; public payment endpoints are open")
	}

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	opts := server.Options{Addr: addr, CORSOrigins: cfg.CORSOrigins, Logger: log}

	e := server.New(opts)
	server.RegisterRoutes(e, h, server.Gates{
		Limiter:           limiter,
		Window:            cfg.RateLimitWindow,
		PaymentsPerWindow: cfg.RateLimitPayments,
		AIPerWindow:       cfg.RateLimitAI,
		APIToken:          cfg.APIToken,
		JWTSecret:         cfg.JWTSecret,
	}, opts)

	return server.Start(ctx, opts, e)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repo.TransactionManager, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil

	case config.StoreDriverMongo:
		client, err := db.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.New(client, cfg.MongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := infraRepo.AutoMigrate(gormDB); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func() {
			if sqlDB, err := gormDB.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return infraRepo.NewTxManagerGorm(gormDB), closeFn, nil
	}
}

func openLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("rate limiter: in-process")
		return ratelimit.NewMemory(), func() {}, nil
	}

	rdb, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("rate limiter: redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedis(rdb, "storefront:rl"), func() { _ = rdb.Close() }, nil
}
