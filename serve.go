package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"davietech/broadcaster"
	"davietech/cache"
	"davietech/config"
	"davietech/controller"
	"davietech/database"
	"davietech/grpc_server"
	"davietech/kafka"
	"davietech/middleware"
	"davietech/mpesa"
	"davietech/offer"
	"davietech/order"
	"davietech/payment"
	"davietech/routes"
	"davietech/search"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC payment service and the Kafka consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	v := config.New()
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// ======================
	// STORAGE
	// ======================
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	hub := broadcaster.New(cfg.Events.HeartbeatInterval, logger)
	store := payment.NewGormStore(db)
	deps := payment.Deps{Store: store, Hub: hub, Logger: logger}

	var orderCache order.Cache
	if rdb, err := cache.Connect(ctx, cfg.Redis); err != nil {
		logger.Warn("redis unavailable, order cache and receipt de-duplication disabled", "addr", cfg.Redis.Addr, "error", err)
	} else {
		defer rdb.Close()
		rc := cache.New(rdb)
		orderCache = rc
		deps.Receipts = rc
		deps.Cache = rc
	}

	es, err := search.Connect(cfg.Elasticsearch, logger)
	if err != nil {
		return err
	}

	// ======================
	// KAFKA
	// ======================
	if cfg.Kafka.Enabled {
		producer, stopKafka := startKafka(ctx, cfg.Kafka, hub, logger)
		defer stopKafka()
		if producer != nil {
			deps.Events = producer
		}
	}

	// ======================
	// SERVICES
	// ======================
	gateway := mpesa.NewClient(v, nil)
	var limiter *payment.PhoneLimiter
	if cfg.Server.STKInterval > 0 {
		limiter = payment.NewPhoneLimiter(cfg.Server.STKInterval)
	}
	payments := payment.NewService(store, gateway, hub, limiter, logger)
	reconciler := payment.NewReconciler(deps)
	orders := order.NewService(db, orderCache, hub, logger)
	offers := offer.NewService(db, es, hub, logger)

	// ======================
	// HTTP SERVER (Fiber)
	// ======================
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	routes.RegisterRoutes(app, routes.Controllers{
		Payments: controller.NewPaymentController(payments, reconciler, gateway, logger),
		Orders:   controller.NewOrderController(orders),
		Offers:   controller.NewOfferController(offers),
		Events:   controller.NewEventController(hub),
		Search:   controller.NewSearchController(es, logger),
	}, middleware.AuthRequired(cfg.Auth.JWTSecret))

	// ======================
	// gRPC SERVER
	// ======================
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Server.GRPCPort, err)
	}
	grpcServer := grpc_server.NewServer(payments, store)

	errc := make(chan error, 2)
	go func() {
		logger.Info("HTTP server running", "port", cfg.Server.HTTPPort)
		errc <- app.Listen(":" + cfg.Server.HTTPPort)
	}()
	go func() {
		logger.Info("gRPC server running", "port", cfg.Server.GRPCPort)
		errc <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("server stopped", "error", err)
	}

	// Open event streams hold their handlers; release them first.
	hub.CloseAll()
	if serr := app.ShutdownWithTimeout(10 * time.Second); serr != nil {
		logger.Warn("http shutdown", "error", serr)
	}
	grpcServer.GracefulStop()

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// startKafka connects the payment event producer and the order.updated
// consumer. A broker that stays unreachable disables the part that needs it;
// the returned stop func closes whatever did connect.
func startKafka(ctx context.Context, cfg config.KafkaConfig, hub kafka.Broadcaster, logger *slog.Logger) (*kafka.Producer, func()) {
	var closers []func() error

	producer, err := kafka.NewProducer(cfg.Brokers, cfg.ConnectAttempts, logger)
	if err != nil {
		logger.Warn("kafka unavailable, payment events disabled", "brokers", cfg.Brokers, "error", err)
	} else {
		closers = append(closers, producer.Close)
	}

	consumer, err := kafka.NewConsumer(cfg.Brokers, cfg.ConnectAttempts, logger)
	if err != nil {
		logger.Warn("kafka unavailable, order.updated consumer disabled", "brokers", cfg.Brokers, "error", err)
	} else {
		closers = append(closers, consumer.Close)
		if err := consumer.Consume(ctx, kafka.TopicOrderUpdated, kafka.OrderUpdatedHandler(hub, logger)); err != nil {
			logger.Warn("order.updated consumer not started", "topic", kafka.TopicOrderUpdated, "error", err)
		}
	}

	return producer, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("kafka close", "error", err)
			}
		}
	}
}
