package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companydir/docs"
	"companydir/internal/config"
	"companydir/internal/events"
	handlers "companydir/internal/http/handler"
	"companydir/internal/http/middleware"
	"companydir/internal/otel"
	"companydir/internal/seed"
	"companydir/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := &cleanups{log: log}
	defer cl.run(shutdownTimeout)

	shutdownTracer, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}
	cl.add("tracer", shutdownTracer)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	cl.add("store", store.repo.Close)
	if err := store.migrate(ctx); err != nil {
		return err
	}

	publisher := newPublisher(cfg, log)
	cl.add("event producer", func(context.Context) error { return publisher.Close() })

	rdb := openCache(ctx, cfg, log)
	if rdb != nil {
		cl.add("redis", func(context.Context) error { return rdb.Close() })
	}
	svc := newService(cfg, log, store.repo, publisher, rdb)

	// The in-memory store starts empty, so give local runs something to browse.
	if cfg.Store.Driver == config.DriverMemory {
		if _, err := seed.New(svc, store.repo, log).Run(ctx, seed.Default(), seed.Options{IfEmpty: true}); err != nil {
			log.Warn("failed to seed in-memory store", zap.Error(err))
		}
	}

	app, err := newApp(cfg, log, store.repo, svc)
	if err != nil {
		return err
	}
	cl.add("http server", app.ShutdownWithContext)

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("server starting", zap.String("addr", addr), zap.String("store", cfg.Store.Driver))
		serveErr <- app.Listen(addr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}
	return err
}

func newPublisher(cfg *config.AppConfig, log *zap.Logger) events.Publisher {
	if !cfg.KafkaEnabled() {
		return events.Nop{}
	}
	log.Info("publishing company events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return events.NewProducer(cfg.Kafka.Brokers, log, cfg.Kafka.Topic)
}

func newApp(cfg *config.AppConfig, log *zap.Logger, store handlers.Pinger, svc service.CompanyService) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	// Register global middleware
	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(metrics.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, store, svc, log)

	return app, nil
}
