package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docshare/docs"
	"docshare/internal/audit"
	"docshare/internal/config"
	"docshare/internal/database"
	handlers "docshare/internal/http/handler"
	"docshare/internal/http/middleware"
	"docshare/internal/logging"
	"docshare/internal/metrics"
	"docshare/internal/notify"
	"docshare/internal/otel"
	"docshare/internal/service"
	"docshare/internal/storage"
	"docshare/internal/watcher"
)

// @title Document Sharing API
// @version 1.0
// @description Share a frozen document snapshot and collect parent signatures.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := logging.LoadLocation(cfg.Timezone)
	logger := logging.New(os.Stdout, loc)

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	policy, err := config.LoadPolicy(cfg.Sharing.PolicyFile)
	if err != nil {
		log.Fatalf("failed to load sharing policy: %v", err)
	}

	store, closeStore, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open share store: %v", err)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sharingMetrics, err := metrics.NewSharing(reg)
	if err != nil {
		log.Fatalf("failed to register sharing metrics: %v", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	trail := audit.New(store,
		audit.WithMaxEntries(cfg.Sharing.AuditMaxEntries),
		audit.WithLogger(logger),
	)
	sharingSvc := service.NewSharingService(store,
		service.WithPolicy(policy),
		service.WithLocation(loc),
		service.WithPasswordLength(cfg.Sharing.PasswordLength),
		service.WithAuditor(trail),
		service.WithMetrics(sharingMetrics),
	)

	inbox := notify.NewInbox(cfg.Sharing.InboxSize)
	notifiers := []notify.Notifier{inbox, notify.NewLogNotifier(logger)}

	deps := handlers.Deps{
		Store:         store,
		Sharing:       sharingSvc,
		BaseURL:       cfg.BaseURL,
		Notifications: inbox,
		Audit:         trail,
		Gatherer:      reg,
	}

	// Completed documents are archived only when object storage is configured
	if cfg.MinIO.Enabled() {
		objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to initialize object storage: %v", err)
		}
		archiver := notify.NewArchiver(objStore, sharingSvc)
		notifiers = append(notifiers, archiver)
		deps.Archive = archiver
	}

	w := watcher.New(store, notify.Multi(notifiers...),
		watcher.WithInterval(time.Duration(cfg.Sharing.WatchIntervalSec)*time.Second),
		watcher.WithPersistedMarks(cfg.Sharing.PersistNotified),
		watcher.WithLogger(logger),
		watcher.WithMetrics(sharingMetrics),
	)
	watch := w.Start(ctx)
	defer watch.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    8 * 1024 * 1024,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(loc))
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, deps)

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

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(sctx)
	}()

	logger.Log(map[string]any{
		"component":    "api",
		"msg":          "server_starting",
		"addr":         ":" + cfg.Port,
		"store_driver": cfg.Sharing.StoreDriver,
		"archive":      cfg.MinIO.Enabled(),
	})

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
