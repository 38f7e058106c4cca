package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ledgerlink/ledgerlink/app/controllers"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/billing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/cache"
	"github.com/ledgerlink/ledgerlink/internal/pkg/database"
	"github.com/ledgerlink/ledgerlink/internal/pkg/docarchive"
	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics/counter"
	"github.com/ledgerlink/ledgerlink/internal/pkg/router"
	"github.com/ledgerlink/ledgerlink/internal/pkg/synccache"
)

func main() {
	app, queue := NewApplication()
	defer queue.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// NewApplication wires the full service: storage, cache, gateways,
// billing core, background workers and the HTTP surface.
func NewApplication() (*fiber.App, *jobqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	invoiceGW := invoicing.NewClientFromEnv()
	paymentGW := payments.NewClientFromEnv()

	billingRepo := billing.NewRepository(db)
	syncCache := synccache.NewRedisStore(cache.GetClient(), synccache.DefaultFreshness)

	orchestrator := billing.NewOrchestrator(billingRepo, invoiceGW, paymentGW)
	syncService := billing.NewSyncService(billingRepo, invoiceGW, paymentGW, syncCache)
	webhookProcessor := billing.NewWebhookProcessor(billingRepo, invoiceGW, env.GetEnv("PAYMENTS_WEBHOOK_SECRET", ""))

	archive := setupDocArchive()

	queue := jobqueue.NewQueue(3, jobqueue.Deps{
		Repo:      billingRepo,
		Sync:      syncService,
		InvoiceGW: invoiceGW,
		Archive:   archive,
	})
	queue.Start()

	controllers.SetupServices(controllers.Services{
		Orchestrator: orchestrator,
		Sync:         syncService,
		Webhook:      webhookProcessor,
		PaymentGW:    paymentGW,
		Queue:        queue,
	})

	startReconciliationTicker(queue)
	startCounterFlushTicker()

	// Find the project root for the OpenAPI document
	basePaths := []string{
		"./",
		"../../",
		"../../../",
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}
	if basePath == "" {
		panic("Could not find project root directory")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, queue
}

func setupDocArchive() *docarchive.Client {
	cfg, err := docarchive.LoadConfig()
	if err != nil {
		log.Printf("Warning: invalid document archive config: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := docarchive.NewClient(cfg)
	if err != nil {
		log.Printf("Warning: document archive unavailable: %v", err)
		return nil
	}
	return client
}

// startReconciliationTicker periodically enqueues one sync job per
// customer and a receipt document backfill run.
func startReconciliationTicker(queue *jobqueue.Queue) {
	interval := 15 * time.Minute
	if raw := env.GetEnv("RECONCILE_INTERVAL_MINUTES", ""); raw != "" {
		if minutes, err := time.ParseDuration(raw + "m"); err == nil && minutes > 0 {
			interval = minutes
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx := context.Background()
			if n, err := queue.EnqueueSyncForAllCustomers(ctx); err != nil {
				log.Printf("Warning: reconciliation enqueue failed: %v", err)
			} else {
				log.Printf("Reconciliation: enqueued %d sync jobs", n)
			}
			if _, err := queue.EnqueueJob(
				jobqueue.JobTypeReceiptDocumentBackfill,
				jobqueue.ReceiptDocumentBackfillJobPayload{Limit: 50}.ToMap(),
			); err != nil {
				log.Printf("Warning: backfill enqueue failed: %v", err)
			}
		}
	}()
}

// startCounterFlushTicker flushes the Redis download counters to MySQL.
func startCounterFlushTicker() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := counter.FlushAll(); err != nil {
				log.Printf("Warning: counter flush failed: %v", err)
			}
		}
	}()
}
