package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ledgerlink/ledgerlink/app/controllers"
	"github.com/ledgerlink/ledgerlink/internal/pkg/cache"
	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	v1.Post("/customers", controllers.HandleCreateCustomer)
	v1.Get("/customers", controllers.HandleListCustomers)
	v1.Get("/customers/:id", controllers.HandleGetCustomer)
	v1.Post("/customers/:id/mandate", controllers.HandleSetupMandate)
	v1.Post("/customers/:id/mandate/refresh", controllers.HandleRefreshMandate)

	v1.Post("/billing/cycle", controllers.HandleCreateBillingCycle)
	v1.Post("/billing/sync", controllers.HandleSyncBilling)
	v1.Get("/billing/records", controllers.HandleListBillingRecords)
	v1.Get("/billing/records/:uuid", controllers.HandleGetBillingRecord)

	v1.Get("/receipts/:uuid", controllers.HandleGetReceipt)
	v1.Post("/receipts/:uuid/download", controllers.HandleDownloadReceipt)
	v1.Post("/receipts/backfill", controllers.HandleTriggerDocumentBackfill)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold
// across instances. Uses database 1 (cache uses DB 0).
func newLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
