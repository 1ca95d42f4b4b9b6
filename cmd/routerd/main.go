package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antigravity/transitcore/internal/httpapi"
	"github.com/antigravity/transitcore/internal/routing"
	"github.com/antigravity/transitcore/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	log.Println("Starting transitcore routerd...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbCfg := store.LoadConfigFromEnv()
	pg, err := store.NewPostgresStore(ctx, dbCfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pg.Close()
	log.Println("Postgres connection established")

	if _, err := httpapi.GetClient(); err != nil {
		log.Printf("Redis unavailable, continuing without route cache and rate limiting: %v", err)
	} else {
		log.Println("Redis connection established")
	}
	defer httpapi.Close()

	cfg := routing.LoadConfigFromEnv()
	router := routing.NewRouter(pg, cfg)
	log.Println("Router ready (graph fills in lazily per query)")

	server := httpapi.NewServer(router, pg)

	app := fiber.New(fiber.Config{
		AppName:      "transitcore routerd",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	perSecond := getEnvInt("TRANSITCORE_RATE_LIMIT_PER_SECOND", 20)
	if rdb, err := httpapi.GetClient(); err == nil {
		app.Use(httpapi.RateLimitMiddleware(rdb, perSecond))
	}

	app.Get("/health", server.Health)
	app.Get("/v2/route", server.RouteSearch)
	app.Get("/v2/stops", server.StopsList)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"error": "endpoint not found"})
	})

	port := getEnv("TRANSITCORE_API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Listening on http://localhost%s", addr)
	log.Printf("Route search: http://localhost%s/v2/route?from=stop:1&to=stop:2", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
