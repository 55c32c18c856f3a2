package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/marcwilhelm/SalonOwl/app/repository"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/cache"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/database"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/env"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/payments"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/router"
)

func main() {
	app, sweeper := NewApplication()

	// graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		sweeper.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *payments.Sweeper) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "SalonOwl",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// background expiry of stale pending payments
	svc := payments.NewServiceFromDB(database.GetDB())
	sweeper := payments.NewSweeper(svc, 1*time.Hour)
	sweeper.Start()

	return app, sweeper
}
