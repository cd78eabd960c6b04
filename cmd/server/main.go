package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"consultation-report-service/adapters/web"
	"consultation-report-service/config"
)

const maxUploadBytes = 25 * 1024 * 1024

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	app, err := web.NewApp(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}
	defer app.Close()

	srv := fiber.New(fiber.Config{
		AppName:   "consultation-report-service",
		BodyLimit: maxUploadBytes,
	})
	srv.Use(recover.New())
	srv.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	app.RegisterRoutes(srv)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Infof("starting server on http://%s", addr)
		if err := srv.Listen(addr); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
