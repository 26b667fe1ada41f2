package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mantongash/cartsync/api/controllers"
	"github.com/mantongash/cartsync/api/routes"
	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/config"
	"github.com/mantongash/cartsync/pkg/db"
	"github.com/mantongash/cartsync/pkg/env"
	"github.com/mantongash/cartsync/pkg/logger"
	"github.com/mantongash/cartsync/pkg/migrate"
	"github.com/mantongash/cartsync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	collectionService, err := collection.NewService(collection.ServiceParams{
		Repo: collection.NewRepository(dbClient.DB()),
		Tx:   dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create collection service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, readiness, collectionService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
