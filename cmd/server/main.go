package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"larder/internal/adjustment"
	"larder/internal/commons"
	inventoryctrl "larder/internal/inventory/controller"
	"larder/internal/infrastructure/logger"
	"larder/internal/infrastructure/mysql"
	"larder/internal/infrastructure/redis"
	"larder/internal/order"
	"larder/internal/order/usecase"
	"larder/internal/product"
	"larder/internal/server"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "internal/config/config.yaml"
	}

	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	txm := mysql.NewTxManager(db, cfg.Order.ReservationTxTimeout)

	var idempotency usecase.IdempotencyStore = redis.NoopIdempotencyStore{}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer client.Close()
		idempotency = redis.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)
		zapLogger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	adjustmentModule := adjustment.NewModule(db, txm, zapLogger)
	productCtrl := product.NewModule(db, zapLogger)
	inventoryCtrl := inventoryctrl.NewModule(db, txm, adjustmentModule.Service, zapLogger)
	orderCtrl := order.NewModule(db, txm, cfg, idempotency, adjustmentModule.Service, zapLogger)

	router := server.NewRouter(productCtrl, inventoryCtrl, orderCtrl, adjustmentModule.Controller, zapLogger)

	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	if err := srv.Shutdown(context.Background()); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
