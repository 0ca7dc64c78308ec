package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wms-budget/internal/client"
	"wms-budget/internal/config"
	"wms-budget/internal/database"
	httpapi "wms-budget/internal/http"
	"wms-budget/internal/logger"
	"wms-budget/internal/repository"
	"wms-budget/internal/service"
	"wms-budget/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wms-budget")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	var db *sql.DB
	var budgetStore repository.Store
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for wms-budget")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if db != nil {
		if cfg.DBMigrate {
			if err := repository.ApplySchema(context.Background(), db); err != nil {
				log.Fatal("Failed to apply schema", zap.Error(err))
			}
			log.Info("Schema applied")
		}
		budgetStore = repository.NewPostgresStore(db)
	} else {
		// 内存存储仅用于本地联调，重启后数据丢失
		budgetStore = repository.NewMemoryStore()
	}

	var publisher service.EventPublisher = store.NopPublisher{}
	var mqttPublisher *store.MQTTPublisher
	switch cfg.Events.Sink {
	case config.EventsSinkRedis:
		publisher = store.NewStreamPublisher(redisClient, cfg.Events.Stream)
	case config.EventsSinkMQTT:
		p, err := store.NewMQTTPublisher(store.MQTTConfig{
			Broker:      cfg.Events.MQTT.Broker,
			ClientID:    cfg.Events.MQTT.ClientID,
			Username:    cfg.Events.MQTT.Username,
			Password:    cfg.Events.MQTT.Password,
			TopicPrefix: cfg.Events.MQTT.TopicPrefix,
			QoS:         cfg.Events.MQTT.QoS,
		})
		if err != nil {
			log.Warn("MQTT connection failed, budget events disabled", zap.Error(err))
		} else {
			mqttPublisher = p
			publisher = p
		}
	}
	log.Info("Budget events configured", zap.String("sink", cfg.Events.Sink))

	eqList := client.NewEQListClient(cfg.EQList.HttpAddress, log)
	demands := client.NewNettingDemandSource(eqList, log)
	catalog := client.NewPartnumberClient(cfg.Partnumber.HttpAddress)
	rates := client.NewCachedExchangeRates(
		client.NewExchangeRateClient(cfg.ExchangeRate.HttpAddress),
		kv,
		cfg.ExchangeRate.CacheTTL,
		log,
	)

	guard := service.NewAccessGuard(cfg.UnrestrictedRoles)
	hierarchy := service.NewBudgetHierarchy(guard, demands)
	reconciler := service.NewContentReconciler(guard, demands, catalog, rates, log)
	budgets := service.NewBudgetService(budgetStore, hierarchy, reconciler, publisher, log)
	contents := service.NewContentService(budgetStore, guard, catalog, rates, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterBudgetRoutes(
		httpapi.NewBudgetHandler(budgets, log),
		httpapi.NewContentHandler(contents, log),
	)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttPublisher != nil {
		mqttPublisher.Close()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
