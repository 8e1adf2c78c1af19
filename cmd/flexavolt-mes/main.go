package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/config"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/database"
	httpapi "github.com/DynaRob/flexavolt-mes-starter2/internal/http"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/logger"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/mqtt"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/service"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "flexavolt-mes")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sessions: Redis when reachable, in-memory KV otherwise (dev mode).
	var kv store.KV
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err == nil {
		kv = store.NewRedisKV(redisClient)
	} else {
		log.Warn("Redis unavailable, using in-memory sessions", zap.Error(err))
		kv = store.NewMemoryKV()
	}
	sessions := store.NewSessionStore(kv, 0)

	operators := httpapi.NewOperatorStore()
	// Dev bootstrap: seed one operator login so the line can start working
	// before any account management exists.
	seeded := operators.Upsert(cfg.SeedOperatorEmail, cfg.SeedOperatorPassword)
	log.Info("seeded operator", zap.String("operator_id", seeded.OperatorID), zap.String("email", seeded.Email))

	// Repositories: Postgres when enabled and reachable, in-memory otherwise.
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for flexavolt-mes")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}

	var (
		unitsRepo     repository.UnitsRepo
		referenceRepo repository.ReferenceRepo
		testRunsRepo  repository.TestRunsRepo
		eventsRepo    repository.EventsRepo
		printJobsRepo repository.PrintJobsRepo
		inventoryRepo repository.InventoryRepo
		ordersRepo    repository.ProductionOrdersRepo
	)
	if db != nil {
		unitsRepo = repository.NewPostgresUnitsRepo(db)
		referenceRepo = repository.NewPostgresReferenceRepo(db)
		testRunsRepo = repository.NewPostgresTestRunsRepo(db)
		eventsRepo = repository.NewPostgresEventsRepo(db)
		printJobsRepo = repository.NewPostgresPrintJobsRepo(db)
		inventoryRepo = repository.NewPostgresInventoryRepo(db)
		ordersRepo = repository.NewPostgresProductionOrdersRepo(db)
	} else {
		unitsRepo = repository.NewMemoryUnitsRepo()
		referenceRepo = repository.NewMemoryReferenceRepo()
		testRunsRepo = repository.NewMemoryTestRunsRepo()
		eventsRepo = repository.NewMemoryEventsRepo()
		printJobsRepo = repository.NewMemoryPrintJobsRepo()
		inventoryRepo = repository.NewMemoryInventoryRepo()
		ordersRepo = repository.NewMemoryProductionOrdersRepo()
	}

	// Optional MQTT wakeup channel for print agents.
	var notifier service.QueueNotifier
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := mqtt.NewClient(&cfg.MQTT, log); err == nil {
			mqttClient = c
			notifier = mqtt.NewQueueNotifier(c, cfg.MQTT.Topic, log)
		} else {
			log.Warn("MQTT connect failed, print agents poll only", zap.Error(err))
		}
	}

	gate := service.NewGateService(unitsRepo, referenceRepo, testRunsRepo, eventsRepo, printJobsRepo, log)
	lifecycle := service.NewLifecycleService(unitsRepo, referenceRepo, testRunsRepo, eventsRepo, inventoryRepo, gate, log)
	queue := service.NewPrintQueueService(printJobsRepo, eventsRepo, notifier, cfg.PrintClaimLease, log)

	auth := httpapi.NewAuth(operators, sessions, cfg.FixtureToken, cfg.PrintAgentToken, log)

	router := httpapi.NewRouter(log)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(operators, sessions, log))
	router.RegisterUnitRoutes(httpapi.NewUnitHandler(lifecycle, unitsRepo, auth, log))
	router.RegisterTestResultRoutes(httpapi.NewTestResultHandler(lifecycle, auth, log))
	router.RegisterPrintJobRoutes(httpapi.NewPrintJobHandler(queue, auth, log))
	router.RegisterProductionOrderRoutes(httpapi.NewProductionOrderHandler(ordersRepo, referenceRepo, auth, log))
	router.RegisterInventoryRoutes(httpapi.NewInventoryHandler(inventoryRepo, eventsRepo, auth, log))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
