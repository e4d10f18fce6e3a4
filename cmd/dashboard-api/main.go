package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/actions"
	"github.com/gestione-formulari/dashboard/pkg/common/config"
	"github.com/gestione-formulari/dashboard/pkg/common/database"
	"github.com/gestione-formulari/dashboard/pkg/common/kafka"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/dashboard"
	"github.com/gestione-formulari/dashboard/pkg/formulari"
	"github.com/gestione-formulari/dashboard/pkg/gateway/middleware"
	"github.com/gestione-formulari/dashboard/pkg/gateway/routes"
	"github.com/gestione-formulari/dashboard/pkg/store"
	"github.com/gestione-formulari/dashboard/pkg/support"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	var (
		records store.Store[formulari.Formulario]
		tickets support.Store
		checks  = map[string]routes.Pinger{}
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Log.Warn("Using in-memory record store, data is not persisted")
		mem := store.NewMemory[formulari.Formulario]()
		if cfg.MemorySeedFile != "" {
			seed, err := formulari.LoadSeed(cfg.MemorySeedFile)
			if err != nil {
				logger.Log.WithError(err).Fatal("Failed to load seed records")
			}
			mem.Insert(seed...)
			logger.Log.WithField("records", len(seed)).Info("Loaded seed records")
		}
		records = mem
		tickets = support.NewMemoryStore()
	case config.StoreDriverPostgres:
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres()

		repo := formulari.NewRepository(db, cfg.FormulariTable)
		records = repo
		checks["postgres"] = repo

		ticketRepo := support.NewRepository(db, cfg.TicketsTable)
		if err := ticketRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate support tickets table")
		}
		tickets = ticketRepo
	default:
		logger.Log.WithField("driver", cfg.StoreDriver).Fatal("Unknown store driver")
	}

	formulariSvc, err := formulari.NewServiceFromConfig(records, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid formulari configuration")
	}

	// Cache and action locks
	var (
		cache dashboard.Cache = dashboard.NewMemoryCache(cfg.StatsCacheTTL)
		guard actions.Guard   = actions.NewMemoryGuard(cfg.ActionLockTTL)
	)
	if cfg.RedisEnabled {
		rdb := database.GetRedis(cfg)
		defer database.CloseRedis()
		cache = dashboard.NewRedisCache(rdb, cfg.StatsCacheTTL)
		guard = actions.NewRedisGuard(rdb, cfg.ActionLockTTL)
		checks["redis"] = redisPinger{rdb.Ping}
	}
	stats := dashboard.NewService(records, formulariSvc.Decorator(), cache)

	// Event bus
	var publisher actions.Publisher
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, stats.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Event consumer stopped")
			}
		}()
	}

	actionSvc := actions.NewService(actions.NewClient(nil, cfg), guard, publisher, stats)

	// Setup router
	router := mux.NewRouter()
	routes.NewHealthHandler(checks).Register(router)

	apiRouter := router.PathPrefix("/api").Subrouter()
	formulari.NewHandler(formulariSvc).Register(apiRouter)
	dashboard.NewHandler(stats).Register(apiRouter)
	support.NewHTTPHandler(support.NewService(tickets), cfg.MaxRequestBody).Register(apiRouter)
	routes.RegisterActionRoutes(apiRouter, &routes.ActionProxy{Service: actionSvc, MaxRequestBody: cfg.MaxRequestBody})

	// Wrap the router itself: preflight requests match no route and would
	// otherwise skip CORS.
	var handler http.Handler = router
	handler = middleware.BodyLimit(cfg.MaxRequestBody)(handler)
	handler = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigin)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)

	// Server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         cfg.ServerPort,
			"store_driver": cfg.StoreDriver,
			"redis":        cfg.RedisEnabled,
			"kafka":        cfg.KafkaEnabled,
		}).Info("Formulari dashboard API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Error("Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down formulari dashboard API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Formulari dashboard API stopped")
}
