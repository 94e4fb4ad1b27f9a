package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/handlers"
	"github.com/mmdatafocus/pos_backend/middlewares"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/posapi"
	"github.com/mmdatafocus/pos_backend/refdata"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/mmdatafocus/pos_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if _, err := utils.JwtSecret(); err != nil {
		logger.WithFields(logrus.Fields{"field": "auth"}).Fatal(err)
	}

	client, err := posapi.NewClient(config.PosAPI())
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "posapi"}).Fatal(err)
	}

	var cache refdata.Cache
	if err := connect(sigCtx, config.ConnectRedisWithRetry); err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; reference data is not cached and checkout locks are local: ", err)
	} else {
		cache = refdata.NewRedisCache(config.GetRedisDB(), "")
		defer config.GetRedisDB().Close()
	}
	store := refdata.NewStore(refdata.Sources{Catalog: client, Customers: client, Points: client}, cache, config.RefdataCacheTTL(), logger)

	var sink checkout.TransactionSink = client
	if config.OfflineBufferEnabled() {
		if buffered, ok := offlineBuffer(sigCtx, client, logger); ok {
			sink = buffered
		}
	}

	hooks := []checkout.SettleHook{store}
	if config.SettleEventsEnabled() {
		pub, err := workflow.NewPubSubPublisher(sigCtx)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Error("settle events disabled: ", err)
		} else {
			hooks = append(hooks, &workflow.SettleEvents{Publisher: pub})
		}
	}

	lang := config.PosLocale()
	registry := handlers.NewRegistry(checkout.Dependencies{
		Oracle:   client,
		Sink:     sink,
		Printer:  client,
		Notifier: checkout.LogNotifier{Logger: logger, Lang: lang},
		Logger:   logger,
		Hooks:    hooks,
		Lang:     lang,
	})
	go evictIdleSessions(sigCtx, registry, logger)

	api := &handlers.API{
		Sessions:      registry,
		Lookup:        refdata.Lookup{Catalog: store, Customers: store, Attach: store.Fresh()},
		PointSettings: store,
		Promotions:    client,
		RefData:       store,
		Lock:          handlers.RedisLocker,
		LockTTL:       config.CheckoutLockTTL(),
		Lang:          lang,
		Logger:        logger,
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	if config.IsProduction() {
		corsConfig.AllowOrigins = config.CorsAllowedOrigins()
		if corsConfig.AllowOrigins == nil {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.AccessLog(logger))
	r.Use(gin.Recovery())

	api.Register(r.Group("/api/pos", middlewares.AuthMiddleware()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + config.ServerPort(),
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": config.ServerPort()}).Info("pos server listening")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func connect(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout())
	defer cancel()
	return fn(ctx)
}

// offlineBuffer wires the MySQL commit buffer in front of the backend and
// starts its dispatcher.
func offlineBuffer(ctx context.Context, client *posapi.Client, logger *logrus.Logger) (checkout.TransactionSink, bool) {
	if err := connect(ctx, config.ConnectDatabaseWithRetry); err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Error("offline buffer disabled: ", err)
		return nil, false
	}
	db := config.GetDB()
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("offline buffer disabled: ", err)
			return nil, false
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	store := workflow.NewGormPendingStore(db)
	dispatcher := workflow.NewDispatcher(store, client, posapi.IsUnavailable, logger)
	go dispatcher.Run(ctx)

	return &workflow.BufferedSink{
		Next:          client,
		Store:         store,
		IsUnavailable: posapi.IsUnavailable,
		Logger:        logger,
	}, true
}

func evictIdleSessions(ctx context.Context, registry *handlers.Registry, logger *logrus.Logger) {
	idle := config.SessionIdleTimeout()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.EvictIdle(idle); n > 0 {
				logger.WithFields(logrus.Fields{"evicted": n}).Info("dropped idle sessions")
			}
		}
	}
}
