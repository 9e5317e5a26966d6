package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/feedstream-backend/internal/app"
	"github.com/yungbote/feedstream-backend/internal/db"
	"github.com/yungbote/feedstream-backend/internal/handlers"
	"github.com/yungbote/feedstream-backend/internal/logger"
	"github.com/yungbote/feedstream-backend/internal/realtime/bus"
	"github.com/yungbote/feedstream-backend/internal/server"
	"github.com/yungbote/feedstream-backend/internal/services"
	"github.com/yungbote/feedstream-backend/internal/sse"
	"github.com/yungbote/feedstream-backend/internal/store/memory"
	"github.com/yungbote/feedstream-backend/internal/store/redisstore"
	"github.com/yungbote/feedstream-backend/internal/store/sqlstore"
	"github.com/yungbote/feedstream-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("Could not load configuration", "error", err)
		os.Exit(1)
	}

	// Stores
	log.Info("Setting up stores from main...", "backend", cfg.Backend)
	stores, notificationBus, err := buildStores(cfg.Backend, log)
	if err != nil {
		log.Error("Could not init stores", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	stores.Bus = notificationBus

	// Services
	log.Info("Setting up services from main...")
	feedService, err := services.NewFeedService(log, stores, cfg.ReadImpliesSeen)
	if err != nil {
		log.Error("Could not init FeedService", "error", err)
		os.Exit(1)
	}

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewHub(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := notificationBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
		log.Error("Could not start notification forwarder", "error", err)
		os.Exit(1)
	}

	// Handlers + router
	feedHandler := handlers.NewFeedHandler(feedService)
	notificationHandler := handlers.NewNotificationHandler(feedService)
	sseHandler := handlers.NewSSEHandler(sseHub)
	router := server.NewRouter(server.RouterConfig{
		FeedHandler:         feedHandler,
		NotificationHandler: notificationHandler,
		SSEHandler:          sseHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = notificationBus.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

// buildStores composes the storage backend named by FEED_BACKEND. The
// feed layer only ever sees the store interfaces.
func buildStores(backend string, log *logger.Logger) (services.Stores, bus.Bus, error) {
	switch backend {
	case "memory":
		reg := memory.NewRegistry()
		return services.Stores{
			Timeline:   memory.NewTimelineStore(reg, log),
			Activities: memory.NewActivityStore(reg, log),
			Counts:     memory.NewCountStore(),
			Locker:     memory.NewLocker(),
		}, bus.NewLocalBus(), nil

	case "redis":
		rdb, err := redisstore.NewClient(log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		notificationBus, err := bus.NewRedisBus(rdb, log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		return services.Stores{
			Timeline:   redisstore.NewTimelineStore(rdb, log),
			Activities: redisstore.NewActivityStore(rdb, log),
			Counts:     redisstore.NewCountStore(rdb, log),
			Locker:     redisstore.NewLocker(rdb, log),
		}, notificationBus, nil

	case "postgres":
		pg, err := db.NewPostgresService(log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		if err := pg.AutoMigrateAll(); err != nil {
			return services.Stores{}, nil, err
		}
		return sqlBackedStores(pg.DB(), log)

	case "sqlite":
		sq, err := db.NewSQLiteService(log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		if err := sq.AutoMigrateAll(); err != nil {
			return services.Stores{}, nil, err
		}
		return sqlBackedStores(sq.DB(), log)

	default:
		return services.Stores{}, nil, fmt.Errorf("unknown FEED_BACKEND %q", backend)
	}
}

// sqlBackedStores pairs the SQL timeline and activity stores with
// redis locks, counters and pub/sub when REDIS_ADDR is configured, and
// with process-local ones otherwise.
func sqlBackedStores(gdb *gorm.DB, log *logger.Logger) (services.Stores, bus.Bus, error) {
	stores := services.Stores{
		Timeline:   sqlstore.NewTimelineStore(gdb, log),
		Activities: sqlstore.NewActivityStore(gdb, log),
	}
	if utils.GetEnv("REDIS_ADDR", "", log) != "" {
		rdb, err := redisstore.NewClient(log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		notificationBus, err := bus.NewRedisBus(rdb, log)
		if err != nil {
			return services.Stores{}, nil, err
		}
		stores.Counts = redisstore.NewCountStore(rdb, log)
		stores.Locker = redisstore.NewLocker(rdb, log)
		return stores, notificationBus, nil
	}
	log.Warn("REDIS_ADDR not set; using process-local locks and counters")
	stores.Counts = memory.NewCountStore()
	stores.Locker = memory.NewLocker()
	return stores, bus.NewLocalBus(), nil
}
