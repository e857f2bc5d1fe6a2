package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"boxworks/alerts"
	"boxworks/config"
	"boxworks/engine"
	"boxworks/messaging"
	"boxworks/store"
	"boxworks/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "boxworks.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file (optional)")
	tail := flag.Bool("tail", false, "log events from the events topic instead of serving")
	tailTypes := flag.String("tail-types", "", "comma-separated event type prefixes to show with -tail, e.g. order,stock")
	flag.Parse()

	if *showVersion {
		fmt.Println("boxworks", Version)
		return
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Fatalf("load %s: %v", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *tail {
		if err := runTail(ctx, cfg, logger, *tailTypes); err != nil {
			logger.Fatalf("tail: %v", err)
		}
		return
	}
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Fatalf("boxworks: %v", err)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	db, err := store.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Infof("database open (%s)", cfg.Database.Driver)

	// Redis is optional; without it alert creation relies on the database alone
	var locker alerts.Locker
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("redis not available, alert locking disabled")
		} else {
			locker = alerts.NewRedisLocker(redisClient, 10*time.Second)
			logger.Infof("redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
	}

	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" && cfg.Messaging.Backend != "none" {
		msgClient = messaging.NewClient(&cfg.Messaging, logger)
		if err := msgClient.Connect(ctx); err != nil {
			logger.WithError(err).Warnf("messaging connect failed (%s); events stay in the outbox", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
	}

	eng := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		MsgClient: msgClient,
		Locker:    locker,
		Logger:    logger,
	})
	eng.Start()
	defer eng.Stop()

	if msgClient != nil {
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval, logger)
		drainer.Start(ctx)
		defer drainer.Stop()
	}

	handler, stopWeb := www.NewRouter(eng)
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("boxworks ready")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopWeb()
		return fmt.Errorf("web server: %w", err)
	}

	logger.Info("shutting down...")
	stopWeb()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("web server shutdown")
	}
	logger.Info("stopped")
	return nil
}
