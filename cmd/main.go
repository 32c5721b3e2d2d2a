// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/cache"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/config"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/database"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/events"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/gateway/payu"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/handler"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/memory"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/seed"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/service"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/worker"
)

func main() {
	cfg, err := config.Load("config", ".")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	setupLogging(cfg.Log)
	if cfg.PayU.Key == "" || cfg.PayU.Salt == "" {
		logrus.Fatal("payu key and salt are required (BOOKING_PAYU_KEY, BOOKING_PAYU_SALT)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ───────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("database: %v", err)
	}
	defer store.Close()

	// ── 2. Optional collaborators ────────────────────────────────────────
	var opts []service.Option
	if cfg.RabbitMQ.URL != "" {
		pub, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logrus.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
		logrus.WithField("exchange", cfg.RabbitMQ.Exchange).Info("publishing booking events")
	}
	if cfg.Redis.Addr != "" {
		replay := cache.NewReplayCache(cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.ReplayTTL)
		defer replay.Close()
		opts = append(opts, service.WithReplayCache(replay))
		logrus.WithField("addr", cfg.Redis.Addr).Info("notification replay cache enabled")
	}
	if cfg.Server.AdminToken == "" {
		logrus.Warn("server.admin_token not set, admin endpoints are disabled")
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	bookingSvc := service.NewBookingService(store, opts...)
	reconciler := service.NewReconciler(store, opts...)
	gateway := payu.NewClient(cfg.PayU.Key, cfg.PayU.Salt, cfg.PayU.BaseURL, cfg.PayU.SuccessURL, cfg.PayU.FailureURL)
	bookingHandler := handler.NewBookingHandler(bookingSvc, reconciler, gateway)

	if cfg.Audit.Enabled {
		audit := worker.NewPendingAudit(store.Repos().Bookings, cfg.Audit.Interval, cfg.Audit.PendingAge, cfg.Audit.BatchSize)
		go audit.Start(ctx)
	}

	// ── 4. Start server with graceful shutdown ───────────────────────────
	router := handler.NewRouter(bookingHandler, handler.RouterConfig{
		StaticDir:  cfg.Server.StaticDir,
		AdminToken: cfg.Server.AdminToken,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.Infof("server listening on http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logrus.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
		return
	}
	logrus.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		store := memory.NewStore()
		_, err := seed.Run(ctx, store.Repos(), seed.Options{From: time.Now().AddDate(0, 0, 1), Days: 7})
		if err != nil {
			return nil, err
		}
		logrus.Warn("using in-memory store, data is lost on exit")
		return store, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logrus.WithField("host", cfg.Database.Host).Info("connected to PostgreSQL")
	return postgres.NewStore(pool), nil
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
}
