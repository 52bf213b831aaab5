package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/gateway/hosted"
	"github.com/fjod/go_cart/storefront/internal/gateway/redirect"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server and the outbox publisher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New("storefront", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("storefront starting", "version", rootCmd.Version, "db_driver", cfg.Database.Driver)

	repo, err := repository.NewRepository(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if !skipMigrations {
		if err := repo.RunMigrations(&cfg.Database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations completed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewRedisStore(rdb)
	cartService := cart.NewService(repo, sessions)
	checkoutService := checkout.NewService(checkout.Deps{
		Cart:      cartService,
		Pending:   sessions,
		Customers: repo,
		Orders:    repo,
		Redirect:  redirect.NewClient(cfg.Redirect),
		Hosted:    hosted.NewClient(cfg.Hosted),
		Metrics:   m,
		Currency:  cfg.Currency,
	})

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; every caller is anonymous and checkout is unavailable")
	}

	router, err := h.NewRouter(h.RouterConfig{
		Catalog:            repo,
		Cart:               cartService,
		Checkout:           checkoutService,
		Orders:             repo,
		Health:             []h.HealthChecker{repo, redisPinger{rdb}},
		Auth:               auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer),
		Metrics:            m,
		Logger:             log,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		SecureCookies:      cfg.SecureCookies,
	})
	if err != nil {
		return err
	}

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	pollerDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, m, log, cfg.OrderTopic, cfg.KafkaBrokers...)
		go func() {
			defer close(pollerDone)
			poller.Run(pollerCtx)
		}()
		log.Info("outbox publisher started", "topic", cfg.OrderTopic, "brokers", cfg.KafkaBrokers)
	} else {
		close(pollerDone)
		log.Warn("KAFKA_BROKERS is not set; order events stay in the outbox")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		stopPoller()
		<-pollerDone
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	stopPoller()
	<-pollerDone

	log.Info("server exited")
	return nil
}
