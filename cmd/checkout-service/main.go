package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/config"
	"github.com/ishakdedicc/f1store-next.js/internal/consumer"
	h "github.com/ishakdedicc/f1store-next.js/internal/http"
	"github.com/ishakdedicc/f1store-next.js/internal/metrics"
	"github.com/ishakdedicc/f1store-next.js/internal/notify"
	"github.com/ishakdedicc/f1store-next.js/internal/payment"
	"github.com/ishakdedicc/f1store-next.js/internal/paypal"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/ishakdedicc/f1store-next.js/internal/service"
	"github.com/ishakdedicc/f1store-next.js/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type cacheBackend interface {
	cache.CartCache
	cache.ViewInvalidator
}

func main() {
	log.Println("checkout-service starting...")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Store
	var st repository.Store
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("Using in-memory store, data is lost on restart")
		st = store.NewMemoryStore()
	default:
		repo, err := repository.NewRepository(&cfg.DB)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := repo.RunMigrations(&cfg.DB); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed")
		st = repo
	}
	defer st.Close()

	// Cache
	var cartCache cacheBackend = cache.Nop{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Redis connection failed:", err)
		}
		cartCache = cache.NewRedisCache(redisClient)
	}

	// Receipts
	var notifier payment.Notifier
	if cfg.MongoURI != "" {
		db, err := notify.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("MongoDB connection failed: %v", err)
		}
		defer func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Printf("error disconnecting MongoDB: %v", err)
			}
		}()
		sink := notify.NewReceiptSink(db, st)
		if err := sink.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create receipt indexes: %v", err)
		}
		notifier = sink
	} else {
		log.Println("MONGO_URI not set, receipts are not queued")
	}

	// Purchase signals go through Kafka when brokers are configured, else
	// product pages are refreshed in-process.
	var wg sync.WaitGroup
	var listeners []payment.PurchaseListener
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	var purchaseConsumer *consumer.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		publisher := notify.NewPurchasePublisher(cfg.KafkaBrokers...)
		defer publisher.Close()
		listeners = append(listeners, publisher)

		purchaseConsumer = consumer.NewConsumer(cartCache, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			purchaseConsumer.Run(consumerCtx)
		}()
	} else {
		listeners = append(listeners, notify.NewViewRefresher(cartCache))
	}

	if cfg.StripeWebhookKey == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET not set, every card webhook will be rejected")
	}

	reg := prometheus.DefaultRegisterer
	paypalClient := paypal.NewClient(paypal.Config{
		BaseURL:   cfg.PayPalAPIURL,
		ClientID:  cfg.PayPalClientID,
		AppSecret: cfg.PayPalAppSecret,
		Timeout:   cfg.ProviderTimeout,
	})
	reconciler := payment.NewReconciler(st, paypalClient, notifier, metrics.NewPaymentMetrics(reg), payment.Config{
		WebhookSecret:   cfg.StripeWebhookKey,
		ProviderTimeout: cfg.ProviderTimeout,
	}, listeners...)

	router := h.NewRouter(h.RouterConfig{
		Carts:              service.NewCartService(st, st, cartCache, cartCache, cfg.MergePolicy),
		Orders:             service.NewOrderService(st, st, st, cartCache),
		Payments:           reconciler,
		Webhooks:           reconciler,
		Metrics:            metrics.NewServerMetrics(reg),
		MetricsHandler:     metrics.Handler(),
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		WebhookRatePerSec:  cfg.WebhookRatePerSec,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Checkout service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	consumerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		reconciler.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Println("Background work stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("Background work didn't stop in time")
	}

	if purchaseConsumer != nil {
		purchaseConsumer.Close()
	}
	log.Println("Checkout service stopped")
}
