package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-api/internal/config"
	"storefront-api/internal/db"
	"storefront-api/internal/httpserver"
	"storefront-api/internal/kafka"
	"storefront-api/internal/outbox"
	"storefront-api/internal/payments"
	"storefront-api/internal/pricing"
	basketrepo "storefront-api/internal/repository/basket"
	orderrepo "storefront-api/internal/repository/order"
	outboxrepo "storefront-api/internal/repository/outbox"
	productrepo "storefront-api/internal/repository/product"
	basketsvc "storefront-api/internal/service/basket"
	ordersvc "storefront-api/internal/service/order"
	paymentsvc "storefront-api/internal/service/payment"
	productsvc "storefront-api/internal/service/product"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	paymentClient := payments.NewClient(cfg.Payment.APIBaseURL, cfg.Payment.SecretKey, cfg.Payment.Timeout)
	calc := pricing.New(paymentClient, cfg.Pricing.FreeShippingThresholdCents, cfg.Pricing.DeliveryFeeCents)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	basketRepo := basketrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool)

	eventTopic := ""
	if cfg.Kafka.Enabled {
		eventTopic = cfg.Kafka.OrderTopic
	}

	productService := productsvc.New(productRepo)
	paymentService := paymentsvc.New(paymentClient, calc, basketRepo, cfg.Payment.Currency)
	basketService := basketsvc.New(basketRepo, productRepo, paymentService, paymentClient)
	orderService := ordersvc.New(orderRepo, basketRepo, calc, eventTopic, logger)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Acks:        cfg.Kafka.Acks,
			LingerMs:    cfg.Kafka.LingerMs,
			Compression: cfg.Kafka.Compression,
		}, logger)
		if err != nil {
			logger.Fatalf("init kafka producer: %v", err)
		}
		defer producer.Close()

		relay := outbox.NewRelay(outboxrepo.NewPostgres(dbpool), producer, logger, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval)
		go relay.Run(relayCtx)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		ProductSvc:    productService,
		BasketSvc:     basketService,
		OrderSvc:      orderService,
		PaymentSvc:    paymentService,
		WebhookSecret: cfg.Payment.WebhookSecret,
	}, cfg.CORSOrigins)
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	stopRelay()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
