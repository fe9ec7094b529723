package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-service/config"
	"quote-service/internal/api"
	"quote-service/internal/broker"
	"quote-service/internal/redisclient"
	"quote-service/internal/service"
	"quote-service/internal/store"
	"quote-service/internal/tracking"
	"quote-service/internal/util"
	"quote-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting quote service")

	tp, err := util.InitTracer("quote-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicQuote)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	carrierClient := service.NewHTTPCarrierClient(cfg.Carrier.BaseURL, cfg.Carrier.APIKey)
	gate := tracking.NewGate(db, redisClient, carrierClient, eventPublisher, tracking.Config{
		CooldownWindow: cfg.Business.RefreshCooldown,
		StaleAfter:     cfg.Business.TrackingStaleAfter,
		SessionTTL:     cfg.Business.SessionTTL,
	})

	quotaService := service.NewQuotaService(redisClient, cfg.Business.MonthlyItemQuota)
	mailer := service.NewKafkaMailer(eventPublisher)
	quoteService := service.NewQuoteService(db, quotaService, gate, mailer, eventPublisher)
	paymentMethodService := service.NewPaymentMethodService(db)
	templateService := service.NewTemplateService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	trackingConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicQuote, cfg.Kafka.ConsumerGroup)
	trackingWorker := worker.NewTrackingWorker(trackingConsumer, gate, db)
	go func() {
		if err := trackingWorker.Start(workerCtx); err != nil {
			log.Printf("Tracking worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(quoteService, paymentMethodService, templateService, quotaService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	trackingWorker.Stop()

	log.Println("Server exited")
}
