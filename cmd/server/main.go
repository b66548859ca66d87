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

	"order-workflow/config"
	"order-workflow/internal/api"
	"order-workflow/internal/identity"
	"order-workflow/internal/notify"
	"order-workflow/internal/pricing"
	"order-workflow/internal/store"
	"order-workflow/internal/util"
	"order-workflow/internal/worker"
	"order-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order workflow engine")

	tp, err := util.InitTracer("order-workflow", cfg.Observ.JaegerEndpoint)
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

	gate, err := identity.NewRedisGate(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer gate.Close()
	log.Println("Identity gate connected")

	sink := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer sink.Close()
	log.Println("Notification sink initialized")

	policy := pricing.Policy{RejectUnderpricing: cfg.Workflow.RejectUnderpricing}
	flow := workflow.NewOrchestrator(db, gate, sink, policy, cfg.Workflow.ConflictRetryAttempts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := notify.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	dispatcher := worker.NewNotificationWorker(consumer, notify.NewSimulatedDeliverer(logger))
	go func() {
		if err := dispatcher.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(flow)
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
	dispatcher.Stop()

	log.Println("Server exited")
}
