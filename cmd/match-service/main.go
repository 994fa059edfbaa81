package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/matchcare/platform/pkg/carerequests"
	"github.com/matchcare/platform/pkg/clients/billing"
	"github.com/matchcare/platform/pkg/clients/profile"
	"github.com/matchcare/platform/pkg/common/config"
	"github.com/matchcare/platform/pkg/common/database"
	"github.com/matchcare/platform/pkg/common/kafka"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/matching"
	"github.com/matchcare/platform/pkg/observability/metrics"
	"github.com/matchcare/platform/pkg/offers"
	"github.com/matchcare/platform/pkg/scheduler"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	matchRepo := matching.NewRepository(db)
	if err := matchRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate match tables")
	}
	requestRepo := carerequests.NewRepository(db)
	if err := requestRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate care request tables")
	}
	offerRepo := offers.NewRepository(db)
	if err := offerRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate offer tables")
	}

	cache := matching.NewCache(database.GetRedis(), cfg.MatchCacheTTL)

	weights, err := matching.LoadWeights(cfg.MatchingWeightsPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load matching weights")
	}
	scorer := matching.NewScorer(weights)

	profileClient := profile.NewClient(cfg.ProfileServiceURL, cfg.CollaboratorTimeout, cfg.CollaboratorRetries)
	billingClient := billing.NewClient(cfg.BillingServiceURL, cfg.CollaboratorTimeout, cfg.CollaboratorRetries)

	matchProducer := kafka.NewProducer(cfg.MatchEventsTopic)
	defer matchProducer.Close()
	offerProducer := kafka.NewProducer(cfg.OfferEventsTopic)
	defer offerProducer.Close()
	requestProducer := kafka.NewProducer(cfg.CareRequestTopic)
	defer requestProducer.Close()

	matchSvc := matching.NewService(matchRepo, profileClient, scorer, matchProducer, cache, cfg.MatchingThreshold)
	requestSvc := carerequests.NewService(requestRepo, profileClient, requestProducer)
	offerSvc := offers.NewService(offerRepo, billingClient, matchRepo, requestSvc, offerProducer, cfg.OfferExpirationDays)

	dispatcher := matching.NewDispatcher(matchSvc)
	consumer := kafka.NewConsumer(cfg.ProfileEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, dispatcher.Handle); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Fatal("consumer error")
		}
	}()

	sweeper := scheduler.NewRunner(offerSvc, cfg.OfferSweepInterval)
	sweeper.Start()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	matching.NewHandler(matchSvc).Register(api)
	carerequests.NewHandler(requestSvc).Register(api)
	offers.NewHandler(offerSvc).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Match Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Match Service...")

	// Stop accepting HTTP requests before draining fan-outs, so no handler
	// can start a new recalculation while the service is shutting down.
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	cancel()
	sweeper.Stop()
	matchSvc.Shutdown()

	logger.Log.Info("Match Service stopped")
}
