// Command marketplaced runs the marketplace API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/app"
	"github.com/appstack-labs/marketplace/internal/blobstore"
	"github.com/appstack-labs/marketplace/internal/config"
	"github.com/appstack-labs/marketplace/internal/httpapi"
	"github.com/appstack-labs/marketplace/internal/metrics"
	"github.com/appstack-labs/marketplace/internal/middleware"
	"github.com/appstack-labs/marketplace/internal/storage/postgres"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to open postgres store")
		}
		defer pg.Close()
		stores = app.Stores{
			Accounts:   pg,
			Listings:   pg,
			Categories: pg,
			Reviews:    pg,
			Downloads:  pg,
		}
		log.Info("Using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	var objects blobstore.ObjectStore
	if cfg.S3Bucket != "" {
		objects, err = blobstore.NewS3Store(context.Background(), blobstore.S3Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to configure object storage")
		}
	} else {
		log.Warn("S3_BUCKET not set; presigned uploads use the in-memory fake")
	}

	application := app.New(cfg, stores, objects, log)

	var handler http.Handler = httpapi.New(application, log).Router()
	handler = middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log).Handler(handler)
	handler = middleware.NewCORS(cfg.CORSAllowedOrigins).Handler(handler)
	handler = metrics.InstrumentHandler(handler)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start application")
	}

	go func() {
		log.WithField("addr", server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Application shutdown failed")
	}
	log.Info("Shutdown complete")
}
