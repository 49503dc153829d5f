package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videohub/internal/ai"
	"videohub/internal/app"
	"videohub/internal/config"
	"videohub/internal/database"
	"videohub/internal/handlers"
	"videohub/internal/signature"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	log := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	pipeline, err := app.NewProcessing(ctx, cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up processing")
	}
	defer pipeline.Close()

	var completer ai.Completer
	if c, err := ai.NewCohereCompleter(cfg.Cohere); err == nil {
		completer = c
	} else {
		log.Warn("COHERE_API_KEY not set, description generation disabled")
	}

	if !cfg.IsProduction() {
		log.WithField("environment", cfg.Environment).Warn("Webhook signatures are not verified outside production")
	}

	h := handlers.NewHandler(handlers.Deps{
		Config:    cfg,
		DB:        db,
		Processor: pipeline.Service,
		Verifier:  signature.NewReceiver(cfg.QStash.CurrentSigningKey, cfg.QStash.NextSigningKey),
		Completer: completer,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ListenPort,
		Handler:           handlers.NewRouter(h, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.ListenPort).Info("Starting videohub server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown error")
	}
}
