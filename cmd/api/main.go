package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"renoquote/api/internal/app"
	"renoquote/api/internal/artifact"
	"renoquote/api/internal/config"
	"renoquote/api/internal/email"
	"renoquote/api/internal/parser"
	"renoquote/api/internal/search"
	"renoquote/api/internal/session"
	"renoquote/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	artifacts, err := artifact.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("artifact store init failed: %v", err)
	}
	if err := artifacts.EnsureBucket(ctx); err != nil {
		log.Printf("WARNING: artifact bucket not ready, pdf storage will retry: %v", err)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, dataStore)

	var cmdParser parser.CommandParser
	var extractor parser.Extractor
	var transcriber parser.Transcriber
	if strings.TrimSpace(cfg.OpenAIKey) != "" {
		log.Printf("Using OpenAI parser (model %s)", cfg.OpenAIModel)
		ai := parser.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)
		cmdParser = ai
		extractor = ai
		transcriber = ai
	} else {
		log.Printf("OPENAI_API_KEY not set, using deterministic fallback parser")
		fallback := parser.NewFallback()
		cmdParser = fallback
		extractor = fallback
	}

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for review session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.New(cfg, dataStore, redisStore, cmdParser, extractor, transcriber, artifacts, searchService, emailService)
	} else {
		log.Printf("Using PostgreSQL for review session storage")
		service = app.New(cfg, dataStore, dataStore, cmdParser, extractor, transcriber, artifacts, searchService, emailService)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.WebhookSecret)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("RenoQuote API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
