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

	"inkwell/api/internal/app"
	"inkwell/api/internal/blob"
	"inkwell/api/internal/broadcast"
	"inkwell/api/internal/config"
	"inkwell/api/internal/notify"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var blobs blob.Store = blob.NewInlineStore()
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO at %s for attachment storage", cfg.MinioEndpoint)
		minioStore, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		blobs = minioStore
	}

	var broker broadcast.Broker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for draft event delivery")
		redisBroker, err := broadcast.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		broker = redisBroker
	} else {
		broker = broadcast.NewChannelBroker()
	}
	defer broker.Close()

	var notifier notify.Sink = notify.LogSink{}
	smtpSink := notify.NewSMTPSink(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, emailAddressResolver)
	if smtpSink.IsConfigured() {
		log.Printf("Using SMTP for comment notifications")
		notifier = smtpSink
	}

	service := app.New(cfg, dataStore, blobs, broker, notifier, searchService)

	httpServer := app.NewHTTPServer(service, broker, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: the event stream endpoint holds its response
		// open for the lifetime of the subscription.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Inkwell API listening on %s", cfg.Addr)
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

// emailAddressResolver treats user ids that already look like email
// addresses as deliverable. Identity lives outside this service, so a
// richer directory lookup belongs in the deployment that has one.
func emailAddressResolver(userID string) (string, bool) {
	if strings.Contains(userID, "@") {
		return userID, true
	}
	return "", false
}
