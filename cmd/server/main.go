package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"birthday-sync-service/internal/api"
	"birthday-sync-service/internal/calendar"
	"birthday-sync-service/internal/config"
	"birthday-sync-service/internal/logger"
	"birthday-sync-service/internal/store"
	"birthday-sync-service/internal/sync"
)

func main() {
	// Load Config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting Birthday Sync Service")

	// Init Document Stores
	documents, err := store.NewMySQLStore(cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to init document store", zap.Error(err))
	}
	defer documents.Close()

	// Init Calendar Provider
	provider := calendar.NewRESTProvider(cfg.Calendar)

	// Init Sync Service
	syncService, err := sync.NewService(cfg, sync.Stores{
		Birthdays:   documents.Birthdays,
		Tenants:     documents.Tenants,
		Groups:      documents.Groups,
		Wishlists:   documents.Wishlists,
		Users:       documents.Users,
		Credentials: documents.Credentials,
		Jobs:        documents.Jobs,
	}, provider, sync.RealClock{})
	if err != nil {
		logger.Log.Fatal("Failed to init sync service", zap.Error(err))
	}
	syncService.Start()
	defer syncService.Stop()

	// Init API
	handler := api.NewHandler(syncService, cfg.Server.AuthToken)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")
	_ = server.Close()
}
