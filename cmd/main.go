package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "bombona_tracker/docs"
	"bombona_tracker/internal/cache"
	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/config"
	"bombona_tracker/internal/handlers"
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/repository/db"
	"bombona_tracker/internal/server"
	"bombona_tracker/internal/service"
)

//go:generate swag init -d ../ -g cmd/main.go -o ../docs

const (
	serviceName     = "bombona-tracker"
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 5 * time.Second
)

// @title        Bombona Tracker API
// @version      1.0
// @description  Container (bombona) registry, QR scanning, movements and reports.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	flag.Parse()

	// load config.yml
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: serviceName})
	defer func() { _ = log.Sync() }()

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := newRepository(cfg, sqlDB, log)
	kv, closeKV := newKV(cfg, log)
	defer closeKV()

	services := service.NewService(repos, kv, serviceOptions(cfg), log)
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// start HTTP server
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	// graceful shutdown
	waitForShutdown(srv, services, log)
}

// newRepository selects the entity store. Users always live in SQLite.
func newRepository(cfg *config.Config, sqlDB *sql.DB, log *logger.Logger) *repository.Repository {
	if cfg.Store.Backend != config.BackendRemote {
		log.Infow("entity store", "backend", config.BackendSQLite, "path", cfg.DB.Path)
		return repository.NewRepository(sqlDB)
	}
	remote := repository.NewRemoteStore(repository.RemoteConfig{
		BaseURL:    cfg.Store.Remote.BaseURL,
		APIKey:     cfg.Store.Remote.APIKey,
		Timeout:    cfg.Store.Remote.Timeout,
		RetryCount: cfg.Store.Remote.RetryCount,
	}, log.Named("remote"))
	log.Infow("entity store", "backend", config.BackendRemote, "base_url", cfg.Store.Remote.BaseURL)
	return repository.NewRemoteRepository(sqlDB, remote)
}

// newKV connects to redis when configured and falls back to the in-process store.
func newKV(cfg *config.Config, log *logger.Logger) (cache.KV, func()) {
	if cfg.Redis.Addr == "" {
		log.Infow("kv store", "backend", "memory")
		return cache.NewMemoryKV(), func() {}
	}
	rkv := cache.NewRedisKV(cache.NewRedisClient(cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rkv.Ping(ctx); err != nil {
		log.Fatalw("failed to connect to redis", "err", err, "addr", cfg.Redis.Addr)
	}
	log.Infow("kv store", "backend", "redis", "addr", cfg.Redis.Addr)
	return rkv, func() {
		if err := rkv.Close(); err != nil {
			log.Errorw("failed to close redis", "err", err)
		}
	}
}

func serviceOptions(cfg *config.Config) service.Options {
	opt := service.Options{
		SigningKey:     cfg.Auth.SigningKey,
		TokenTTL:       cfg.Auth.TokenTTL,
		CacheTTL:       cfg.Dashboard.CacheTTL,
		ExportLocation: cfg.ExportLocation(),
		CaptureConfig: capture.Config{
			Interval:       cfg.Capture.Interval,
			RequestTimeout: cfg.Capture.RequestTimeout,
			Constraints: capture.Constraints{
				FacingMode: cfg.Capture.FacingMode,
				Width:      cfg.Capture.Width,
				Height:     cfg.Capture.Height,
			},
			Policy: capture.Policy(cfg.Capture.Policy),
		},
		Decoder: capture.NewZXingDecoder(),
	}
	if cfg.Capture.Device != "" || cfg.Capture.FrontDevice != "" {
		opt.DeviceCamera = capture.NewDeviceCamera(cfg.Capture.Device, cfg.Capture.FrontDevice)
	}
	return opt
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// release every camera held by a capture session
	services.Capture.Close()
}
