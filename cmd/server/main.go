// Package main starts the fixture HTTP server, which exposes device creation,
// scan refresh and QR images over a small JSON API.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/config"
	"github.com/atinyakov/binfixture/internal/logger"
	"github.com/atinyakov/binfixture/internal/metrics"
	"github.com/atinyakov/binfixture/internal/render"
	"github.com/atinyakov/binfixture/internal/repository"
	"github.com/atinyakov/binfixture/internal/sealer"
	"github.com/atinyakov/binfixture/internal/server/handler/http"
	"github.com/atinyakov/binfixture/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.InitWithFile(options.LogLevel, logger.FileConfig{Filename: options.LogFile}); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	key, err := options.KeyBytes()
	if err != nil {
		zapLogger.Fatal("invalid encryption key", zap.Error(err))
	}
	seal, err := sealer.New(key)
	if err != nil {
		zapLogger.Fatal("cannot init cipher", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	devices := service.NewDeviceService(repository.NewMemoryDeviceRepository(), seal, service.Options{
		Prefix:   options.Prefix,
		CodeSeed: options.Seed,
		Logger:   zapLogger,
		Metrics:  metrics.New(registry),
	})

	deviceHandler := &http.DeviceHandler{Devices: devices, Renderer: render.New(), Log: zapLogger}
	router := http.NewRouter(deviceHandler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
