// Package main runs the interactive fixture console: it creates simulated smart
// bins and writes their register and scan QR codes to disk.
package main

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/client/shell"
	"github.com/atinyakov/binfixture/internal/config"
	"github.com/atinyakov/binfixture/internal/logger"
	"github.com/atinyakov/binfixture/internal/render"
	"github.com/atinyakov/binfixture/internal/repository"
	"github.com/atinyakov/binfixture/internal/sealer"
	"github.com/atinyakov/binfixture/internal/service"
)

var (
	version   string
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("binfixture console\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	lg := logger.New()
	if err := lg.InitWithFile(options.LogLevel, logger.FileConfig{Filename: options.LogFile}); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	key, err := options.KeyBytes()
	if err != nil {
		lg.Log.Fatal("invalid encryption key", zap.Error(err))
	}
	seal, err := sealer.New(key)
	if err != nil {
		lg.Log.Fatal("cannot init cipher", zap.Error(err))
	}

	devices := service.NewDeviceService(repository.NewMemoryDeviceRepository(), seal, service.Options{
		Prefix:   options.Prefix,
		CodeSeed: options.Seed,
		Logger:   lg.Log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := &shell.Shell{
		Registry:  devices,
		Renderer:  render.New(),
		Decoder:   seal,
		OutputDir: options.OutputDir,
		Preview:   true,
		In:        os.Stdin,
		Out:       os.Stdout,
		Log:       lg.Log,
	}
	sh.Run(ctx)
}
