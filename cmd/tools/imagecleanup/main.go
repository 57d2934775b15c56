package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/noah-isme/glassworks/internal/media"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/store"
)

func main() {
	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "report orphaned images without deleting them")
	dataFile := flag.String("data", envOrDefault("DATA_FILE", "data/catalog.json"), "catalog document path")
	mediaDir := flag.String("dir", envOrDefault("MEDIA_DIR", "public/images"), "image directory")
	flag.Parse()

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "console"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "imagecleanup").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(store.Config{Path: *dataFile})
	if err != nil {
		logger.Fatal().Err(err).Msg("open catalog store")
	}
	cleaner, err := media.NewCleaner(*mediaDir, st, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init media cleaner")
	}
	res, err := cleaner.Cleanup(ctx, *dryRun)
	if err != nil {
		logger.Fatal().Err(err).Msg("image cleanup failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Fatal().Err(err).Msg("encode result")
	}
	if len(res.Errors) > 0 {
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
