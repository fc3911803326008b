package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Hakan2211/cinevido-sub002/internal/adapter/repo"
	"github.com/Hakan2211/cinevido-sub002/internal/credits"
	"github.com/Hakan2211/cinevido-sub002/internal/generation"
	"github.com/Hakan2211/cinevido-sub002/internal/http/handlers"
	httpapi "github.com/Hakan2211/cinevido-sub002/internal/http/httpapi"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/provider/fal"
	"github.com/Hakan2211/cinevido-sub002/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := repo.NewJobRepository(runner)
	assets := repo.NewAssetRepository(runner)
	ledger := credits.NewLedger(runner)

	provider := fal.NewClient(fal.Options{
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Logger:  logger,
	})

	var store storage.ObjectStore
	if cfg.ObjectStorageConfigured() {
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object storage")
		}
	} else {
		logger.Warn().Msg("object storage not configured, using local filesystem store")
		store, err = storage.NewFileStore(cfg.StoragePath, "http://localhost:"+cfg.Port+"/files")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init filesystem store")
		}
	}
	migrator := storage.NewMigrator(store, nil, logger)

	orchestrator := generation.NewOrchestrator(jobs, assets, provider, migrator, ledger, logger)
	app := handlers.NewApp(orchestrator, assets, ledger, migrator, logger)
	router := httpapi.NewRouter(app, cfg, logger)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
