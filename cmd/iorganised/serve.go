package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"iorganise/internal/auth"
	"iorganise/internal/common/fsutil"
	"iorganise/internal/config"
	"iorganise/internal/extract"
	"iorganise/internal/filestore"
	"iorganise/internal/httpapi"
	"iorganise/internal/manager"
	"iorganise/internal/modelserver"
	"iorganise/internal/ocr"
	"iorganise/internal/pipeline"
	"iorganise/internal/registry"
	"iorganise/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				cfg.Addr = v
			}
			if v, _ := cmd.Flags().GetString("cors-origins"); v != "" {
				cfg.CORS.Origins = splitCSV(v)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(os.Stderr, cfg.LogLevel))
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address, e.g. :8000 (overrides config)")
	cmd.Flags().String("cors-origins", "", "Comma-separated allowed CORS origins (overrides config)")
	return cmd
}

// openBlobs returns the configured blob backend. The local backend defaults to
// <data dir>/files.
func openBlobs(cfg config.StorageConfig, dataDir string) (filestore.Store, error) {
	switch cfg.Backend {
	case "s3":
		return filestore.NewS3(filestore.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		}), nil
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join(dataDir, "files")
		}
		dir, err := fsutil.ResolveDir(dir)
		if err != nil {
			return nil, err
		}
		return filestore.NewLocal(dir)
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	dataDir, err := fsutil.ResolveDir(cfg.DataDir)
	if err != nil {
		return err
	}
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "iorganise.db")
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	blobs, err := openBlobs(cfg.Storage, dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	catalog, err := registry.FromConfig(cfg.Models)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	regLog := log.With().Str("component", "registry").Logger()
	mgr := manager.New(manager.Config{
		Resolver:         catalog,
		Loaders:          modelserver.Loaders(modelserver.OptionsFromConfig(cfg, &regLog)),
		Device:           cfg.Models.Device,
		BatchSize:        cfg.Models.BatchSize,
		AllowCoresidency: cfg.Models.AllowCoresidency,
		BudgetMB:         cfg.Models.BudgetMB,
		MarginMB:         cfg.Models.MarginMB,
		LoadTimeout:      config.Seconds(cfg.Models.LoadTimeoutSecs, 0),
		MaxQueueDepth:    cfg.Models.MaxQueueDepth,
		MaxWait:          config.Seconds(cfg.Models.MaxWaitSecs, 0),
		Logger:           &regLog,
	})
	defer mgr.Close()

	pipeLog := log.With().Str("component", "pipeline").Logger()
	orch := pipeline.New(pipeline.Config{
		Registry:           mgr,
		Records:            db,
		Blobs:              blobs,
		OCR:                ocr.New(cfg.OCR.URL, config.Seconds(cfg.OCR.TimeoutSeconds, 0)),
		Audio:              extract.FFmpeg{Bin: cfg.Pipeline.FFmpegBin},
		Subjects:           cfg.Pipeline.Subjects,
		ExtractConcurrency: cfg.Pipeline.ExtractConcurrency,
		CacheTTL:           config.Seconds(cfg.Pipeline.ArtifactCacheTTL, 0),
		Logger:             &pipeLog,
	})
	runner := pipeline.NewRunner(orch, cfg.Pipeline.Workers)
	defer runner.Close()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxUploadMB(cfg.MaxUploadMB)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	handler := httpapi.NewMux(httpapi.Deps{
		Registry: mgr,
		Catalog:  catalog,
		Store:    db,
		Blobs:    blobs,
		Batches:  runner,
		Issuer:   auth.NewIssuer(cfg.Auth.SecretKey, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("device", string(mgr.Device())).Str("data_dir", dataDir).Msg("iorganised listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}
