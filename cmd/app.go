package cmd

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/rawproc/internal/config"
	"github.com/telhawk-systems/rawproc/internal/logging"
	"github.com/telhawk-systems/rawproc/internal/metadata"
	"github.com/telhawk-systems/rawproc/internal/objectstore"
	"github.com/telhawk-systems/rawproc/internal/processor"
)

// app holds the process-wide clients shared by every invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     metadata.Store
	processor *processor.Processor
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, service string) *logging.Logger {
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service(service))
	logging.SetDefault(logger)
	return logger
}

func newApp(ctx context.Context, service string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, service)

	objects, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseTLS:    cfg.Storage.UseTLS,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Storage.EnsureBuckets {
		for _, bucket := range []string{cfg.Storage.RawBucket, cfg.Storage.ProcessedBucket} {
			if err := objects.EnsureBucket(ctx, bucket); err != nil {
				return nil, err
			}
		}
	}

	store, err := metadata.Open(ctx, cfg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	logger.Info("rawproc initialized",
		"raw_bucket", cfg.Storage.RawBucket,
		"processed_bucket", cfg.Storage.ProcessedBucket,
		"metadata_backend", cfg.Metadata.Backend,
		"metadata_table", cfg.Metadata.Table,
	)

	proc := processor.New(objects, store, processor.Options{
		RawBucket:       cfg.Storage.RawBucket,
		ProcessedBucket: cfg.Storage.ProcessedBucket,
	}, logger)

	return &app{cfg: cfg, logger: logger, store: store, processor: proc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
