package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companydir/internal/config"
	"companydir/internal/seed"
	"companydir/internal/storage"
)

func newSeedCmd() *cobra.Command {
	var (
		file    string
		object  string
		ifEmpty bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load companies from a JSON file, a MinIO object, or the bundled sample set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" && object != "" {
				return errors.New("--file and --object are mutually exclusive")
			}
			return runSeed(cmd.Context(), file, object, seed.Options{IfEmpty: ifEmpty})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of companies")
	cmd.Flags().StringVar(&object, "object", "", "object key in the configured MinIO bucket")
	cmd.Flags().BoolVar(&ifEmpty, "if-empty", false, "skip when the store already holds companies")
	return cmd
}

func runSeed(ctx context.Context, file, object string, opts seed.Options) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	src, err := openSeedSource(ctx, cfg, file, object)
	if err != nil {
		return err
	}
	defer src.Close()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.repo.Close(context.Background()) }()
	if err := store.migrate(ctx); err != nil {
		return err
	}

	publisher := newPublisher(cfg, log)
	defer func() { _ = publisher.Close() }()

	// Creates invalidate cached filter values a running server may hold.
	rdb := openCache(ctx, cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	svc := newService(cfg, log, store.repo, publisher, rdb)

	res, err := seed.New(svc, store.repo, log).Run(ctx, src, opts)
	if err != nil {
		return err
	}
	for _, f := range res.Failed {
		log.Warn("row not seeded", zap.Int("index", f.Index), zap.String("name", f.Name), zap.String("error", f.Err))
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d rows failed validation", len(res.Failed), len(res.Failed)+res.Created)
	}
	return nil
}

func openSeedSource(ctx context.Context, cfg *config.AppConfig, file, object string) (io.ReadCloser, error) {
	switch {
	case file != "":
		return seed.OpenFile(file)
	case object != "":
		if !cfg.MinIOEnabled() {
			return nil, errors.New("--object requires MINIO_ENDPOINT and MINIO_BUCKET")
		}
		store, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return seed.OpenObject(ctx, store, object)
	default:
		return io.NopCloser(seed.Default()), nil
	}
}
