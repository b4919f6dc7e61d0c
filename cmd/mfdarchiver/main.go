package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/archiver"
	"github.com/dgallion1/mfdarchiver/internal/config"
	"github.com/dgallion1/mfdarchiver/internal/mediawiki"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}
	log.Info("finished successfully")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	authPath, err := config.AuthPath(cfg.AuthFile)
	if err != nil {
		return err
	}
	auth, err := config.LoadAuth(authPath)
	if err != nil {
		return err
	}

	client, err := mediawiki.NewClient(cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Login(ctx, auth); err != nil {
		return err
	}

	a := archiver.New(client, archiver.Options{
		ListingPage:   cfg.ListingPage,
		ArchivePrefix: cfg.ArchivePrefix,
		Skip:          cfg.SkipPages,
	}, log)

	log.Info("starting mfdarchiver", "listing", cfg.ListingPage)
	report, err := a.Run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Info("run complete", "counts", report.Counts(), "pages_saved", report.PagesSaved)
	return nil
}
