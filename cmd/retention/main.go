// Command retention archives and deletes analytics events older than the
// configured retention window. It is meant to run from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/repositories/mongodb"
	"storefront/internal/services"
	"storefront/pkg/database"
	"storefront/pkg/logger"
	"storefront/pkg/storage"
)

func main() {
	cfg := config.LoadEnv()

	olderThanDays := flag.Int("older-than-days", cfg.Analytics.RetentionDays, "delete events older than this many days")
	listArchives := flag.Bool("list", false, "list existing archives and exit")
	flag.Parse()

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  cfg.App.LogOutput,
		AppName: cfg.App.Name + "-retention",
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize archive storage")
	}

	if *listArchives {
		if archive == nil {
			log.Fatal("No archive provider configured")
		}
		files, err := archive.ListFiles(ctx, cfg.Storage.Prefix)
		if err != nil {
			log.WithError(err).Fatal("Failed to list archives")
		}
		for _, file := range files {
			fmt.Printf("%s\t%d\t%s\n", file.Key, file.Size, file.LastModified.UTC().Format("2006-01-02T15:04:05Z"))
		}
		return
	}

	db, err := database.NewMongoDB(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	repo := mongodb.NewAnalyticsRepository(db.Database, cfg.Analytics.Collection)
	service := services.NewAnalyticsService(repo, nil, nil, archive, nil, cfg.Analytics, cfg.Storage.Prefix, log)

	started := time.Now()
	result, err := service.PurgeEvents(ctx, *olderThanDays)
	if err != nil {
		log.WithError(err).Error("Retention sweep failed")
		db.Close()
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"cutoff":      result.Cutoff,
		"deleted":     result.Deleted,
		"archived":    result.Archived,
		"archive_key": result.ArchiveKey,
	}).Info("Retention sweep finished")
	log.LogPerformanceMetric("retention_sweep_duration", time.Since(started).Seconds(), "seconds", map[string]string{
		"provider": cfg.Storage.Provider,
	})
}
