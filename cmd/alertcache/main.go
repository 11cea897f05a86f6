// alertcache - maintenance CLI for the alert cache
//
// Bulk warm, legacy index migration, operational stats and snapshot
// archival against a running Redis instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/chainwatch/alertcache"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "warm":
		runWarm(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "restore":
		runRestore(os.Args[2:])
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Println(`alertcache - alert cache maintenance

Usage:
  alertcache warm                     Bulk-sync all enabled alerts from Postgres
  alertcache migrate                  Convert legacy Set indexes to JSON arrays
  alertcache stats                    Print cache population counts
  alertcache export [flags]           Export a cache snapshot to the archive
  alertcache restore -key K [flags]   Restore a cache snapshot from the archive

Environment:
  REDIS_ADDR, REDIS_PASSWORD, REDIS_DB   Redis connection (default localhost:6379)
  DATABASE_URL                           Postgres source of truth (warm only)

Archive flags (export/restore):
  -backend string   "filesystem" or "s3" (default "filesystem")
  -dir string       Base directory for the filesystem backend (default "./archive")
  -bucket string    Bucket name for the s3 backend
  -key string       Snapshot object key (restore only)`)
}

func newLogger() *alertcache.ZapLogger {
	logger, err := alertcache.NewProductionZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newRedisClient() *redis.Client {
	return redis.NewClient(alertcache.RedisOptions())
}

func runWarm(args []string) {
	fs := flag.NewFlagSet("warm", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx := context.Background()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required for warm")
		os.Exit(2)
	}

	source, err := alertcache.NewPostgresSource(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer source.Close()

	client := newRedisClient()
	defer client.Close()

	engine := alertcache.NewEngine(client).WithLogger(logger)
	result, err := engine.SyncAll(ctx, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warm failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("warm complete: run=%s synced=%d failed=%d\n",
		result.RunID, result.Synced, result.Failed)
	for _, failure := range result.Failures {
		fmt.Printf("  failed %s: %v\n", failure.AlertID, failure.Err)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx := context.Background()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	client := newRedisClient()
	defer client.Close()

	migrator := alertcache.NewMigrator(client).WithLogger(logger)
	report, err := migrator.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("migration complete: migrated=%d skipped=%d failed=%d duration=%s\n",
		report.Migrated, report.Skipped, report.Failed, report.Duration)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx := context.Background()
	client := newRedisClient()
	defer client.Close()

	stats := alertcache.NewReporter(client).Snapshot(ctx)
	fmt.Printf("active alerts:        %d\n", stats.ActiveAlerts)
	fmt.Printf("periodic scheduled:   %d\n", stats.PeriodicScheduled)
	fmt.Printf("one-time scheduled:   %d\n", stats.OneTimeScheduled)
	fmt.Printf("address index keys:   %d\n", stats.AddressIndexKeys)
	fmt.Printf("contract index keys:  %d\n", stats.ContractIndexKeys)
}

func newArchiveBackend(ctx context.Context, backend, dir, bucket string) alertcache.ArchiveBackend {
	switch backend {
	case "filesystem":
		return alertcache.NewFilesystemArchiveBackend(dir)
	case "s3":
		if bucket == "" {
			fmt.Fprintln(os.Stderr, "-bucket is required for the s3 backend")
			os.Exit(2)
		}
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "aws config: %v\n", err)
			os.Exit(1)
		}
		return alertcache.NewS3ArchiveBackend(s3.NewFromConfig(awsCfg), bucket)
	default:
		fmt.Fprintf(os.Stderr, "unknown archive backend %q\n", backend)
		os.Exit(2)
		return nil
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	backend := fs.String("backend", "filesystem", "archive backend: filesystem or s3")
	dir := fs.String("dir", "./archive", "base directory for the filesystem backend")
	bucket := fs.String("bucket", "", "bucket name for the s3 backend")
	_ = fs.Parse(args)

	ctx := context.Background()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	client := newRedisClient()
	defer client.Close()

	store := newArchiveBackend(ctx, *backend, *dir, *bucket)
	defer func() { _ = store.Close() }()

	archiver := alertcache.NewArchiver(client, store).WithLogger(logger)
	objectKey, err := archiver.Export(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot exported: %s\n", objectKey)
}

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	backend := fs.String("backend", "filesystem", "archive backend: filesystem or s3")
	dir := fs.String("dir", "./archive", "base directory for the filesystem backend")
	bucket := fs.String("bucket", "", "bucket name for the s3 backend")
	key := fs.String("key", "", "snapshot object key to restore")
	_ = fs.Parse(args)

	if *key == "" {
		fmt.Fprintln(os.Stderr, "-key is required for restore")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	client := newRedisClient()
	defer client.Close()

	store := newArchiveBackend(ctx, *backend, *dir, *bucket)
	defer func() { _ = store.Close() }()

	archiver := alertcache.NewArchiver(client, store).WithLogger(logger)
	restored, err := archiver.Restore(ctx, *key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot restored: %d records (run `alertcache warm` to rebuild indexes)\n", restored)
}
