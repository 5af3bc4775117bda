package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/lakeoracle/oracle/lake/pkg/duck"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/logger"
	"github.com/lakeoracle/oracle/lake/pkg/querier"
	"github.com/lakeoracle/oracle/lake/pkg/querier/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/querier/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultHTTPListenAddr     = "0.0.0.0:3011"
	defaultPostgresListenAddr = "0.0.0.0:5432"
	defaultReadHeaderTimeout  = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultMetricsAddr        = "0.0.0.0:8080"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	httpListenAddrFlag := flag.String("http-listen-addr", defaultHTTPListenAddr, "HTTP health listen address")
	postgresListenAddrFlag := flag.String("postgres-listen-addr", defaultPostgresListenAddr, "Postgres wire protocol listen address (empty disables)")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "server shutdown timeout")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "address to listen on for prometheus metrics (empty disables)")
	maxRowsFlag := flag.Int("max-rows", executor.DefaultMaxRows, "row cap for statements without a LIMIT")

	duckPathFlag := flag.String("duckdb-path", "", "DuckDB database file; ignored when a DuckLake catalog URI is set (or set DUCKDB_PATH)")
	lakeCatalogNameFlag := flag.String("ducklake-catalog-name", "lake", "name of the DuckLake catalog (or set DUCKLAKE_CATALOG_NAME)")
	lakeCatalogURIFlag := flag.String("ducklake-catalog-uri", "", "URI of the DuckLake catalog (or set DUCKLAKE_CATALOG_URI)")
	lakeStorageURIFlag := flag.String("ducklake-storage-uri", "", "URI of the DuckLake data directory (or set DUCKLAKE_STORAGE_URI)")

	flag.Parse()

	overrideFromEnv(duckPathFlag, "DUCKDB_PATH")
	overrideFromEnv(lakeCatalogNameFlag, "DUCKLAKE_CATALOG_NAME")
	overrideFromEnv(lakeCatalogURIFlag, "DUCKLAKE_CATALOG_URI")
	overrideFromEnv(lakeStorageURIFlag, "DUCKLAKE_STORAGE_URI")

	log := logger.New(*verboseFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				metricsErrCh <- fmt.Errorf("failed to start metrics listener: %w", err)
				return
			}
			log.Info("server: metrics listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsErrCh <- http.Serve(listener, mux)
		}()
	}

	var db duck.DB
	if *lakeCatalogURIFlag != "" {
		s3, err := duck.PrepareS3ConfigForStorageURI(ctx, log, *lakeStorageURIFlag)
		if err != nil {
			return fmt.Errorf("failed to prepare S3 config: %w", err)
		}
		lake, err := duck.NewLake(ctx, duck.LakeConfig{
			Logger:      log,
			CatalogName: *lakeCatalogNameFlag,
			CatalogURI:  *lakeCatalogURIFlag,
			StorageURI:  *lakeStorageURIFlag,
			S3:          s3,
			ReadOnly:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to attach DuckLake: %w", err)
		}
		db = lake
		log.Info("querier: using DuckLake", "catalog", *lakeCatalogNameFlag,
			"catalog_uri", duck.RedactedCatalogURI(*lakeCatalogURIFlag),
			"storage_uri", duck.RedactedStorageURI(*lakeStorageURIFlag))
	} else {
		var err error
		db, err = duck.NewDB(ctx, *duckPathFlag, log)
		if err != nil {
			return fmt.Errorf("failed to open DuckDB: %w", err)
		}
		log.Info("querier: using DuckDB", "path", *duckPathFlag)
	}

	eng, err := engine.New(ctx, engine.Config{Logger: log, Driver: engine.DriverDuckDB, DuckDB: db})
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Error("querier: failed to close engine", "error", err)
		}
	}()

	exec, err := executor.New(executor.Config{Logger: log, Engine: eng})
	if err != nil {
		return err
	}

	httpListener, err := net.Listen("tcp", *httpListenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to create http listener: %w", err)
	}
	defer httpListener.Close()

	var postgresListener net.Listener
	if *postgresListenAddrFlag != "" {
		postgresListener, err = net.Listen("tcp", *postgresListenAddrFlag)
		if err != nil {
			return fmt.Errorf("failed to create postgres listener: %w", err)
		}
		defer postgresListener.Close()
	} else {
		log.Info("querier: postgres wire protocol disabled")
	}

	srv, err := server.New(server.Config{
		HTTPListener:      httpListener,
		PostgresListener:  postgresListener,
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
		ShutdownTimeout:   *shutdownTimeoutFlag,
		DefaultSchema:     db.Schema(),
		QuerierConfig: querier.Config{
			Logger:   log,
			Executor: exec,
			Pinger:   eng,
			MaxRows:  *maxRowsFlag,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create querier server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- srv.Run(ctx) }()

	select {
	case err := <-serverErrCh:
		return err
	case err := <-metricsErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}
}

func overrideFromEnv(flagValue *string, key string) {
	if v := os.Getenv(key); v != "" {
		*flagValue = v
	}
}
