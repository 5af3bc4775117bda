package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/lakeoracle/oracle/lake/pkg/agent/tools"
	"github.com/lakeoracle/oracle/lake/pkg/duck"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/logger"
	"github.com/lakeoracle/oracle/lake/pkg/mcp/server"
	"github.com/lakeoracle/oracle/lake/pkg/mcp/server/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr        = "0.0.0.0:3012"
	defaultMetricsAddr       = "0.0.0.0:8081"
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
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
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "MCP streamable HTTP listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "address to listen on for prometheus metrics (empty disables)")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "server shutdown timeout")
	allToolsFlag := flag.Bool("all-tools", false, "serve every lake tool instead of the default four")
	tokensFlag := flag.String("tokens", "", "comma-separated bearer tokens required on the MCP endpoint (or set MCP_TOKENS)")

	engineFlag := flag.String("engine", string(engine.DriverDuckDB), "engine driver: duckdb, postgres or clickhouse (or set LAKE_ENGINE)")
	dsnFlag := flag.String("dsn", "", "engine DSN; a DuckDB path or empty for in-memory (or set LAKE_DSN)")
	dialectFlag := flag.String("dialect", "", "metadata dialect; defaults from the engine (or set LAKE_DIALECT)")

	lakeCatalogNameFlag := flag.String("ducklake-catalog-name", "lake", "name of the DuckLake catalog (or set DUCKLAKE_CATALOG_NAME)")
	lakeCatalogURIFlag := flag.String("ducklake-catalog-uri", "", "URI of the DuckLake catalog; attaches it when the engine is duckdb (or set DUCKLAKE_CATALOG_URI)")
	lakeStorageURIFlag := flag.String("ducklake-storage-uri", "", "URI of the DuckLake data directory (or set DUCKLAKE_STORAGE_URI)")

	flag.Parse()

	overrideFromEnv(tokensFlag, "MCP_TOKENS")
	overrideFromEnv(engineFlag, "LAKE_ENGINE")
	overrideFromEnv(dsnFlag, "LAKE_DSN")
	overrideFromEnv(dialectFlag, "LAKE_DIALECT")
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

	driver, err := engine.ParseDriver(*engineFlag)
	if err != nil {
		return err
	}
	engCfg := engine.Config{Logger: log, Driver: driver, DSN: *dsnFlag}
	if driver == engine.DriverDuckDB && *lakeCatalogURIFlag != "" {
		lake, err := openLake(ctx, log, *lakeCatalogNameFlag, *lakeCatalogURIFlag, *lakeStorageURIFlag)
		if err != nil {
			return err
		}
		engCfg.DuckDB = lake
	}
	eng, err := engine.New(ctx, engCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Error("server: failed to close engine", "error", err)
		}
	}()

	var dialect schema.Dialect
	if *dialectFlag != "" {
		if dialect, err = schema.ParseDialect(*dialectFlag); err != nil {
			return err
		}
	}
	exec, err := executor.New(executor.Config{Logger: log, Engine: eng})
	if err != nil {
		return err
	}
	inspector, err := schema.New(schema.Config{Logger: log, Engine: eng, Dialect: dialect})
	if err != nil {
		return err
	}
	registry, err := tools.NewRegistry(tools.Config{Logger: log, Executor: exec, Inspector: inspector, AllTools: *allToolsFlag})
	if err != nil {
		return err
	}
	log.Info("server: serving lake tools", "tools", registry.Names(), "dialect", inspector.Dialect().Name())

	srv, err := server.New(server.Config{
		Logger:            log,
		Tools:             registry,
		Ready:             eng.Ping,
		Version:           version,
		ListenAddr:        *listenAddrFlag,
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
		ShutdownTimeout:   *shutdownTimeoutFlag,
		AllowedTokens:     splitTokens(*tokensFlag),
	})
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
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

func openLake(ctx context.Context, log *slog.Logger, name, catalogURI, storageURI string) (*duck.Lake, error) {
	s3, err := duck.PrepareS3ConfigForStorageURI(ctx, log, storageURI)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare S3 config: %w", err)
	}
	lake, err := duck.NewLake(ctx, duck.LakeConfig{
		Logger:      log,
		CatalogName: name,
		CatalogURI:  catalogURI,
		StorageURI:  storageURI,
		S3:          s3,
		ReadOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach DuckLake: %w", err)
	}
	log.Info("server: using DuckLake", "catalog", name,
		"catalog_uri", duck.RedactedCatalogURI(catalogURI),
		"storage_uri", duck.RedactedStorageURI(storageURI))
	return lake, nil
}

func splitTokens(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func overrideFromEnv(flagValue *string, key string) {
	if v := os.Getenv(key); v != "" {
		*flagValue = v
	}
}
