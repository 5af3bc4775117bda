package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/lakeoracle/oracle/lake/api/config"
	"github.com/lakeoracle/oracle/lake/api/handlers"
	"github.com/lakeoracle/oracle/lake/api/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/chat"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/logger"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
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
	flag.Parse()

	log := logger.New(*verboseFlag)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsErrCh := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				metricsErrCh <- fmt.Errorf("failed to start metrics listener: %w", err)
				return
			}
			log.Info("api: metrics listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsErrCh <- http.Serve(listener, mux)
		}()
	}

	var (
		completer chat.Completer = chat.OfflineCompleter{}
		lister    chat.ModelLister
	)
	if cfg.OpenAIAPIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client := openai.NewClient(opts...)
		completer = chat.NewOpenAICompleter(client)
		lister = chat.NewOpenAIModelLister(client)
	} else {
		log.Warn("api: OPENAI_API_KEY not set, replies will use the fallback text")
	}

	source, ready, closeSource, err := newCatalogSource(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	catalogs, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: log, Source: source, TTL: cfg.CatalogCacheTTL})
	if err != nil {
		return err
	}
	defer catalogs.Close()
	go func() {
		if _, err := catalogs.Warm(ctx); err != nil {
			log.Warn("api: catalog warmup failed", "error", err)
		}
	}()

	store, err := chat.NewStore(chat.StoreConfig{Logger: log, Completer: completer, IdleTTL: cfg.SessionIdleTTL})
	if err != nil {
		return err
	}
	go store.Run(ctx, cfg.CleanupInterval)

	h, err := handlers.New(handlers.Config{
		Logger:         log,
		Store:          store,
		Models:         chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: log, Lister: lister, TTL: cfg.ModelsCacheTTL}),
		Catalogs:       catalogs,
		AllowedOrigins: cfg.AllowedOrigins,
		Ready:          ready,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("api: http listening", "address", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("api: shutting down")
	case err := <-serverErrCh:
		return fmt.Errorf("http server: %w", err)
	case err := <-metricsErrCh:
		log.Error("api: metrics server error causing shutdown", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	log.Info("api: stopped")
	return nil
}

// newCatalogSource lists catalogs live from the engine when one is configured, otherwise from YAML.
func newCatalogSource(ctx context.Context, log *slog.Logger, cfg config.Config) (chat.CatalogSource, func(context.Context) error, func(), error) {
	if cfg.EngineDriver == "" {
		if cfg.CatalogFile != "" {
			c, err := chat.LoadCatalogFile(cfg.CatalogFile)
			if err != nil {
				return nil, nil, nil, err
			}
			log.Info("api: using catalog file", "path", cfg.CatalogFile)
			return c, nil, func() {}, nil
		}
		return chat.DefaultCatalog(), nil, func() {}, nil
	}

	driver, err := engine.ParseDriver(cfg.EngineDriver)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(ctx, engine.Config{Logger: log, Driver: driver, DSN: cfg.EngineDSN})
	if err != nil {
		return nil, nil, nil, err
	}
	closeEngine := func() {
		if err := eng.Close(); err != nil {
			log.Error("api: failed to close engine", "error", err)
		}
	}

	var dialect schema.Dialect
	if cfg.Dialect != "" {
		if dialect, err = schema.ParseDialect(cfg.Dialect); err != nil {
			closeEngine()
			return nil, nil, nil, err
		}
	}
	inspector, err := schema.New(schema.Config{Logger: log, Engine: eng, Dialect: dialect})
	if err != nil {
		closeEngine()
		return nil, nil, nil, err
	}
	log.Info("api: listing catalogs from engine", "driver", driver, "catalogs", cfg.LiveCatalogs)
	return chat.NewInspectorCatalog(inspector, cfg.LiveCatalogs), eng.Ping, closeEngine, nil
}
