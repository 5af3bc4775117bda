package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/lakeoracle/oracle/lake/pkg/querier"
)

// Server exposes a querier over the Postgres wire protocol, with HTTP health endpoints.
type Server struct {
	log              *slog.Logger
	cfg              Config
	querier          *querier.Querier
	httpSrv          *http.Server
	httpListener     net.Listener
	psqlSrv          *wire.Server
	postgresListener net.Listener
}

func New(cfg Config) (*Server, error) {
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	q, err := querier.New(cfg.QuerierConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create querier: %w", err)
	}

	s := &Server{
		log:          cfg.QuerierConfig.Logger,
		cfg:          cfg,
		querier:      q,
		httpListener: cfg.HTTPListener,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeStatus(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", s.readyzHandler)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if cfg.PostgresListener != nil {
		if len(cfg.PostgresAccounts) > 0 {
			s.log.Info("server: postgres authentication enabled", "account_count", len(cfg.PostgresAccounts))
		} else {
			s.log.Info("server: postgres authentication disabled")
		}
		psqlSrv, err := wire.NewServer(
			s.queryHandler,
			wire.Logger(s.log),
			wire.SessionAuthStrategy(newAuthStrategy(s.log, cfg.PostgresAccounts)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres wire server: %w", err)
		}
		s.psqlSrv = psqlSrv
		s.postgresListener = cfg.PostgresListener
	}

	return s, nil
}

// Handler returns the HTTP health handler.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := s.httpSrv.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()
	s.log.Info("server: http listening", "address", s.httpListener.Addr())

	if s.psqlSrv != nil {
		go func() {
			if err := s.psqlSrv.Serve(s.postgresListener); err != nil {
				errCh <- fmt.Errorf("failed to serve postgres: %w", err)
			}
		}()
		s.log.Info("server: postgres wire protocol listening", "address", s.postgresListener.Addr())
	}

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}
		if s.psqlSrv != nil {
			if err := s.psqlSrv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown postgres wire server: %w", err)
			}
		}
		s.log.Info("server: shutdown complete")
		return nil
	case err := <-errCh:
		s.log.Error("server: serve error", "error", err)
		return err
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.querier.Ready(r.Context()) {
		s.writeStatus(w, http.StatusServiceUnavailable, "engine not ready")
		return
	}
	s.writeStatus(w, http.StatusOK, "ok")
}

func (s *Server) writeStatus(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body + "\n")); err != nil {
		s.log.Error("server: failed to write response", "error", err)
	}
}
