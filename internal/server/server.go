// Package server exposes the resolver as an HTTP endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bugmaschine/vembed/internal/metrics"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/pkg/telemetry"
	"github.com/go-chi/chi/v5"
)

const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	maxRequestBody         = 64 << 10
)

// Resolver is satisfied by *resolver.Resolver and *service.Service.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*resolver.Result, error)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ResolveTimeout bounds a single resolution; zero leaves it to the fetch client.
	ResolveTimeout time.Duration
}

type Server struct {
	resolver Resolver
	opts     Options
}

func New(r Resolver, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	return &Server{resolver: r, opts: opts}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors)
	r.Use(requestLogger)
	r.Use(telemetry.Recoverer(func(w http.ResponseWriter, r *http.Request, err error) {
		writeFailure(w, http.StatusInternalServerError, err.Error(), "")
	}))
	r.Use(metrics.Middleware)

	r.Post("/", s.handleResolve)
	r.Post("/resolve", s.handleResolve)
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
