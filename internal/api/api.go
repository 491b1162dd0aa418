package api

import (
	"chat-widget-backend/internal/jwt"
	"chat-widget-backend/internal/queue"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type Options struct {
	ListenAddr     string
	Queue          *queue.RequestQueueManager
	Log            zerolog.Logger
	AllowedOrigins []string
	Tokens         *jwt.Manager
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	allowedOrigins      []string
	tokens              *jwt.Manager
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
	log                 zerolog.Logger
}

func NewAPIServer(opts Options, registrars ...RouteRegistrar) *APIServer {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &APIServer{
		listenAddr:          opts.ListenAddr,
		requestQueueManager: opts.Queue,
		allowedOrigins:      opts.AllowedOrigins,
		tokens:              opts.Tokens,
		routeRegistrars:     registrars,
		metrics:             newMetrics(reg, opts.ListenAddr, opts.Queue),
		log:                 opts.Log.With().Str("listen_addr", opts.ListenAddr).Logger(),
	}
}

// Routes builds the instrumented handler with every registrar applied.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("GET /metrics", s.metrics.metricsHandler())

	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Msgf("Server listening on http://localhost%s", s.listenAddr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info().Msg("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *APIServer) Tokens() *jwt.Manager {
	return s.tokens
}

func (s *APIServer) Logger() zerolog.Logger {
	return s.log
}
