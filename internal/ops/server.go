// Package ops serves the operational endpoints of a long running simulation:
// a health probe and the Prometheus scrape endpoint.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	srv *http.Server
}

// NewRouter wires /health and, when metrics is non-nil, /metrics.
// A nil db reports the store as "memory".
func NewRouter(db Pinger, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(Recovery, Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "store": "memory"}
		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			status["store"] = "postgres"
			if err := db.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	return r
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in a goroutine. Listen errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Starting ops server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server stopped")
		}
	}()
}

// Shutdown gives in-flight scrapes five seconds to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
