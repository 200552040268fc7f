// Package web provides the visit-desk REST API server.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/visit-desk/internal/auth"
	"github.com/evcraddock/visit-desk/internal/logging"
	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

const shutdownTimeout = 10 * time.Second

// Options tunes a Server. Zero values pick the defaults.
type Options struct {
	RateLimitPerMinute int
	RateLimitBurst     int

	// Now is the server clock; visits and reviews are judged against it.
	Now func() time.Time
	// Location is the calendar visits are grouped and bucketed in.
	Location *time.Location
}

// Server is the REST API HTTP server.
type Server struct {
	visits  *visit.Repository
	reviews *review.Repository
	apiKeys *auth.APIKeyStore

	now     func() time.Time
	loc     *time.Location
	handler http.Handler
}

// NewServer creates an API server over the given database.
func NewServer(db *sql.DB, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Server{
		visits:  visit.NewRepository(db).WithClock(opts.Now),
		reviews: review.NewRepository(db),
		apiKeys: auth.NewAPIKeyStore(db),
		now:     opts.Now,
		loc:     opts.Location,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "not found", codeNotFound, http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "method not allowed", codeBadRequest, http.StatusMethodNotAllowed)
	})

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/visits", s.apiListVisits).Methods(http.MethodGet)
	api.HandleFunc("/visits/{id:[0-9]+}", s.apiGetVisit).Methods(http.MethodGet)
	api.HandleFunc("/visits/{id:[0-9]+}", s.apiUpdateVisit).Methods(http.MethodPatch)
	api.HandleFunc("/visits/{id:[0-9]+}/review", s.apiWriteReview).Methods(http.MethodPost)
	api.HandleFunc("/reviews/{id:[0-9]+}", s.apiGetReview).Methods(http.MethodGet)
	api.HandleFunc("/reviews/{id:[0-9]+}", s.apiDeleteReview).Methods(http.MethodDelete)
	api.HandleFunc("/reviews/{id:[0-9]+}/reply", s.apiReplyToReview).Methods(http.MethodPost)
	api.HandleFunc("/report-categories", s.apiReportCategories).Methods(http.MethodGet)

	authn := auth.NewAuthenticator(s.apiKeys, opts.RateLimitPerMinute, opts.RateLimitBurst)
	s.handler = logging.RequestLogger(authn.RequireAPIKey(router))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting api server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down api server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
