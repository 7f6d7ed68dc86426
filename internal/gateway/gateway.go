// Package gateway exposes the durable store over a JSON HTTP API with a
// stale-while-revalidate cache in front of the read path.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aivexl/tamuu-sub000/internal/cache"
	"github.com/aivexl/tamuu-sub000/internal/schema"
	"github.com/aivexl/tamuu-sub000/internal/store"
)

// Server routes API requests to the store, keeping the cache coherent on
// every write path.
type Server struct {
	store     *store.Store
	cache     *cache.Tiered
	policy    cache.Policy
	validator *schema.Validator
	logger    *slog.Logger
	batchMax  int
	hub       *hub
	router    *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPolicy overrides the cache TTL policy.
func WithPolicy(p cache.Policy) Option {
	return func(s *Server) { s.policy = p }
}

// WithBatchLimit overrides the maximum item count per batch call.
func WithBatchLimit(n int) Option {
	return func(s *Server) { s.batchMax = n }
}

// New creates a gateway over the given store and cache tier.
func New(st *store.Store, tiered *cache.Tiered, opts ...Option) (*Server, error) {
	validator, err := schema.Default()
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:     st,
		cache:     tiered,
		policy:    cache.DefaultPolicy(),
		validator: validator,
		logger:    slog.Default(),
		batchMax:  50,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close shuts down the websocket hub.
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	r.HandleFunc("/documents/slug/{slug}", s.handleGetBySlug).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", s.handleUpdateDocument).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/documents/{id}/publish", s.handlePublish).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}/unpublish", s.handleUnpublish).Methods(http.MethodPost)

	r.HandleFunc("/documents/{id}/sections/order", s.handleSetSectionOrder).Methods(http.MethodPut)
	r.HandleFunc("/documents/{id}/sections/{key}", s.handleUpsertSection).Methods(http.MethodPut)
	r.HandleFunc("/documents/{id}/sections/{key}", s.handleDeleteSection).Methods(http.MethodDelete)
	r.HandleFunc("/documents/{id}/sections/{key}/elements", s.handleCreateElement).Methods(http.MethodPost)

	r.HandleFunc("/documents/{id}/elements/{elementID}/z", s.handleSwapElementZ).Methods(http.MethodPut)
	r.HandleFunc("/documents/{id}/elements/{elementID}", s.handleUpdateElement).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/documents/{id}/elements/{elementID}", s.handleDeleteElement).Methods(http.MethodDelete)

	r.HandleFunc("/batch", s.handleBatch).Methods(http.MethodPost)

	r.HandleFunc("/ws/documents/{id}", s.handleWatch).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
