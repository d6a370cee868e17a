package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"listing_hunter/backend"
	"listing_hunter/config"
	"listing_hunter/models"
	"listing_hunter/services"
)

type Ingester interface {
	Ingest(ctx context.Context, source string, items []models.RawRecord) models.IngestResult
}

type DatasetFetcher interface {
	Configured() bool
	FetchItems(ctx context.Context, datasetID string) ([]models.RawRecord, error)
}

type RunProxy interface {
	Configured() bool
	Timeout() time.Duration
	Trigger(ctx context.Context, body map[string]any) (*backend.ProxiedResponse, error)
	Status(ctx context.Context) (*backend.ProxiedResponse, error)
}

type ListingReader interface {
	List(ctx context.Context, filter services.ListingFilter) (*services.ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error
	Counts(ctx context.Context) services.Counts
}

type DigestRunner interface {
	RunDigest(ctx context.Context) (models.DigestResult, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Ingest   Ingester
	Datasets DatasetFetcher
	Backend  RunProxy
	Listings ListingReader
	Digest   DigestRunner
}

type Server struct {
	cfg      *config.Config
	deps     Deps
	router   *mux.Router
	validate *validator.Validate
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		router:   mux.NewRouter(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(recoverMiddleware, logMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/apify/webhook", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/api/apify/webhook/{slug}", s.handleWebhook).Methods(http.MethodPost)

	r.HandleFunc("/api/run", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/api/run/status", s.handleRunStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/listings", s.handleListListings).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/counts", s.handleCounts).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/{id}", s.handleGetListing).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/{id}", s.handleUpdateStatus).Methods(http.MethodPatch)

	r.HandleFunc("/api/cron/notify", s.handleCronNotify).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// secretEqual is false when either side is empty.
func secretEqual(got, expected string) bool {
	if got == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
