package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/politics"
	"github.com/couchcryptid/region-data-service/internal/query"
	"github.com/couchcryptid/region-data-service/internal/refresh"
	"github.com/couchcryptid/region-data-service/internal/scoring"
)

// Queries is the read API served under /api/regions and /api/rank.
type Queries interface {
	Region(zip string) (domain.RegionRecord, error)
	Regions() domain.Snapshot
	VotingProfile(zip string) (*politics.Profile, error)
	Scores(zip string) (*query.RegionScores, error)
	Rank(weights scoring.Weights) []scoring.Ranked
}

// Refresher triggers one category refresh.
type Refresher interface {
	Refresh(ctx context.Context, category domain.Category) (refresh.Result, error)
}

// Server exposes the region API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	queries    Queries
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the operational and API routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, queries Queries, refresher Refresher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// Refresh requests block on upstream retries.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		queries:   queries,
		refresher: refresher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /api/regions/{zip}", s.handleRegion)
	mux.HandleFunc("GET /api/regions/{zip}/voting", s.handleVoting)
	mux.HandleFunc("GET /api/regions/{zip}/scores", s.handleScores)
	mux.HandleFunc("POST /api/refresh/{category}", s.handleRefresh)
	mux.HandleFunc("POST /api/rank", s.handleRank)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.Regions())
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	rec, err := s.queries.Region(r.PathValue("zip"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleVoting(w http.ResponseWriter, r *http.Request) {
	p, err := s.queries.VotingProfile(r.PathValue("zip"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	sc, err := s.queries.Scores(r.PathValue("zip"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody(err))
		return
	}
	res, err := s.refresher.Refresh(r.Context(), category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, refreshStatus(res), res)
}

// rankRequest carries per-criterion weight overrides; omitted criteria keep
// their defaults.
type rankRequest struct {
	Weights map[string]int `json:"weights"`
}

type rankResponse struct {
	Weights scoring.Weights  `json:"weights"`
	Regions []scoring.Ranked `json:"regions"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	weights, err := scoring.ResolveWeights(req.Weights)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Weights: weights, Regions: s.queries.Rank(weights)})
}

// refreshStatus maps a refresh outcome to an HTTP status. Configuration
// failures are the caller's to fix; upstream failures are a bad gateway.
func refreshStatus(res refresh.Result) int {
	switch {
	case res.OK:
		return http.StatusOK
	case errors.Is(res.Err, refresh.ErrFetchDisabled):
		return http.StatusForbidden
	case errors.Is(res.Err, refresh.ErrSourceNotConfigured):
		return http.StatusBadRequest
	case refresh.StageOf(res.Err) == refresh.StageMerge:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidZIP):
		writeJSON(w, http.StatusBadRequest, errorBody(err))
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
