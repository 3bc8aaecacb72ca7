package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/region-data-service/internal/adapter/http"
	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/fetch"
	"github.com/couchcryptid/region-data-service/internal/politics"
	"github.com/couchcryptid/region-data-service/internal/query"
	"github.com/couchcryptid/region-data-service/internal/refresh"
	"github.com/couchcryptid/region-data-service/internal/scoring"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakeQueries struct {
	rankedWith scoring.Weights
}

func (f *fakeQueries) Region(zip string) (domain.RegionRecord, error) {
	switch zip {
	case "75035":
		price := 410000.0
		return domain.RegionRecord{ZIP: zip, MedianSalePrice: &price}, nil
	case "bad":
		return domain.RegionRecord{}, fmt.Errorf("%w: %q", query.ErrInvalidZIP, zip)
	case "00000":
		return domain.RegionRecord{}, fmt.Errorf("store offline")
	}
	return domain.RegionRecord{}, domain.NewNotFoundError("region", zip)
}

func (f *fakeQueries) Regions() domain.Snapshot {
	return domain.Snapshot{Regions: map[string]domain.RegionRecord{"75035": {ZIP: "75035"}}}
}

func (f *fakeQueries) VotingProfile(zip string) (*politics.Profile, error) {
	if zip != "75035" {
		return nil, domain.NewNotFoundError("voting profile", zip)
	}
	return &politics.Profile{ZIP: zip, Overall: politics.Lean{Label: politics.LabelPoliticallyMixed}}, nil
}

func (f *fakeQueries) Scores(zip string) (*query.RegionScores, error) {
	if zip != "75035" {
		return nil, domain.NewNotFoundError("region", zip)
	}
	return &query.RegionScores{ZIP: zip, Criteria: map[scoring.Criterion]float64{scoring.CriterionSafety: 80}}, nil
}

func (f *fakeQueries) Rank(weights scoring.Weights) []scoring.Ranked {
	f.rankedWith = weights
	score := 80.0
	return []scoring.Ranked{{Rank: 1, ZIP: "75035", Score: &score}}
}

type fakeRefresher struct {
	results map[domain.Category]refresh.Result
}

func (f *fakeRefresher) Refresh(_ context.Context, c domain.Category) (refresh.Result, error) {
	res, ok := f.results[c]
	if !ok {
		return refresh.Result{}, domain.NewNotFoundError("refresher", string(c))
	}
	return res, nil
}

func newTestServer(readyErr error, q *fakeQueries, r *fakeRefresher) *httpadapter.Server {
	if q == nil {
		q = &fakeQueries{}
	}
	if r == nil {
		r = &fakeRefresher{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, q, r, slog.Default())
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(fmt.Errorf("cache not hydrated"), nil, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGetRegion(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/regions/75035", http.StatusOK},
		{"/api/regions/75000", http.StatusNotFound},
		{"/api/regions/bad", http.StatusBadRequest},
		{"/api/regions/00000", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/regions/75035", "")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 410000.0, body["medianSalePrice"])
	assert.NotContains(t, body, "rentMedian")
}

func TestListRegions(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/api/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap.Regions, "75035")
}

func TestVotingAndScores(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/regions/75035/voting", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p politics.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, politics.LabelPoliticallyMixed, p.Overall.Label)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/regions/75001/voting", "").Code)

	rec = do(t, srv, http.MethodGet, "/api/regions/75035/scores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"safety":80`)
}

func TestRefreshStatusMapping(t *testing.T) {
	r := &fakeRefresher{results: map[domain.Category]refresh.Result{
		domain.CategoryPrices: {OK: true, Category: domain.CategoryPrices, Updated: 3},
		domain.CategorySchools: {
			Category: domain.CategorySchools, Reason: "live fetching is disabled",
			Err: refresh.ErrFetchDisabled,
		},
		domain.CategoryParks: {
			Category: domain.CategoryParks, Reason: "fetch: upstream returned 503",
			Err: &refresh.StageError{Stage: refresh.StageFetch, Err: &fetch.StatusError{StatusCode: 503}},
		},
	}}
	srv := newTestServer(nil, nil, r)

	tests := []struct {
		category string
		code     int
	}{
		{"prices", http.StatusOK},
		{"schools", http.StatusForbidden},
		{"parks", http.StatusBadGateway},
		{"weather", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/refresh/"+tt.category, "")
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := do(t, srv, http.MethodPost, "/api/refresh/prices", "")
	var res refresh.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Updated)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/api/refresh/prices", "").Code)
}

func TestRefreshUnconfiguredIsBadRequest(t *testing.T) {
	r := &fakeRefresher{results: map[domain.Category]refresh.Result{
		domain.CategoryPrices: {Category: domain.CategoryPrices, Reason: "source URL is not configured", Err: refresh.ErrSourceNotConfigured},
	}}
	rec := do(t, newTestServer(nil, nil, r), http.MethodPost, "/api/refresh/prices", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestRank(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(nil, q, nil)

	rec := do(t, srv, http.MethodPost, "/api/rank", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, scoring.DefaultWeights(), q.rankedWith)

	rec = do(t, srv, http.MethodPost, "/api/rank", `{"weights":{"tolls":0,"lifestyle":3}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, q.rankedWith[scoring.CriterionTolls])
	assert.Equal(t, 3, q.rankedWith[scoring.CriterionLifestyle])
	assert.Equal(t, 3, q.rankedWith[scoring.CriterionSchoolQuality])

	var body struct {
		Regions []scoring.Ranked `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Regions, 1)
	assert.Equal(t, "75035", body.Regions[0].ZIP)
}

func TestRankRejectsBadInput(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	for _, body := range []string{`{"weights":{"tolls":4}}`, `{"weights":{"parking":1}}`, `not json`} {
		rec := do(t, srv, http.MethodPost, "/api/rank", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
