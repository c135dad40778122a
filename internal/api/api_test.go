// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/cache"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/database"
	"github.com/shelfwise/shelfwise/internal/importer"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// calls under CI resource pressure can hang.
var testDBSemaphore = make(chan struct{}, 1)

type testServer struct {
	handler *Handler
	router  http.Handler
	db      *database.DB
	state   *recommend.State
	cfg     *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Database:  config.DatabaseConfig{Path: "", MaxMemory: "512MB", Threads: 2},
		Data:      config.DataConfig{Dir: "", DefaultRows: 0},
		Recommend: config.RecommendConfig{DefaultK: 10, MaxK: 200, DefaultTopN: 10, MaxTopN: 100},
		Cache:     config.CacheConfig{Enabled: true, Dir: "", TTL: time.Minute},
		API:       config.APIConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Security:  config.SecurityConfig{RateLimitDisabled: true},
	}
}

func setupTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	if cfg == nil {
		cfg = testConfig()
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("db.Close: %v", err)
		}
	})

	state := recommend.NewState(zerolog.Nop())
	engine, err := recommend.NewEngine(state, recommend.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var recCache *cache.RecommendationCache
	if cfg.Cache.Enabled {
		recCache, err = cache.New(&cfg.Cache)
		if err != nil {
			t.Fatalf("cache.New: %v", err)
		}
		t.Cleanup(func() {
			if err := recCache.Close(); err != nil {
				t.Errorf("cache.Close: %v", err)
			}
		})
	}

	imp := importer.NewImporter(db, zerolog.Nop())
	h := NewHandler(cfg, db, state, engine, imp, recCache)

	return &testServer{handler: h, router: h.Router(), db: db, state: state, cfg: cfg}
}

// seedCatalogue writes the three-user fixture: user 1 and 2 overlap on
// two books, user 2 alone rated the third, user 3 only rated the third.
func (ts *testServer) seedCatalogue(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	books := []recommend.Book{
		{ISBN: "1111", Title: "First Book", Author: "Author A", Year: 1999, Publisher: "Pub A"},
		{ISBN: "2222", Title: "Second Book", Author: "Author B", Year: 2004, Publisher: "Pub B"},
		{ISBN: "3333", Title: "Third Book", Author: "Author C", Year: 2011, Publisher: "Pub C"},
	}
	if _, err := ts.db.UpsertBooks(ctx, books); err != nil {
		t.Fatalf("UpsertBooks: %v", err)
	}

	users := []database.User{
		{ID: 1, Location: "lisbon, portugal"},
		{ID: 2, Location: "porto, portugal"},
		{ID: 3, Location: "madrid, spain"},
	}
	if _, err := ts.db.UpsertUsers(ctx, users); err != nil {
		t.Fatalf("UpsertUsers: %v", err)
	}

	triples := []recommend.RatingTriple{
		{UserID: 1, ISBN: "1111", Rating: 8},
		{UserID: 1, ISBN: "2222", Rating: 6},
		{UserID: 2, ISBN: "1111", Rating: 9},
		{UserID: 2, ISBN: "2222", Rating: 7},
		{UserID: 2, ISBN: "3333", Rating: 5},
		{UserID: 3, ISBN: "3333", Rating: 9},
	}
	if _, err := ts.db.UpsertRatings(ctx, triples); err != nil {
		t.Fatalf("UpsertRatings: %v", err)
	}
}

// loadModel installs the seeded catalogue as the live model without
// going through the HTTP load endpoint.
func (ts *testServer) loadModel(t *testing.T) {
	t.Helper()
	if _, err := ts.state.LoadFrom(context.Background(), ts.db, 0); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope unmarshals the standard envelope with Data decoded
// into dst.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, dst any) *APIResponse {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
		Meta    *APIMeta        `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding envelope: %v\nbody: %s", err, rec.Body.String())
	}
	if dst != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, dst); err != nil {
			t.Fatalf("decoding data: %v\ndata: %s", err, raw.Data)
		}
	}
	return &APIResponse{Success: raw.Success, Error: raw.Error, Meta: raw.Meta}
}

func TestHealth_DegradedBeforeLoad(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var health HealthStatus
	env := decodeEnvelope(t, rec, &health)
	if !env.Success {
		t.Fatal("expected success envelope")
	}
	if health.Status != "degraded" || !health.DatabaseConnected || health.DatasetLoaded {
		t.Fatalf("health = %+v", health)
	}
}

func TestHealth_LiveAndReady(t *testing.T) {
	ts := setupTestServer(t, nil)

	if rec := ts.do(t, http.MethodGet, "/api/v1/health/live", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("live status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/health/ready", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}
}

func TestDatasetStatus_NotLoaded(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/datasets/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status recommend.Status
	decodeEnvelope(t, rec, &status)
	if status.Loaded {
		t.Fatal("expected loaded=false before any load")
	}
}

func TestRecommendations_NotLoaded(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		RecommendationsRequest{UserID: 1}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec, nil)
	if env.Error == nil || env.Error.Code != ErrCodeDatasetNotLoaded {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestRecommendations_ValidationError(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		map[string]any{"k": 5}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec, nil)
	if env.Error == nil || env.Error.Code != ErrCodeValidation {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestRecommendations_EndToEnd(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)
	ts.loadModel(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		RecommendationsRequest{UserID: 1, K: 2, TopN: 5}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result RecommendationsResult
	decodeEnvelope(t, rec, &result)
	if result.Cached {
		t.Fatal("first call must not be cached")
	}
	if result.Count != 1 || len(result.Recommendations) != 1 {
		t.Fatalf("result = %+v", result)
	}
	got := result.Recommendations[0]
	if got.ISBN != "3333" || got.Title != "Third Book" || got.PredictedRating != 5 {
		t.Fatalf("recommendation = %+v", got)
	}

	// Same parameters again must come from the cache.
	rec = ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		RecommendationsRequest{UserID: 1, K: 2, TopN: 5}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	decodeEnvelope(t, rec, &result)
	if !result.Cached {
		t.Fatal("second call must be cached")
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].ISBN != "3333" {
		t.Fatalf("cached result = %+v", result)
	}
}

func TestRecommendations_UnknownUser(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)
	ts.loadModel(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		RecommendationsRequest{UserID: 999}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec, nil)
	if env.Error == nil || env.Error.Code != ErrCodeUnknownUser {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestDiagnostics_Endpoints(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)
	ts.loadModel(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/validate-recommendations",
		ValidateRequest{UserID: 1, TopN: 5}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var validation recommend.ValidationReport
	decodeEnvelope(t, rec, &validation)
	if validation.UserID != 1 {
		t.Fatalf("validation = %+v", validation)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/datasets/explain-recommendations",
		ExplainRequest{UserID: 1, TopN: 5, ShowSimilarUsers: 3}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("explain status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/datasets/diagnose-user",
		DiagnoseRequest{UserID: 1}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("diagnose status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var diagnosis recommend.DiagnosisReport
	decodeEnvelope(t, rec, &diagnosis)
	if diagnosis.UserID != 1 {
		t.Fatalf("diagnosis = %+v", diagnosis)
	}
}

func TestDatasetUsers_Sample(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/datasets/users?limit=2", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var data struct {
		UserIDs []int `json:"user_ids"`
		Count   int   `json:"count"`
	}
	decodeEnvelope(t, rec, &data)
	if data.Count != 2 || len(data.UserIDs) != 2 || data.UserIDs[0] != 1 {
		t.Fatalf("data = %+v", data)
	}
}

func TestBooks_GetAndNotFound(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/books/1111", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var book recommend.Book
	decodeEnvelope(t, rec, &book)
	if book.Title != "First Book" || book.Author != "Author A" {
		t.Fatalf("book = %+v", book)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/books/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBooks_SearchAndStats(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/books?search=second", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list struct {
		Books []recommend.Book `json:"books"`
		Count int              `json:"count"`
	}
	decodeEnvelope(t, rec, &list)
	if list.Count != 1 || list.Books[0].ISBN != "2222" {
		t.Fatalf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/books/1111/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats database.BookRatingStats
	decodeEnvelope(t, rec, &stats)
	if stats.RatingCount != 2 || stats.AvgRating != 8.5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBooks_TopRated(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/books/top-rated?min_ratings=2&limit=10", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Books []database.BookRatingStats `json:"books"`
	}
	decodeEnvelope(t, rec, &data)
	if len(data.Books) != 3 || data.Books[0].ISBN != "1111" {
		t.Fatalf("books = %+v", data.Books)
	}
}

func TestUsers_StatsAndMostActive(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/2/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats database.UserRatingStats
	decodeEnvelope(t, rec, &stats)
	if stats.RatingCount != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/users/999/stats", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/users/most-active?limit=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var active struct {
		Users []database.ActiveUser `json:"users"`
	}
	decodeEnvelope(t, rec, &active)
	if len(active.Users) != 1 || active.Users[0].UserID != 2 {
		t.Fatalf("active = %+v", active)
	}
}

func TestStats_OverviewAndDistribution(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/stats/overview", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var overview database.OverviewStats
	decodeEnvelope(t, rec, &overview)
	if overview.Books != 3 || overview.Ratings != 6 || overview.DistinctRaters != 3 {
		t.Fatalf("overview = %+v", overview)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/stats/rating-distribution", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var dist struct {
		Distribution [11]int `json:"distribution"`
	}
	decodeEnvelope(t, rec, &dist)
	if dist.Distribution[9] != 2 || dist.Distribution[5] != 1 {
		t.Fatalf("distribution = %v", dist.Distribution)
	}
}

func TestAddRating_InvalidatesCache(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.seedCatalogue(t)
	ts.loadModel(t)

	// Prime the cache.
	body := RecommendationsRequest{UserID: 1, K: 2, TopN: 5}
	ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations", body, nil)

	rating := 7
	rec := ts.do(t, http.MethodPost, "/api/v1/ratings",
		AddRatingRequest{UserID: 1, ISBN: "3333", Rating: &rating}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations", body, nil)
	var result RecommendationsResult
	decodeEnvelope(t, rec, &result)
	if result.Cached {
		t.Fatal("cache entry must be dropped after the user writes a rating")
	}
}

func TestAddRating_RejectsOutOfRange(t *testing.T) {
	ts := setupTestServer(t, nil)

	rating := 11
	rec := ts.do(t, http.MethodPost, "/api/v1/ratings",
		AddRatingRequest{UserID: 1, ISBN: "1111", Rating: &rating}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestAdminToken_GatesLoadAndRatings(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AdminToken = "test-token"
	ts := setupTestServer(t, cfg)

	rating := 5
	body := AddRatingRequest{UserID: 1, ISBN: "1111", Rating: &rating}

	rec := ts.do(t, http.MethodPost, "/api/v1/ratings", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/v1/ratings", body,
		map[string]string{"X-Admin-Token": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/v1/ratings", body,
		map[string]string{"X-Admin-Token": "test-token"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status with token = %d, body = %s", rec.Code, rec.Body.String())
	}
}

// writeLatin1CSV writes a dump-format CSV file with Latin-1 encoding.
// The fixture content is plain ASCII so no transcoding is needed here.
func writeLatin1CSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestDatasetLoad_EndToEnd(t *testing.T) {
	ts := setupTestServer(t, nil)

	dir := t.TempDir()
	writeLatin1CSV(t, dir, importer.BooksFile,
		"\"ISBN\";\"Book-Title\";\"Book-Author\";\"Year-Of-Publication\";\"Publisher\"\n"+
			"\"1111\";\"First Book\";\"Author A\";\"1999\";\"Pub A\"\n"+
			"\"2222\";\"Second Book\";\"Author B\";\"2004\";\"Pub B\"\n"+
			"\"3333\";\"Third Book\";\"Author C\";\"2011\";\"Pub C\"\n")
	writeLatin1CSV(t, dir, importer.RatingsFile,
		"\"User-ID\";\"ISBN\";\"Book-Rating\"\n"+
			"\"1\";\"1111\";\"8\"\n"+
			"\"1\";\"2222\";\"6\"\n"+
			"\"2\";\"1111\";\"9\"\n"+
			"\"2\";\"2222\";\"7\"\n"+
			"\"2\";\"3333\";\"5\"\n"+
			"\"3\";\"3333\";\"9\"\n")
	writeLatin1CSV(t, dir, importer.UsersFile,
		"\"User-ID\";\"Location\";\"Age\"\n"+
			"\"1\";\"lisbon, portugal\";\"34\"\n"+
			"\"2\";\"porto, portugal\";\"NULL\"\n"+
			"\"3\";\"madrid, spain\";\"51\"\n")

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/load",
		LoadRequest{Source: dir}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result LoadResult
	decodeEnvelope(t, rec, &result)
	if result.Status != "loaded" {
		t.Fatalf("result = %+v", result)
	}
	if result.Statistics.Users != 3 || result.Statistics.Books != 3 || result.Statistics.Ratings != 6 {
		t.Fatalf("statistics = %+v", result.Statistics)
	}

	// The model is now live.
	status := ts.state.Status()
	if !status.Loaded || status.Generation != 1 {
		t.Fatalf("status = %+v", status)
	}

	// And recommendations work through the API.
	recResp := ts.do(t, http.MethodPost, "/api/v1/datasets/recommendations",
		RecommendationsRequest{UserID: 1, K: 2, TopN: 5}, nil)
	if recResp.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d, body = %s", recResp.Code, recResp.Body.String())
	}
}

func TestDatasetLoad_MissingDirectory(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/datasets/load",
		LoadRequest{Source: filepath.Join(t.TempDir(), "nope")}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
