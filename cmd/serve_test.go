package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagesift/pagesift/internal/extract"
	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/model"
	"github.com/pagesift/pagesift/internal/monitoring"
	"github.com/pagesift/pagesift/internal/scrape"
	"github.com/pagesift/pagesift/internal/store"
)

// newTestRouter wires the serve handler over a throwaway sqlite store.
func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	engine := scrape.NewEngine(st, st, fetcher.NewHTTPFetcher(fetcher.Options{}), extract.NewCSS(), 2)
	collector := monitoring.NewCollector(st)

	return buildRouter(context.Background(), st, engine, collector), st
}

func TestServeRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body struct {
		Status string              `json:"status"`
		Stats  monitoring.Snapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Stats.Jobs)
}

func TestServeRouter_CreateJob(t *testing.T) {
	router, st := newTestRouter(t)

	payload := map[string]string{
		"url":      "https://acme.example/products",
		"selector": "h2.title",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "https://acme.example/products", job.URL)
	assert.Equal(t, "h2.title", job.Selector)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.URL, stored.URL)
}

func TestServeRouter_CreateJob_InvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestServeRouter_CreateJob_BlankURL(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := map[string]string{"url": "", "selector": "h1"}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "url is required")
}

func TestServeRouter_ListJobs_Empty(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// An empty store serializes as [], never null.
	var jobs []model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &jobs))
	assert.Empty(t, jobs)
	assert.NotContains(t, rr.Body.String(), "null")
}

func TestServeRouter_ListJobs(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.AddJob(context.Background(), "https://one.example", "p")
	require.NoError(t, err)
	_, err = st.AddJob(context.Background(), "https://two.example", "div.body")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var jobs []model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
}

func TestServeRouter_JobResults_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist/results", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "job not found")
}

func TestServeRouter_JobResults(t *testing.T) {
	router, st := newTestRouter(t)

	job, err := st.AddJob(context.Background(), "https://acme.example", "li")
	require.NoError(t, err)
	_, err = st.AppendResult(context.Background(), job.ID, "First")
	require.NoError(t, err)
	_, err = st.AppendResult(context.Background(), job.ID, "Second")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/results", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var records []model.ResultRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0].Text)
	assert.Equal(t, "Second", records[1].Text)
}

func TestServeRouter_TriggerRun(t *testing.T) {
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<ul><li class="item">One</li><li class="item">Two</li></ul>`))
	}))
	defer pageSrv.Close()

	router, st := newTestRouter(t)

	job, err := st.AddJob(context.Background(), pageSrv.URL, "li.item")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/runs", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "accepted")

	// The run is asynchronous; wait for both fragments to land.
	require.Eventually(t, func() bool {
		records, err := st.ResultsForJob(context.Background(), job.ID)
		return err == nil && len(records) == 2
	}, 2*time.Second, 20*time.Millisecond)

	records, err := st.ResultsForJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "One", records[0].Text)
	assert.Equal(t, "Two", records[1].Text)
}
