package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicroute/incidentd/internal/scheduler"
	"github.com/civicroute/incidentd/pkg/models"
)

type fakeStatsStore struct {
	pingErr  error
	statsErr error
	stats    models.StoreStats
}

func (f *fakeStatsStore) Ping() error { return f.pingErr }

func (f *fakeStatsStore) DashboardStats(ctx context.Context) (models.StoreStats, error) {
	return f.stats, f.statsErr
}

type fakeSnapshotProvider struct {
	snap scheduler.Snapshot
}

func (f *fakeSnapshotProvider) Stats() scheduler.Snapshot { return f.snap }

func testServer(store *fakeStatsStore, sched *fakeSnapshotProvider) *Server {
	return New("127.0.0.1:0", store, sched, "test-version", zerolog.Nop())
}

func TestHealthzOK(t *testing.T) {
	s := testServer(&fakeStatsStore{}, &fakeSnapshotProvider{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
}

func TestHealthzDatabaseDown(t *testing.T) {
	s := testServer(&fakeStatsStore{pingErr: errors.New("connection refused")}, &fakeSnapshotProvider{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Contains(t, body["error"], "connection refused")
}

func TestStats(t *testing.T) {
	store := &fakeStatsStore{stats: models.StoreStats{
		OpenIncidents:      3,
		TotalIncidents:     5,
		PendingComplaints:  7,
		AssignedComplaints: 40,
	}}
	sched := &fakeSnapshotProvider{snap: scheduler.Snapshot{
		State:            scheduler.StateIdle,
		CyclesTotal:      12,
		ComplaintsMerged: 30,
		IncidentsCreated: 5,
	}}
	s := testServer(store, sched)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, scheduler.StateIdle, body.Scheduler.State)
	assert.EqualValues(t, 12, body.Scheduler.CyclesTotal)
	assert.EqualValues(t, 3, body.Store.OpenIncidents)
	assert.EqualValues(t, 7, body.Store.PendingComplaints)
}

func TestStatsQueryFailure(t *testing.T) {
	s := testServer(&fakeStatsStore{statsErr: errors.New("boom")}, &fakeSnapshotProvider{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := testServer(&fakeStatsStore{}, &fakeSnapshotProvider{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
