package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/routing"
	"overlay-router/internal/testutil"
)

type staticBreakers map[string]string

func (s staticBreakers) States() map[string]string { return s }

func newTestRouter(t *testing.T, checks map[string]HealthCheck, opts ...routing.ManagerOption) (*mux.Router, *routing.Manager) {
	t.Helper()

	dir := testutil.NewTopologyBuilder("L").
		WithCommunities("C1").
		WithGateway("M1", "C1", "C2").
		Directory(t)
	opts = append([]routing.ManagerOption{routing.WithLogger(logging.NewNopLogger())}, opts...)
	manager := routing.NewManager(dir, opts...)
	_, err := manager.Recalculate(context.Background())
	require.NoError(t, err)

	router := mux.NewRouter()
	New(manager, checks, staticBreakers{"http|http://m1": "closed"}, logging.NewNopLogger()).Register(router)
	return router, manager
}

func serve(router *mux.Router, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, manager := newTestRouter(t, map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
		})

		rr := serve(router, http.MethodGet, "/health")
		require.Equal(t, http.StatusOK, rr.Code)

		var body healthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, manager.Table().Len(), body.Entries)
		assert.Equal(t, "healthy", body.Checks["store"])
		assert.Equal(t, "closed", body.Breakers["http|http://m1"])
	})

	t.Run("failing check", func(t *testing.T) {
		router, _ := newTestRouter(t, map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
			"redis": func(context.Context) error { return testutil.ErrTestFailure },
		})

		rr := serve(router, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

		var body healthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, testutil.ErrTestFailure.Error(), body.Checks["redis"])
	})
}

func TestGetRoutes(t *testing.T) {
	router, manager := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/routes")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	tuples, err := manager.ImportTable(rr.Body.Bytes())
	require.NoError(t, err)
	assert.ElementsMatch(t, manager.ExportTable(), tuples)
}

func TestGetNextHop(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/routes/hops/C2")
	require.Equal(t, http.StatusOK, rr.Code)

	var hop hopResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hop))
	assert.Equal(t, hopResponse{
		Destination:      "C2",
		SourceCommunity:  "C1",
		GatewayMemberID:  "M1",
		GatewayCommunity: "C1",
		Cost:             1,
	}, hop)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/routes/hops/C9").Code)
}

func TestRebuildRoutes(t *testing.T) {
	locker := &testutil.MockLocker{}
	router, manager := newTestRouter(t, nil, routing.WithLocker(locker))
	manager.AddEntry(context.Background(), testutil.NewEntryBuilder("C1", "C9", "M7").WithCost(3).Build())
	before := manager.Table().Len()

	rr := serve(router, http.MethodPost, "/routes/rebuild")
	require.Equal(t, http.StatusOK, rr.Code)

	var body rebuildResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, before-1, body.Entries, "learned entry is flushed")
	assert.Equal(t, body.Entries, body.Added)

	acquired, released := locker.Calls()
	assert.Equal(t, []string{routing.RebuildLockKey}, acquired)
	assert.Equal(t, []string{routing.RebuildLockKey}, released)

	t.Run("lock not acquired", func(t *testing.T) {
		failing := &testutil.MockLocker{AcquireFunc: func(context.Context, string) error { return testutil.ErrTestFailure }}
		router, _ := newTestRouter(t, nil, routing.WithLocker(failing))
		assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodPost, "/routes/rebuild").Code)
	})

	t.Run("rebuild is POST only", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodGet, "/routes/rebuild").Code)
	})
}
