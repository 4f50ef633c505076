package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gallus/brood-engine/api"
	"github.com/gallus/brood-engine/auth"
	"github.com/gallus/brood-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// No authenticator: the session check is disabled for handler tests;
	// auth behavior has its own tests below.
	handler := api.NewHandler(store, nil, zap.NewNop())
	return api.NewRouter(handler)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createFlock(t *testing.T, router http.Handler) (api.FlockDTO, api.BarnDTO) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/flocks", api.CreateFlockRequest{
		Name:        "Lot 2026-01",
		ArrivalDate: "2026-01-05",
		ChickCount:  5000,
		Barns: []api.CreateBarnRequest{
			{BarnNo: "B1", Breed: "Cobb 500", ChickCount: 5000},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	flock := decode[api.FlockDTO](t, rec)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/flocks/%d/barns", flock.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	barns := decode[[]api.BarnDTO](t, rec)
	require.Len(t, barns, 1)
	return flock, barns[0]
}

// =============================================================================
// FLOCK AND GRID ENDPOINTS
// =============================================================================

func TestCreateFlock_AndReadGrid(t *testing.T) {
	router := newTestRouter(t)
	_, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/barns/%d/grid", barn.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	grid := decode[[]api.WeekGridDTO](t, rec)
	require.Len(t, grid, 8)
	for i, wg := range grid {
		assert.Equal(t, i+1, wg.Week.WeekNo)
		assert.Len(t, wg.Days, 7)
	}
	// Week 1 days are seeded; later weeks stay virtual.
	assert.False(t, grid[0].Days[0].Virtual)
	assert.True(t, grid[7].Days[6].Virtual)
}

func TestCreateFlock_RequiresBarns(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/flocks", api.CreateFlockRequest{
		Name: "Empty", ArrivalDate: "2026-01-05", ChickCount: 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFlock_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/flocks/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBarn_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/barns/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DAY UPSERT ENDPOINT
// =============================================================================

func TestUpsertDayField_MovesLedger(t *testing.T) {
	router := newTestRouter(t)
	flock, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/provisions", api.ProvisionRequest{
		FlockID: flock.ID, QuantityKg: 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/barns/%d/grid", barn.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[[]api.WeekGridDTO](t, rec)
	weekID := grid[0].Week.ID

	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/weeks/%d/days/%d", weekID, 3),
		api.UpsertDayFieldRequest{Field: "feed_daily", Value: "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	day := decode[api.DayLogDTO](t, rec)
	assert.False(t, day.Virtual)
	assert.Equal(t, 2.0, *day.FeedDaily)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/flocks/%d", flock.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.FlockDTO](t, rec)
	assert.InDelta(t, 900, got.FeedOnHand, 1e-9)
}

func TestUpsertDayField_UnknownField(t *testing.T) {
	router := newTestRouter(t)
	_, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/barns/%d/grid", barn.ID), nil)
	grid := decode[[]api.WeekGridDTO](t, rec)

	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/weeks/%d/days/1", grid[0].Week.ID),
		api.UpsertDayFieldRequest{Field: "poids", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertDayField_DanglingTreatment(t *testing.T) {
	router := newTestRouter(t)
	_, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/barns/%d/grid", barn.ID), nil)
	grid := decode[[]api.WeekGridDTO](t, rec)

	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/weeks/%d/days/1", grid[0].Week.ID),
		api.UpsertDayFieldRequest{Field: "treatment_id", Value: "99"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// WEEK WEIGHT ENDPOINT
// =============================================================================

func TestSetWeekWeight(t *testing.T) {
	router := newTestRouter(t)
	_, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/barns/%d/grid", barn.ID), nil)
	grid := decode[[]api.WeekGridDTO](t, rec)
	weekID := grid[2].Week.ID

	weight := 840.0
	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/weeks/%d/weight", weekID),
		api.SetWeekWeightRequest{Weight: &weight})
	require.Equal(t, http.StatusOK, rec.Code)
	week := decode[api.WeekDTO](t, rec)
	assert.Equal(t, 840.0, *week.Weight)

	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/weeks/%d/weight", weekID),
		api.SetWeekWeightRequest{Weight: nil})
	require.Equal(t, http.StatusOK, rec.Code)
	week = decode[api.WeekDTO](t, rec)
	assert.Nil(t, week.Weight)
}

// =============================================================================
// PROVISION ENDPOINTS
// =============================================================================

func TestProvisionEndpoints_RoundTrip(t *testing.T) {
	router := newTestRouter(t)
	flock, _ := createFlock(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/provisions", api.ProvisionRequest{
		FlockID: flock.ID, QuantityKg: 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	entry := decode[api.ProvisionDTO](t, rec)

	rec = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/provisions/%d", entry.ID),
		api.ProvisionRequest{FlockID: flock.ID, QuantityKg: 350})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/flocks/%d/provisions", flock.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.ProvisionDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, 350.0, entries[0].QuantityKg)

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/flocks/%d/provisions", flock.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/flocks/%d", flock.ID), nil)
	got := decode[api.FlockDTO](t, rec)
	assert.Zero(t, got.FeedOnHand)
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

func TestCatalogEndpoints(t *testing.T) {
	router := newTestRouter(t)
	_, barn := createFlock(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/treatments",
		api.CreateTreatmentRequest{Name: "Amoxicillin", Unit: "g"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/treatments",
		api.CreateTreatmentRequest{Name: "Amoxicillin", Unit: "g"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/diseases",
		api.CreateDiseaseRequest{Name: "Gumboro"})
	require.Equal(t, http.StatusCreated, rec.Code)
	disease := decode[api.DiseaseDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/barns/%d/diseases", barn.ID),
		api.LinkDiseaseRequest{DiseaseID: disease.ID})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/barns/%d/diseases", barn.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	linked := decode[[]api.DiseaseDTO](t, rec)
	require.Len(t, linked, 1)
	assert.Equal(t, "Gumboro", linked[0].Name)
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

func TestAuth_GuardsAPI(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sessions := auth.NewMemorySessionStore(time.Hour)
	authenticator := auth.NewAuthenticator("admin", "s3cret", sessions)
	router := api.NewRouter(api.NewHandler(store, authenticator, zap.NewNop()))

	// No token: rejected.
	rec := doJSON(t, router, http.MethodGet, "/api/flocks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bad credentials: rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/auth/login",
		api.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Login, then the token opens the API.
	rec = doJSON(t, router, http.MethodPost, "/api/auth/login",
		api.LoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[api.LoginResponse](t, rec).Token

	rec = doJSON(t, router, http.MethodGet, "/api/flocks", nil,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logout revokes it.
	rec = doJSON(t, router, http.MethodPost, "/api/auth/logout", nil,
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/flocks", nil,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
