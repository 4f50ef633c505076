/*
handlers.go - HTTP API handlers for the production-cycle engine

PURPOSE:
  Exposes the grid and ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login             Operator login, returns bearer token
    POST   /api/auth/logout            Revoke the presented token

  Flocks:
    GET    /api/flocks                 List all flocks
    POST   /api/flocks                 Create flock with its barns
    GET    /api/flocks/{id}            Get flock details (incl. feed ledger)
    DELETE /api/flocks/{id}            Cascade-delete a flock
    GET    /api/flocks/{id}/barns      List a flock's barns
    GET    /api/flocks/{id}/provisions Provision history
    DELETE /api/flocks/{id}/provisions Clear history and zero the ledger

  Grid:
    GET    /api/barns/{id}/grid        Full 8x7 materialized grid
    DELETE /api/barns/{id}             Cascade-delete a barn
    PUT    /api/weeks/{id}/weight      Set or clear a week's weight
    PUT    /api/weeks/{id}/days/{age}  Upsert one field of a day log

  Provisions:
    POST   /api/provisions             Record a feed delivery
    PUT    /api/provisions/{id}        Rewrite quantity or re-point flock
    DELETE /api/provisions/{id}        Remove an entry

  Catalogs:
    GET/POST /api/treatments           Care-product catalog
    GET/POST /api/diseases             Disease catalog
    GET/POST /api/barns/{id}/diseases  Barn disease incidents

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid session token
  - 404: Resource not found
  - 409: Duplicate natural key
  - 500: Internal errors, data corruption
  - 503: Storage temporarily unavailable

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gallus/brood-engine/auth"
	"github.com/gallus/brood-engine/brood"
	"github.com/gallus/brood-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Auth  *auth.Authenticator

	flocks     *brood.FlockService
	grid       *brood.Materializer
	days       *brood.DayLogService
	provisions *brood.ProvisionService
	deletions  *brood.DeletionService

	logger *zap.Logger
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store *sqlite.Store, authenticator *auth.Authenticator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:      store,
		Auth:       authenticator,
		flocks:     brood.NewFlockService(store),
		grid:       brood.NewMaterializer(store),
		days:       brood.NewDayLogService(store),
		provisions: brood.NewProvisionService(store),
		deletions:  brood.NewDeletionService(store),
		logger:     logger,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login verifies operator credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// Logout revokes the presented bearer token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.Auth.Logout(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// FLOCK HANDLERS
// =============================================================================

// ListFlocks returns all flocks.
func (h *Handler) ListFlocks(w http.ResponseWriter, r *http.Request) {
	flocks, err := h.flocks.List(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list flocks", err)
		return
	}

	dtos := make([]FlockDTO, len(flocks))
	for i, f := range flocks {
		dtos[i] = toFlockDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFlock creates a flock together with its barns, each seeded with
// its first week.
func (h *Handler) CreateFlock(w http.ResponseWriter, r *http.Request) {
	var req CreateFlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	barns := make([]brood.Barn, len(req.Barns))
	for i, b := range req.Barns {
		barns[i] = brood.Barn{BarnNo: b.BarnNo, Breed: b.Breed, ChickCount: b.ChickCount}
	}

	flock, err := h.flocks.CreateWithBarns(r.Context(), brood.Flock{
		Name:        req.Name,
		ArrivalDate: req.ArrivalDate,
		ChickCount:  req.ChickCount,
		Notes:       req.Notes,
	}, barns)
	if err != nil {
		h.writeDomainError(w, "Failed to create flock", err)
		return
	}

	writeJSON(w, http.StatusCreated, toFlockDTO(*flock))
}

// GetFlock returns a single flock, including its current feed ledger.
func (h *Handler) GetFlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	flock, err := h.flocks.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get flock", err)
		return
	}
	writeJSON(w, http.StatusOK, toFlockDTO(*flock))
}

// DeleteFlock cascade-deletes a flock, its barns, weeks, day logs, and
// provision history.
func (h *Handler) DeleteFlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.deletions.DeleteFlock(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete flock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFlockBarns returns a flock's barns.
func (h *Handler) ListFlockBarns(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	barns, err := h.flocks.Barns(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list barns", err)
		return
	}

	dtos := make([]BarnDTO, len(barns))
	for i, b := range barns {
		dtos[i] = toBarnDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// GRID HANDLERS
// =============================================================================

// GetGrid returns a barn's full materialized grid: 8 weeks of 7 days,
// virtual where nothing was recorded. Missing weeks are created as a
// side effect of the read.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	grid, err := h.grid.FullGrid(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to materialize grid", err)
		return
	}

	dtos := make([]WeekGridDTO, len(grid))
	for i, g := range grid {
		dtos[i] = toWeekGridDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteBarn cascade-deletes a barn and recomputes the flock ledger.
func (h *Handler) DeleteBarn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.deletions.DeleteBarn(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete barn", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetWeekWeight sets or clears a week's average weight.
func (h *Handler) SetWeekWeight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SetWeekWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	week, err := h.flocks.SetWeekWeight(r.Context(), id, req.Weight)
	if err != nil {
		h.writeDomainError(w, "Failed to set week weight", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(*week))
}

// UpsertDayField writes one field of the day log at (week, age),
// creating the row on first write. Feed consumption changes move the
// flock's feed ledger in the same transaction.
func (h *Handler) UpsertDayField(w http.ResponseWriter, r *http.Request) {
	weekID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	age, err := strconv.Atoi(chi.URLParam(r, "age"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid age", err)
		return
	}

	var req UpsertDayFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	field, err := brood.ParseField(req.Field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown field", err)
		return
	}
	update, err := brood.ParseFieldUpdate(field, req.Value)
	if err != nil {
		h.writeDomainError(w, "Invalid field value", err)
		return
	}

	day, err := h.days.UpsertField(r.Context(), weekID, age, update)
	if err != nil {
		h.writeDomainError(w, "Failed to upsert day log", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayLogDTO(*day))
}

// =============================================================================
// PROVISION HANDLERS
// =============================================================================

// RecordProvision records a feed delivery and stocks the ledger.
func (h *Handler) RecordProvision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.provisions.Record(r.Context(), req.FlockID, req.QuantityKg)
	if err != nil {
		h.writeDomainError(w, "Failed to record provision", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProvisionDTO(*entry))
}

// UpdateProvision rewrites an entry's quantity, or re-points it to
// another flock moving both ledgers atomically.
func (h *Handler) UpdateProvision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.provisions.Update(r.Context(), id, req.FlockID, req.QuantityKg)
	if err != nil {
		h.writeDomainError(w, "Failed to update provision", err)
		return
	}
	writeJSON(w, http.StatusOK, toProvisionDTO(*entry))
}

// DeleteProvision removes an entry and draws down the ledger.
func (h *Handler) DeleteProvision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.provisions.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete provision", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProvisions returns a flock's provision history, most recent first.
func (h *Handler) ListProvisions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.provisions.History(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list provisions", err)
		return
	}

	dtos := make([]ProvisionDTO, len(entries))
	for i, p := range entries {
		dtos[i] = toProvisionDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClearProvisions removes a flock's whole history and zeroes the ledger.
func (h *Handler) ClearProvisions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.provisions.DeleteAll(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to clear provisions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListTreatments returns the care-product catalog.
func (h *Handler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	treatments, err := h.Store.ListTreatments(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list treatments", err)
		return
	}

	dtos := make([]TreatmentDTO, len(treatments))
	for i, t := range treatments {
		dtos[i] = TreatmentDTO{ID: t.ID, Name: t.Name, Unit: t.Unit}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTreatment adds a care product to the catalog.
func (h *Handler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var req CreateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Treatment name must not be empty", nil)
		return
	}

	t, err := h.Store.InsertTreatment(r.Context(), brood.Treatment{Name: req.Name, Unit: req.Unit})
	if err != nil {
		h.writeDomainError(w, "Failed to create treatment", err)
		return
	}
	writeJSON(w, http.StatusCreated, TreatmentDTO{ID: t.ID, Name: t.Name, Unit: t.Unit})
}

// ListDiseases returns the disease catalog.
func (h *Handler) ListDiseases(w http.ResponseWriter, r *http.Request) {
	diseases, err := h.Store.ListDiseases(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list diseases", err)
		return
	}

	dtos := make([]DiseaseDTO, len(diseases))
	for i, d := range diseases {
		dtos[i] = DiseaseDTO{ID: d.ID, Name: d.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDisease adds a disease to the catalog.
func (h *Handler) CreateDisease(w http.ResponseWriter, r *http.Request) {
	var req CreateDiseaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Disease name must not be empty", nil)
		return
	}

	d, err := h.Store.InsertDisease(r.Context(), brood.Disease{Name: req.Name})
	if err != nil {
		h.writeDomainError(w, "Failed to create disease", err)
		return
	}
	writeJSON(w, http.StatusCreated, DiseaseDTO{ID: d.ID, Name: d.Name})
}

// ListBarnDiseases returns the diseases recorded on a barn.
func (h *Handler) ListBarnDiseases(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	diseases, err := h.Store.ListBarnDiseases(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list barn diseases", err)
		return
	}

	dtos := make([]DiseaseDTO, len(diseases))
	for i, d := range diseases {
		dtos[i] = DiseaseDTO{ID: d.ID, Name: d.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LinkBarnDisease records a disease incident on a barn.
func (h *Handler) LinkBarnDisease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req LinkDiseaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.LinkBarnDisease(r.Context(), id, req.DiseaseID); err != nil {
		h.writeDomainError(w, "Failed to link disease", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error kinds onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var status int
	switch {
	case errors.Is(err, brood.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, brood.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, brood.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, brood.ErrResourceUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

// pathID parses the named chi URL parameter as an int64 id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
