package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/dispatch"
	"disha/internal/travel/models"
	"disha/internal/travel/service"
	"disha/internal/travel/store"
	id "disha/pkg/domain"
	"disha/pkg/requestcontext"
)

func newTestRouter(t *testing.T) (chi.Router, *service.Service) {
	t.Helper()
	svc := service.New(store.NewMemoryStore(), dispatch.NewMemoryOutbox(),
		service.WithLogger(slog.New(slog.DiscardHandler)))
	h := New(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	return r, svc
}

func do(t *testing.T, router chi.Router, method, path string, role id.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req = req.WithContext(requestcontext.WithActor(req.Context(), role, "actor-3"))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), w.Body.String())
	return out
}

func TestAdvanceMovesRequestForward(t *testing.T) {
	router, svc := newTestRouter(t)
	batchID := id.NewBatchID()
	created, err := svc.EnsureForBatch(t.Context(), batchID)
	require.NoError(t, err)

	w := do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), id.RoleCenterManager, AdvanceRequest{
		Status:          string(models.StatusRequested),
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[RequestResponse](t, w)
	assert.Equal(t, string(models.StatusRequested), resp.Status)
	assert.Equal(t, "actor-3", resp.RequestedBy)
	assert.Equal(t, int64(2), resp.Version)
}

func TestAdvanceRequiresAuthentication(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)

	w := do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), "", AdvanceRequest{
		Status:          string(models.StatusRequested),
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdvanceRejectsWrongRole(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)

	w := do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), id.RoleMobilizer, AdvanceRequest{
		Status:          string(models.StatusRequested),
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestAdvanceRejectsUnknownStatus(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)

	w := do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), id.RoleCenterManager, AdvanceRequest{
		Status:          "laminated",
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestAdvanceReportsStaleVersion(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)

	w := do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), id.RoleCenterManager, AdvanceRequest{
		Status:          string(models.StatusRequested),
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPatch, "/travel-letters/"+created.ID.String(), id.RoleCenterManager, AdvanceRequest{
		Status:          string(models.StatusRequested),
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestGetByBatch(t *testing.T) {
	router, svc := newTestRouter(t)
	batchID := id.NewBatchID()
	created, err := svc.EnsureForBatch(t.Context(), batchID)
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/batches/"+batchID.String()+"/travel-letter", id.RoleCenterManager, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[RequestResponse](t, w)
	assert.Equal(t, created.ID.String(), resp.ID)

	w = do(t, router, http.MethodGet, "/batches/"+id.NewBatchID().String()+"/travel-letter", id.RoleCenterManager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiltersByStatus(t *testing.T) {
	router, svc := newTestRouter(t)
	first, err := svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)
	_, err = svc.EnsureForBatch(t.Context(), id.NewBatchID())
	require.NoError(t, err)

	_, err = svc.Advance(t.Context(), first.ID, service.AdvanceInput{
		Status:          models.StatusRequested,
		ExpectedVersion: 1,
		ActorRole:       id.RoleCenterManager,
		ActorID:         "cm-1",
	})
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/travel-letters?status=requested", id.RolePPCAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[RequestsResponse](t, w)
	require.Len(t, resp.Requests, 1)
	assert.Equal(t, first.ID.String(), resp.Requests[0].ID)

	w = do(t, router, http.MethodGet, "/travel-letters", id.RolePPCAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[RequestsResponse](t, w)
	assert.Len(t, resp.Requests, 2)
}

func TestGetRejectsMalformedID(t *testing.T) {
	router, _ := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/travel-letters/not-a-uuid", id.RolePPCAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
