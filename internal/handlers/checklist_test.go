package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/services/checklist"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/middleware"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

type fakeProgressService struct {
	progress    *checklist.ProgressView
	toggleCalls []string
	submitNotes *string
	err         error
	panicMsg    string
}

func (f *fakeProgressService) GetProgress(ctx context.Context, tenantID, instanceID string) (*checklist.ProgressView, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.progress, nil
}

func (f *fakeProgressService) ToggleItem(ctx context.Context, actor checklist.Actor, tenantID, instanceID, itemID string, isCompleted bool, notes *string) (*checklist.ToggleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.toggleCalls = append(f.toggleCalls, "item:"+itemID)
	return &checklist.ToggleResult{Success: true, ProgressID: "prog-1"}, nil
}

func (f *fakeProgressService) ToggleConnection(ctx context.Context, actor checklist.Actor, tenantID, instanceID, connectionID string, isCompleted bool, notes *string) (*checklist.ToggleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.toggleCalls = append(f.toggleCalls, "conn:"+connectionID)
	return &checklist.ToggleResult{Success: true, ProgressID: "prog-2"}, nil
}

func (f *fakeProgressService) Submit(ctx context.Context, actor checklist.Actor, tenantID, instanceID string, notes *string, requireConnectedComplete bool) (*checklist.SubmitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitNotes = notes
	return &checklist.SubmitResult{Success: true, EmailSent: true, EmailRecipientCount: 2}, nil
}

func (f *fakeProgressService) ListInstances(ctx context.Context, tenantID string, filter instance.ListFilter, page, pageSize int) ([]models.ChecklistInstance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.ChecklistInstance{{ID: "inst-1", TenantID: tenantID}}, nil
}

func newTestServer(svc ProgressService) *echo.Echo {
	return newTestServerWithCache(svc, nil)
}

func newTestServerWithCache(svc ProgressService, cache ProgressCache) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(middleware.TestAuth())
	h := NewChecklistHandler(svc, cache, logger)
	h.Register(e.Group("/api/v1/checklists"))
	return e
}

type mapCache struct {
	entries map[string]string
}

func (m *mapCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *mapCache) Set(ctx context.Context, key string, value any, _ time.Duration) error {
	m.entries[key] = value.(string)
	return nil
}

func (m *mapCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Employee-ID", "emp-1")
	req.Header.Set("X-Employee-Name", "Alice")
	return req
}

func TestGetProgressReturnsETag(t *testing.T) {
	svc := &fakeProgressService{
		progress: &checklist.ProgressView{
			Instance: &models.ChecklistInstance{ID: "inst-1", TenantID: "tenant-1"},
			Summary:  checklist.Summary{TotalMain: 2, CompletedMain: 1, Percentage: 50},
		},
	}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=15")

	var view checklist.ProgressView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 50, view.Summary.Percentage)

	// a conditional request with the same tag revalidates without a body
	req := authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", "")
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestGetProgressRequiresAuth(t *testing.T) {
	e := newTestServer(&fakeProgressService{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToggleItemRequiresIsCompleted(t *testing.T) {
	svc := &fakeProgressService{}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checklists/inst-1/items/item-1/toggle", `{"notes":"done"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.toggleCalls)
}

func TestToggleItemSuccess(t *testing.T) {
	svc := &fakeProgressService{}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checklists/inst-1/items/item-1/toggle", `{"is_completed":true}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"item:item-1"}, svc.toggleCalls)
}

func TestToggleConnectionSuccess(t *testing.T) {
	svc := &fakeProgressService{}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checklists/inst-1/connections/conn-1/toggle", `{"is_completed":false}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"conn:conn-1"}, svc.toggleCalls)
}

func TestSubmitPassesNotes(t *testing.T) {
	svc := &fakeProgressService{}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checklists/inst-1/submit", `{"notes":"all good"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.submitNotes)
	assert.Equal(t, "all good", *svc.submitNotes)

	var result checklist.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.EmailSent)
	assert.Equal(t, 2, result.EmailRecipientCount)
}

func TestServiceErrorSurfacesStatusCode(t *testing.T) {
	svc := &fakeProgressService{err: httperror.NewHTTPError(http.StatusNotFound, "checklist instance not found")}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "checklist instance not found", body.Message)
}

func TestProgressCacheInvalidatedByToggle(t *testing.T) {
	svc := &fakeProgressService{
		progress: &checklist.ProgressView{
			Instance: &models.ChecklistInstance{ID: "inst-1", TenantID: "tenant-1"},
		},
	}
	cache := &mapCache{entries: map[string]string{}}
	e := newTestServerWithCache(svc, cache)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, cache.entries, 1)

	// the cached body is served as-is even after the fake's view changes
	svc.progress.Instance.Workplace = "kitchen"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kitchen")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checklists/inst-1/items/item-1/toggle", `{"is_completed":true}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cache.entries)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kitchen")
}

func TestListInstancesParsesDateFilter(t *testing.T) {
	svc := &fakeProgressService{}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists?date=not-a-date", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists?date=2026-09-01&workplace=kitchen", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerPanicReturnsInternalError(t *testing.T) {
	svc := &fakeProgressService{panicMsg: "nil pointer somewhere deep"}
	e := newTestServer(svc)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/checklists/inst-1/progress", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Message)
}
