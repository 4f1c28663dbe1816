package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-access-service/internal/events"
	"order-access-service/internal/metrics"
	"order-access-service/internal/middleware"
	"order-access-service/internal/models"
	"order-access-service/internal/services"
	"order-access-service/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	f      testutil.Fixture
}

// setupTestRouter wires the real services over an in-memory database
func setupTestRouter(t *testing.T) *testAPI {
	t.Helper()

	store := testutil.NewStore(t)
	logger, _ := logtest.NewNullLogger()
	m := metrics.New()
	notifier := events.NoopNotifier{}

	perms := services.NewPermissionService(store, nil, m, logger)
	audit := services.NewAuditRecorder(store, perms)
	grants := services.NewGrantService(store, perms, audit, m, logger)
	archives := services.NewArchiveService(store, audit, notifier, m, logger)
	lifecycle := services.NewLifecycleService(store, perms, audit, archives, notifier, m, logger, services.LifecycleConfig{})

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware(), middleware.ErrorHandler(logger))
	api := router.Group("/api/v1", middleware.ActorMiddleware(nil))
	RegisterRoutes(api, Handlers{
		Orders:   NewOrderHandler(lifecycle, perms),
		Grants:   NewGrantHandler(grants),
		History:  NewHistoryHandler(audit),
		Archives: NewArchiveHandler(archives),
		Admin:    NewAdminHandler(lifecycle),
	})

	return &testAPI{router: router, f: testutil.Seed(t, store)}
}

// do sends a request as userID; a nil userID sends no identity
func (a *testAPI) do(t *testing.T, method, path string, userID *uuid.UUID, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createOrder(t *testing.T, reference string) models.Order {
	t.Helper()
	owner := a.f.Owner.ID
	w := a.do(t, http.MethodPost, "/api/v1/orders", &owner, gin.H{
		"referenceNumber": reference,
		"departmentId":    a.f.Sales.ID,
		"title":           "Order " + reference,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetails {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func TestOrderHandler_CreateAndGet(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-H1")

	assert.Equal(t, "ORD-H1", order.ReferenceNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, api.f.Owner.ID, order.OwnerID)

	owner := api.f.Owner.ID
	w := api.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Order      models.Order `json:"order"`
		Permission struct {
			CanDelete bool   `json:"canDelete"`
			IsOwner   bool   `json:"isOwner"`
			Source    string `json:"source"`
		} `json:"permission"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, order.ID, view.Order.ID)
	assert.True(t, view.Permission.IsOwner)
	assert.True(t, view.Permission.CanDelete)
	assert.Equal(t, "Owner", view.Permission.Source)

	other := api.f.Other.ID
	w = api.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Code)
}

func TestOrderHandler_CreateValidation(t *testing.T) {
	api := setupTestRouter(t)
	owner := api.f.Owner.ID

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "missing title", body: gin.H{"referenceNumber": "ORD-X", "departmentId": api.f.Sales.ID}, status: http.StatusBadRequest},
		{name: "unknown department", body: gin.H{"referenceNumber": "ORD-X", "departmentId": uuid.New(), "title": "x"}, status: http.StatusNotFound},
		{name: "malformed json", body: "not an object", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/orders", &owner, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	api.createOrder(t, "ORD-DUP")
	w := api.do(t, http.MethodPost, "/api/v1/orders", &owner, gin.H{
		"referenceNumber": "ORD-DUP", "departmentId": api.f.Sales.ID, "title": "again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOrderHandler_RequiresIdentity(t *testing.T) {
	api := setupTestRouter(t)

	w := api.do(t, http.MethodGet, "/api/v1/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	owner := api.f.Owner.ID
	w = api.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", &owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decodeError(t, w).Details["field"])
}

func TestOrderHandler_StatusTransitions(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-H2")
	owner := api.f.Owner.ID
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodGet, base+"/status/allowed", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var allowed struct {
		Current  string   `json:"current"`
		Allowed  []string `json:"allowed"`
		Terminal bool     `json:"terminal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &allowed))
	assert.Equal(t, models.OrderStatusPending.String(), allowed.Current)
	assert.Contains(t, allowed.Allowed, models.OrderStatusInProgress.String())
	assert.False(t, allowed.Terminal)

	w = api.do(t, http.MethodPut, base+"/status", &owner, gin.H{"status": models.OrderStatusInProgress})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPut, base+"/status", &owner, gin.H{"status": models.OrderStatusArchived})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, base+"/priority", &owner, gin.H{"priority": models.PriorityUrgent})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.PriorityUrgent, updated.Priority)
	assert.Equal(t, models.OrderStatusInProgress, updated.Status)

	w = api.do(t, http.MethodPut, base+"/status", &owner, gin.H{"status": models.OrderStatusCompleted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, base+"/status/allowed", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	allowed.Allowed = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &allowed))
	assert.Equal(t, models.OrderStatusCompleted.String(), allowed.Current)
	assert.Empty(t, allowed.Allowed)
	assert.True(t, allowed.Terminal)
}

func TestOrderHandler_ExpirationAndVisibility(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-H3")
	owner := api.f.Owner.ID
	other := api.f.Other.ID
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodDelete, base+"/expiration", &owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPut, base+"/expiration", &owner, gin.H{"expirationDate": time.Now().Add(48 * time.Hour).UTC()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodDelete, base+"/expiration", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, base, &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPut, base+"/visibility", &owner, gin.H{"isPublic": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, base, &other, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPut, base+"/visibility", &owner, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_List(t *testing.T) {
	api := setupTestRouter(t)
	api.createOrder(t, "ORD-L1")
	api.createOrder(t, "ORD-L2")
	api.createOrder(t, "ORD-L3")
	owner := api.f.Owner.ID
	other := api.f.Other.ID

	w := api.do(t, http.MethodGet, "/api/v1/orders?limit=2", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data   []services.OrderView `json:"data"`
		Total  int                  `json:"total"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Limit)

	w = api.do(t, http.MethodGet, "/api/v1/orders?search=L2", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	w = api.do(t, http.MethodGet, "/api/v1/orders", &other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Zero(t, page.Total)

	w = api.do(t, http.MethodGet, "/api/v1/orders?status=abc", &owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGrantHandler_DirectGrantLifecycle(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-G1")
	owner := api.f.Owner.ID
	other := api.f.Other.ID
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodPost, base+"/permissions", &other, gin.H{"userId": other, "canView": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, base+"/permissions", &owner, gin.H{"userId": other, "canView": true, "canEdit": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, base+"/permissions/me", &other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var perm struct {
		CanView  bool   `json:"canView"`
		CanEdit  bool   `json:"canEdit"`
		CanShare bool   `json:"canShare"`
		Source   string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &perm))
	assert.True(t, perm.CanView)
	assert.True(t, perm.CanEdit)
	assert.False(t, perm.CanShare)
	assert.Equal(t, "Direct", perm.Source)

	w = api.do(t, http.MethodPatch, base, &other, gin.H{"title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, base+"/grants", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var grants models.OrderGrants
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grants))
	assert.Len(t, grants.Direct, 1)

	w = api.do(t, http.MethodDelete, base+"/permissions/"+other.String(), &owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, base, &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGrantHandler_DepartmentAndException(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-G2")
	owner := api.f.Owner.ID
	other := api.f.Other.ID
	legal := api.f.Legal.ID.String()
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodPost, base+"/departments", &owner, gin.H{
		"departmentId": api.f.Legal.ID, "accessLevel": models.AccessLevelViewOnly,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, base, &other, nil, "X-Department-IDs", legal)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, base+"/exceptions", &owner, gin.H{"userId": other, "reason": "conflict of interest"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, base, &other, nil, "X-Department-IDs", legal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, base+"/exceptions/"+other.String(), &owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodDelete, base+"/departments/"+legal, &owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, base, &other, nil, "X-Department-IDs", legal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, base+"/departments", &owner, gin.H{
		"departmentId": api.f.Legal.ID, "accessLevel": 9,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryHandler(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-HI")
	owner := api.f.Owner.ID
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodPut, base+"/priority", &owner, gin.H{"priority": models.PriorityHigh})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, base+"/history?sort=desc&limit=1", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page services.HistoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, models.ActionPriorityChanged, page.Entries[0].Action)

	w = api.do(t, http.MethodGet, base+"/history?sort=sideways", &owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, base+"/history/count", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &count))
	assert.Equal(t, int64(2), count.Count)

	other := api.f.Other.ID
	w = api.do(t, http.MethodGet, base+"/history", &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestArchiveHandler_ArchiveRestoreDelete(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-A1")
	owner := api.f.Owner.ID
	other := api.f.Other.ID
	admin := uuid.New()
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodPost, base+"/archive", &other, gin.H{"reason": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, base+"/archive", &owner, gin.H{"reason": "finished"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var archived models.ArchivedOrder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))
	assert.Equal(t, order.ID, archived.OrderID)
	assert.True(t, archived.CanBeRestored)

	w = api.do(t, http.MethodPost, base+"/archive", &owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/archives", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data  []models.ArchivedOrder `json:"data"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	archivePath := "/api/v1/archives/" + archived.ID.String()
	w = api.do(t, http.MethodPost, archivePath+"/restore", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var restored models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &restored))
	assert.Equal(t, order.ID, restored.ID)
	assert.Equal(t, models.OrderStatusPending, restored.Status)

	w = api.do(t, http.MethodPost, archivePath+"/restore", &owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodDelete, archivePath, &owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, archivePath, &admin, nil, "X-User-Roles", "order_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, archivePath, &admin, nil, "X-User-Roles", "order_admin")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderHandler_Delete(t *testing.T) {
	api := setupTestRouter(t)
	order := api.createOrder(t, "ORD-D1")
	owner := api.f.Owner.ID
	other := api.f.Other.ID
	base := "/api/v1/orders/" + order.ID.String()

	w := api.do(t, http.MethodPost, base+"/attachments", &owner, gin.H{
		"fileName": "contract.pdf", "contentType": "application/pdf", "sizeBytes": 2048, "storageKey": "orders/contract.pdf",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodDelete, base, &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, base, &owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, base, &owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_Sweep(t *testing.T) {
	api := setupTestRouter(t)
	api.createOrder(t, "ORD-S1")

	owner := api.f.Owner.ID
	w := api.do(t, http.MethodPost, "/api/v1/admin/sweep", &owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := uuid.New()
	w = api.do(t, http.MethodPost, "/api/v1/admin/sweep", &admin, nil, "X-User-Roles", "admin")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.SweepResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Zero(t, result.Candidates)
	assert.Zero(t, result.Archived)
}
