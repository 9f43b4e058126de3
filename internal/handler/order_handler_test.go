package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/middleware"
	"github.com/noah-isme/crm-orders-api/internal/models"
	"github.com/noah-isme/crm-orders-api/internal/service"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *envelopeError         `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type fakeOrderRepo struct {
	orders     map[string]models.Order
	lastFilter models.OrderFilter
	listTotal  int
}

func (f *fakeOrderRepo) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	f.lastFilter = filter
	orders := make([]models.Order, 0, len(f.orders))
	for _, o := range f.orders {
		orders = append(orders, o)
	}
	return orders, f.listTotal, nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	if o, ok := f.orders[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeOrderRepo) Mutate(ctx context.Context, id string, apply func(*models.Order) error) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := apply(&o); err != nil {
		return nil, err
	}
	f.orders[id] = o
	return &o, nil
}

func strPtr(s string) *string { return &s }

func testContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func newOrderHandlerWithRepo(repo *fakeOrderRepo) *OrderHandler {
	orders := service.NewOrderService(repo, nil, zap.NewNop(), 25)
	exports := service.NewExportService(repo, nil, zap.NewNop())
	return NewOrderHandler(orders, exports)
}

func TestOrderHandlerListParsesFilter(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{}, listTotal: 40}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodGet, "/orders?name=anna&course=FS&age=21&ordering=-sum&page=2", "")
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anna", repo.lastFilter.Name)
	assert.Equal(t, "FS", repo.lastFilter.Course)
	require.NotNil(t, repo.lastFilter.Age)
	assert.Equal(t, 21, *repo.lastFilter.Age)
	assert.Equal(t, "-sum", repo.lastFilter.Ordering)
	assert.Equal(t, 2, repo.lastFilter.Page)
	assert.Equal(t, 25, repo.lastFilter.PageSize)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(40), envelope.Pagination["total_count"])
}

func TestOrderHandlerUpdateClaims(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodPatch, "/orders/o1", `{"name":"Anne"}`)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})

	handler.Update(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	stored := repo.orders["o1"]
	require.NotNil(t, stored.ManagerID)
	assert.Equal(t, "mgr-1", *stored.ManagerID)
	require.NotNil(t, stored.Status)
	assert.Equal(t, models.StatusInWork, *stored.Status)
}

func TestOrderHandlerUpdateForbidden(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-2")},
	}}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodPatch, "/orders/o1", `{"name":"Anne"}`)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})

	handler.Update(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "you cannot act on this order", envelope.Error.Message)
}

func TestOrderHandlerUpdateInvalidEnum(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodPatch, "/orders/o1", `{"status":"Pending"}`)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})

	handler.Update(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlerAssignGroupRequiresBody(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodPost, "/orders/o1/group", `{}`)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})

	handler.AssignGroup(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlerGetNotFound(t *testing.T) {
	handler := newOrderHandlerWithRepo(&fakeOrderRepo{orders: map[string]models.Order{}})

	c, rec := testContext(t, http.MethodGet, "/orders/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandlerExportXLSX(t *testing.T) {
	repo := &fakeOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", Name: "Anna", Status: strPtr(models.StatusInWork)},
	}}
	handler := newOrderHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodGet, "/orders/export?format=xlsx", "")
	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=orders_")
	assert.True(t, repo.lastFilter.Unpaged)
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestOrderHandlerExportUnknownFormat(t *testing.T) {
	handler := newOrderHandlerWithRepo(&fakeOrderRepo{orders: map[string]models.Order{}})

	c, rec := testContext(t, http.MethodGet, "/orders/export?format=doc", "")
	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
