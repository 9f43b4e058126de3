package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

type mockOrderRepo struct {
	orders      map[string]models.Order
	lastFilter  models.OrderFilter
	listTotal   int
	mutateCalls int
	err         error
}

func (m *mockOrderRepo) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	orders := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	return orders, m.listTotal, nil
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	if o, ok := m.orders[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrderRepo) Mutate(ctx context.Context, id string, apply func(*models.Order) error) (*models.Order, error) {
	m.mutateCalls++
	o, ok := m.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := apply(&o); err != nil {
		return nil, err
	}
	m.orders[id] = o
	return &o, nil
}

func strPtr(s string) *string { return &s }

func TestOrderServiceUpdateClaimsUnownedOrder(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", Name: "Anna"},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{Name: strPtr("Anne")}, "mgr-1", false)
	require.NoError(t, err)
	require.NotNil(t, order.ManagerID)
	assert.Equal(t, "mgr-1", *order.ManagerID)
	require.NotNil(t, order.Status)
	assert.Equal(t, models.StatusInWork, *order.Status)
	assert.Equal(t, "Anne", order.Name)
}

func TestOrderServiceUpdateForbiddenForForeignOrder(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-2"), Status: strPtr(models.StatusInWork)},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	_, err := svc.Update(context.Background(), "o1", OrderPatch{Name: strPtr("X")}, "mgr-1", false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)

	stored := repo.orders["o1"]
	assert.Equal(t, "mgr-2", *stored.ManagerID)
	assert.Empty(t, stored.Name)
}

func TestOrderServiceUpdateIsIdempotentForOwner(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-1"), Status: strPtr(models.StatusAgree)},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{Sum: intPtr(900)}, "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAgree, *order.Status)
	assert.Equal(t, 900, order.Sum)
}

func TestOrderServiceUpdateClaimAdvancesNewStatus(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", Status: strPtr(models.StatusNew)},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{}, "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInWork, *order.Status)
}

func TestOrderServiceUpdateExplicitStatusWins(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", Status: strPtr(models.StatusNew)},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{Status: strPtr(models.StatusAgree)}, "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAgree, *order.Status)
}

func TestOrderServiceUpdateEmptyStringIsNoOp(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", Email: "anna@example.com", Status: strPtr(models.StatusInWork), ManagerID: strPtr("mgr-1")},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{Email: strPtr(""), Status: strPtr("")}, "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", order.Email)
	assert.Equal(t, models.StatusInWork, *order.Status)
}

func TestOrderServiceUpdateRejectsUnknownEnum(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1"},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	_, err := svc.Update(context.Background(), "o1", OrderPatch{Status: strPtr("Pending")}, "mgr-1", false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
	assert.Contains(t, appErr.Message, "status must be one of")
	assert.Zero(t, repo.mutateCalls)
}

func TestOrderServiceAdminReassignsManager(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-2"), Status: strPtr(models.StatusInWork)},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.Update(context.Background(), "o1", OrderPatch{ManagerID: strPtr("mgr-3")}, "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, "mgr-3", *order.ManagerID)
}

func TestOrderServiceAssignGroupDoesNotClaim(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1"},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	order, err := svc.AssignGroup(context.Background(), "o1", "sep-2026", "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, "sep-2026", order.Group)
	assert.Nil(t, order.ManagerID)
	assert.Nil(t, order.Status)
}

func TestOrderServiceAssignGroupRequiresGroup(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	_, err := svc.AssignGroup(context.Background(), "o1", "  ", "mgr-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.Zero(t, repo.mutateCalls)
}

func TestOrderServiceAssignGroupForbiddenForForeignOrder(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-2")},
	}}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	_, err := svc.AssignGroup(context.Background(), "o1", "sep-2026", "mgr-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestOrderServiceGetNotFound(t *testing.T) {
	svc := NewOrderService(&mockOrderRepo{orders: map[string]models.Order{}}, nil, zap.NewNop(), 25)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestOrderServiceListUsesFixedPageSize(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]models.Order{}, listTotal: 120}
	svc := NewOrderService(repo, nil, zap.NewNop(), 25)

	_, pagination, err := svc.List(context.Background(), models.OrderFilter{Page: 3, PageSize: 500, Unpaged: true})
	require.NoError(t, err)
	assert.Equal(t, 25, repo.lastFilter.PageSize)
	assert.False(t, repo.lastFilter.Unpaged)
	assert.Equal(t, 3, pagination.Page)
	assert.Equal(t, 25, pagination.PageSize)
	assert.Equal(t, 120, pagination.TotalCount)
}

func intPtr(i int) *int { return &i }
