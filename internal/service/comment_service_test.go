package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

type mockCommentRepo struct {
	orders   map[string]models.Order
	comments []models.Comment
}

func (m *mockCommentRepo) CreateWithClaim(ctx context.Context, comment *models.Comment, claim func(*models.Order) error) (*models.Comment, error) {
	order, ok := m.orders[comment.OrderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := claim(&order); err != nil {
		return nil, err
	}
	m.orders[comment.OrderID] = order
	comment.ID = "generated"
	m.comments = append(m.comments, *comment)
	return comment, nil
}

func (m *mockCommentRepo) ListByOrder(ctx context.Context, orderID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range m.comments {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	if o, ok := m.orders[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func managerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleManager, FirstName: "Kate", LastName: "Lane"}
}

func TestCommentServiceCreateClaimsOrder(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", UTM: "utm_source=fb", Msg: "call me"},
	}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	comment, err := svc.Create(context.Background(), CreateCommentRequest{OrderID: "o1", Text: "called, no answer"}, managerClaims("mgr-1"))
	require.NoError(t, err)
	assert.Equal(t, "generated", comment.ID)
	assert.Equal(t, "Kate", comment.FirstName)
	assert.Equal(t, "Lane", comment.LastName)

	order := repo.orders["o1"]
	require.NotNil(t, order.ManagerID)
	assert.Equal(t, "mgr-1", *order.ManagerID)
	require.NotNil(t, order.Status)
	assert.Equal(t, models.StatusInWork, *order.Status)
}

func TestCommentServiceCreateForbiddenLeavesNoComment(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{
		"o1": {ID: "o1", ManagerID: strPtr("mgr-2")},
	}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCommentRequest{OrderID: "o1", Text: "mine now"}, managerClaims("mgr-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
	assert.Empty(t, repo.comments)
}

func TestCommentServiceCreateUnknownOrder(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCommentRequest{OrderID: "missing", Text: "hi"}, managerClaims("mgr-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestCommentServiceCreateRequiresText(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCommentRequest{OrderID: "o1"}, managerClaims("mgr-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestCommentServiceListIncludesOrderMetadata(t *testing.T) {
	repo := &mockCommentRepo{
		orders: map[string]models.Order{
			"o1": {ID: "o1", UTM: "utm_source=fb", Msg: "call me"},
		},
		comments: []models.Comment{
			{ID: "c1", OrderID: "o1", Text: "first"},
			{ID: "c2", OrderID: "other", Text: "unrelated"},
		},
	}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	list, err := svc.List(context.Background(), "o1")
	require.NoError(t, err)
	assert.Len(t, list.Comments, 1)
	assert.Equal(t, "utm_source=fb", list.UTM)
	assert.Equal(t, "call me", list.Msg)
}

func TestCommentServiceListUnknownOrder(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.List(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestCommentServiceListEmptyIsNotNil(t *testing.T) {
	repo := &mockCommentRepo{orders: map[string]models.Order{"o1": {ID: "o1"}}}
	svc := NewCommentService(repo, repo, nil, validator.New(), zap.NewNop())

	list, err := svc.List(context.Background(), "o1")
	require.NoError(t, err)
	assert.NotNil(t, list.Comments)
	assert.Empty(t, list.Comments)
}
