package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	"github.com/noah-isme/crm-orders-api/internal/service"
)

type fakeStatisticsRepo struct {
	global []models.StatusCount
	total  int
	byUser map[string][]models.StatusCount
	users  map[string]*models.User
}

func (f *fakeStatisticsRepo) StatusCounts(ctx context.Context) ([]models.StatusCount, int, error) {
	return f.global, f.total, nil
}

func (f *fakeStatisticsRepo) ManagerStatusCounts(ctx context.Context, managerID string) ([]models.StatusCount, int, error) {
	counts := f.byUser[managerID]
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return counts, total, nil
}

func (f *fakeStatisticsRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newStatisticsHandlerWithRepo(repo *fakeStatisticsRepo) *StatisticsHandler {
	return NewStatisticsHandler(service.NewStatisticsService(repo, repo, nil, nil, zap.NewNop()))
}

func TestStatisticsHandlerOrders(t *testing.T) {
	repo := &fakeStatisticsRepo{
		global: []models.StatusCount{
			{Status: strPtr(models.StatusInWork), Count: 4},
			{Status: nil, Count: 7},
		},
		total: 11,
	}
	handler := newStatisticsHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodGet, "/admin/statistic/orders", "")
	handler.Orders(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var stats models.OrderStatistics
	require.NoError(t, json.Unmarshal(envelope.Data, &stats))
	assert.Equal(t, 11, stats.TotalCount)
	require.Len(t, stats.Statuses, 6)
	assert.Equal(t, "null", stats.Statuses[5].Status)
	assert.Equal(t, 7, stats.Statuses[5].Count)
}

func TestStatisticsHandlerManager(t *testing.T) {
	repo := &fakeStatisticsRepo{
		byUser: map[string][]models.StatusCount{
			"u1": {{Status: strPtr(models.StatusAgree), Count: 3}},
		},
		users: map[string]*models.User{
			"u1": {ID: "u1", Role: models.RoleManager},
		},
	}
	handler := newStatisticsHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodGet, "/admin/statistic/users/u1", "")
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	handler.Manager(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var stats models.OrderStatistics
	require.NoError(t, json.Unmarshal(envelope.Data, &stats))
	assert.Equal(t, 3, stats.TotalCount)
	require.Len(t, stats.Statuses, 1)
	assert.Equal(t, models.StatusAgree, stats.Statuses[0].Status)
}

func TestStatisticsHandlerManagerUnknownUser(t *testing.T) {
	repo := &fakeStatisticsRepo{users: map[string]*models.User{}}
	handler := newStatisticsHandlerWithRepo(repo)

	c, rec := testContext(t, http.MethodGet, "/admin/statistic/users/ghost", "")
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.Manager(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
