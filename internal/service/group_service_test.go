package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

type mockGroupRepo struct {
	groups []models.Group
}

func (m *mockGroupRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, g := range m.groups {
		if g.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockGroupRepo) Create(ctx context.Context, group *models.Group) error {
	group.ID = "generated"
	m.groups = append(m.groups, *group)
	return nil
}

func (m *mockGroupRepo) List(ctx context.Context) ([]models.Group, error) {
	return m.groups, nil
}

func TestGroupServiceCreate(t *testing.T) {
	repo := &mockGroupRepo{}
	svc := NewGroupService(repo, validator.New(), zap.NewNop())

	group, err := svc.Create(context.Background(), CreateGroupRequest{Name: "sep-2026"})
	require.NoError(t, err)
	assert.Equal(t, "generated", group.ID)
	assert.Len(t, repo.groups, 1)
}

func TestGroupServiceCreateDuplicateName(t *testing.T) {
	repo := &mockGroupRepo{groups: []models.Group{{ID: "g1", Name: "sep-2026"}}}
	svc := NewGroupService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateGroupRequest{Name: "sep-2026"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
	assert.Equal(t, "group with this name already exists", appErr.Message)
	assert.Len(t, repo.groups, 1)
}

func TestGroupServiceCreateRequiresName(t *testing.T) {
	svc := NewGroupService(&mockGroupRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateGroupRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestGroupServiceListEmptyIsNotNil(t *testing.T) {
	svc := NewGroupService(&mockGroupRepo{}, validator.New(), zap.NewNop())

	groups, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
