package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crm-orders-api/internal/models"
)

// GroupRepository manages persistence for order group tags.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// ExistsByName checks whether a group with the exact name already exists.
func (r *GroupRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM groups WHERE name = $1 LIMIT 1", name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check group name: %w", err)
	}
	return true, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if _, err := r.db.NamedExecContext(ctx, "INSERT INTO groups (id, name) VALUES (:id, :name)", group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// List returns all groups ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, "SELECT id, name FROM groups ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}
