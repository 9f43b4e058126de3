package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crm-orders-api/internal/models"
)

// CommentRepository manages persistence for order comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// CreateWithClaim persists a comment and its claim side effect atomically.
// The order row is locked, claim runs against it, and both the order update
// and the comment insert commit together. If claim fails the transaction
// rolls back and no comment is persisted.
func (r *CommentRepository) CreateWithClaim(ctx context.Context, comment *models.Comment, claim func(*models.Order) error) (*models.Comment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin comment create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	order, err := lockOrder(ctx, tx, comment.OrderID)
	if err != nil {
		return nil, err
	}

	if err := claim(order); err != nil {
		return nil, err
	}

	order.UpdatedAt = time.Now().UTC()
	if err := updateOrderTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, order_id, user_id, text, created_at)
        VALUES (:id, :order_id, :user_id, :text, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit comment create: %w", err)
	}
	return comment, nil
}

// ListByOrder returns all comments for an order, newest first, with the
// author's name denormalised from the users table.
func (r *CommentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Comment, error) {
	const query = `SELECT c.id, c.order_id, c.user_id, u.first_name, u.last_name, c.text, c.created_at
        FROM comments c JOIN users u ON u.id = c.user_id
        WHERE c.order_id = $1 ORDER BY c.created_at DESC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, orderID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
