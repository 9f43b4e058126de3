package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

type commentRepository interface {
	CreateWithClaim(ctx context.Context, comment *models.Comment, claim func(*models.Order) error) (*models.Comment, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Comment, error)
}

type commentOrderReader interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
}

// CreateCommentRequest holds payload for creating comments.
type CreateCommentRequest struct {
	OrderID string `json:"order" validate:"required"`
	Text    string `json:"text" validate:"required"`
}

// CommentService handles the append-only comment log and the claim side
// effect that commenting carries.
type CommentService struct {
	comments  commentRepository
	orders    commentOrderReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the comment service.
func NewCommentService(comments commentRepository, orders commentOrderReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{comments: comments, orders: orders, cache: cache, validator: validate, logger: logger}
}

// Create persists a comment after claiming the order for the author. The
// claim and the insert share one transaction: a rejected claim means no
// comment, and a persisted comment always carries its claim side effect.
func (s *CommentService) Create(ctx context.Context, req CreateCommentRequest, author *models.JWTClaims) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	comment := &models.Comment{
		OrderID: req.OrderID,
		UserID:  author.UserID,
		Text:    req.Text,
	}
	created, err := s.comments.CreateWithClaim(ctx, comment, func(order *models.Order) error {
		return claimOrder(order, author.UserID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, statsCachePattern); err != nil {
			s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
		}
	}

	created.FirstName = author.FirstName
	created.LastName = author.LastName
	return created, nil
}

// List returns an order's comments, newest first, together with the order's
// utm/msg acquisition metadata.
func (s *CommentService) List(ctx context.Context, orderID string) (*models.CommentList, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	comments, err := s.comments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	return &models.CommentList{Comments: comments, UTM: order.UTM, Msg: order.Msg}, nil
}
