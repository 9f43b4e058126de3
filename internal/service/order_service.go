package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

// statsCachePattern matches every cached statistics payload; any order
// mutation invalidates the lot.
const statsCachePattern = "stats:orders:*"

type orderRepository interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	Mutate(ctx context.Context, id string, apply func(*models.Order) error) (*models.Order, error)
}

// claimOrder is the single claim primitive shared by the update and comment
// paths. A claim succeeds when the order is unowned or already owned by the
// acting user; it is idempotent for the same actor. Claiming advances an
// unset, unknown or "New" status to "In work" and leaves any other status
// untouched.
func claimOrder(order *models.Order, userID string) error {
	if order.ManagerID != nil && *order.ManagerID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot act on this order")
	}
	order.ManagerID = &userID
	if order.Status == nil || !models.ValidOrderStatus(*order.Status) || *order.Status == models.StatusNew {
		status := models.StatusInWork
		order.Status = &status
	}
	return nil
}

// OrderPatch is a presence-aware partial update. A nil field was not sent.
// A sent empty string is deliberately treated the same as not sent: clients
// post the whole edit form and blank inputs must not clear stored values.
type OrderPatch struct {
	Name         *string `json:"name"`
	Surname      *string `json:"surname"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Age          *int    `json:"age"`
	Course       *string `json:"course"`
	CourseFormat *string `json:"course_format"`
	CourseType   *string `json:"course_type"`
	Status       *string `json:"status"`
	Sum          *int    `json:"sum"`
	AlreadyPaid  *int    `json:"already_paid"`
	Group        *string `json:"group"`
	UTM          *string `json:"utm"`
	Msg          *string `json:"msg"`
	// ManagerID is honored only for admin reassignment; for everyone else
	// the acting user becomes the manager.
	ManagerID *string `json:"manager_id"`
}

// Validate checks every enumerated field against its closed set before any
// field is applied, so a bad patch leaves the order untouched.
func (p OrderPatch) Validate() error {
	if err := validateEnum("status", p.Status, models.OrderStatuses); err != nil {
		return err
	}
	if err := validateEnum("course", p.Course, models.CourseChoices); err != nil {
		return err
	}
	if err := validateEnum("course_format", p.CourseFormat, models.CourseFormats); err != nil {
		return err
	}
	return validateEnum("course_type", p.CourseType, models.CourseTypes)
}

func validateEnum(field string, value *string, allowed []string) error {
	if value == nil || *value == "" {
		return nil
	}
	for _, a := range allowed {
		if a == *value {
			return nil
		}
	}
	msg := fmt.Sprintf("%s must be one of [%s]", field, strings.Join(allowed, ", "))
	return appErrors.Clone(appErrors.ErrValidation, msg)
}

func (p OrderPatch) apply(order *models.Order) {
	setString(&order.Name, p.Name)
	setString(&order.Surname, p.Surname)
	setString(&order.Email, p.Email)
	setString(&order.Phone, p.Phone)
	setString(&order.Course, p.Course)
	setString(&order.CourseFormat, p.CourseFormat)
	setString(&order.CourseType, p.CourseType)
	setString(&order.Group, p.Group)
	setString(&order.UTM, p.UTM)
	setString(&order.Msg, p.Msg)
	if p.Status != nil && *p.Status != "" {
		status := *p.Status
		order.Status = &status
	}
	if p.Age != nil {
		order.Age = *p.Age
	}
	if p.Sum != nil {
		order.Sum = *p.Sum
	}
	if p.AlreadyPaid != nil {
		order.AlreadyPaid = *p.AlreadyPaid
	}
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

// OrderService enforces the order ownership and status rules. Every mutation
// funnels through here so the claim invariants live in one place.
type OrderService struct {
	repo     orderRepository
	cache    *CacheService
	logger   *zap.Logger
	pageSize int
}

// NewOrderService constructs the order service.
func NewOrderService(repo orderRepository, cache *CacheService, logger *zap.Logger, pageSize int) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &OrderService{repo: repo, cache: cache, logger: logger, pageSize: pageSize}
}

// List returns one page of orders and pagination metadata. The page size is
// fixed server-side for interactive listing.
func (s *OrderService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error) {
	filter.Unpaged = false
	filter.PageSize = s.pageSize
	if filter.Page < 1 {
		filter.Page = 1
	}
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: s.pageSize, TotalCount: total}
	return orders, pagination, nil
}

// Get returns a single order.
func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	return order, nil
}

// Update applies a guarded partial update. Enum validation runs before the
// transaction so invalid patches never touch the row. Inside the transaction
// the ownership rule is checked against the locked row, the patch is applied,
// and the acting user becomes the manager (an update is itself a claim)
// unless an admin reassigns explicitly.
func (s *OrderService) Update(ctx context.Context, id string, patch OrderPatch, actorID string, isAdmin bool) (*models.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	_, err := s.repo.Mutate(ctx, id, func(order *models.Order) error {
		if isAdmin {
			if patch.ManagerID != nil && *patch.ManagerID != "" {
				managerID := *patch.ManagerID
				order.ManagerID = &managerID
			} else {
				order.ManagerID = &actorID
			}
		} else if err := claimOrder(order, actorID); err != nil {
			return err
		}
		patch.apply(order)
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, "failed to update order")
	}

	s.invalidateStats(ctx)

	// reload through the join so the response carries the manager name
	return s.Get(ctx, id)
}

// AssignGroup sets the free-text group tag on an order. The tag is not
// validated against the groups table; orders and groups are only loosely
// coupled by name. Assigning a group does not claim the order.
func (s *OrderService) AssignGroup(ctx context.Context, id, group, actorID string, isAdmin bool) (*models.Order, error) {
	if strings.TrimSpace(group) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group not provided")
	}

	_, err := s.repo.Mutate(ctx, id, func(order *models.Order) error {
		if !isAdmin && order.ManagerID != nil && *order.ManagerID != actorID {
			return appErrors.Clone(appErrors.ErrForbidden, "you cannot act on this order")
		}
		order.Group = group
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, "failed to assign group")
	}

	s.invalidateStats(ctx)
	return s.Get(ctx, id)
}

func (s *OrderService) mutationError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "order not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *OrderService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
