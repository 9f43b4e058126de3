package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crm-orders-api/internal/models"
)

const orderColumns = `o.id, o.name, o.surname, o.email, o.phone, o.age, o.course, o.course_format, o.course_type,
        o.status, o.sum, o.already_paid, o.group_name, o.manager_id, u.first_name AS manager_name, o.utm, o.msg,
        o.created_at, o.updated_at`

// OrderRepository manages persistence for order records.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// List returns orders matching the provided filters together with the total
// match count. The same filter contract backs interactive listing and export;
// export passes Unpaged to receive every matching row.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	base := "FROM orders o LEFT JOIN users u ON u.id = o.manager_id"
	conditions := []string{"1=1"}
	var args []interface{}

	addSubstring := func(column, value string) {
		if value == "" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE $%d", column, len(args)+1))
		args = append(args, "%"+strings.ToLower(value)+"%")
	}
	addExact := func(column string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	addSubstring("o.name", filter.Name)
	addSubstring("o.surname", filter.Surname)
	addSubstring("o.email", filter.Email)
	addSubstring("o.phone", filter.Phone)
	addSubstring("o.group_name", filter.Group)
	addSubstring("u.first_name", filter.Manager)

	if filter.Course != "" {
		addExact("o.course", filter.Course)
	}
	if filter.CourseFormat != "" {
		addExact("o.course_format", filter.CourseFormat)
	}
	if filter.CourseType != "" {
		addExact("o.course_type", filter.CourseType)
	}
	if filter.Status != "" {
		addExact("o.status", filter.Status)
	}
	if filter.Age != nil {
		addExact("o.age", *filter.Age)
	}
	if filter.Sum != nil {
		addExact("o.sum", *filter.Sum)
	}
	if filter.AlreadyPaid != nil {
		addExact("o.already_paid", *filter.AlreadyPaid)
	}
	if filter.CreatedAt != "" {
		conditions = append(conditions, fmt.Sprintf("o.created_at::date = $%d", len(args)+1))
		args = append(args, filter.CreatedAt)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s", orderColumns, base, orderingClause(filter.Ordering))
	if !filter.Unpaged {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		size := filter.PageSize
		if size <= 0 {
			size = 25
		}
		query = fmt.Sprintf("%s LIMIT %d OFFSET %d", query, size, (page-1)*size)
	}

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

var orderSortColumns = map[string]string{
	"id":            "o.id",
	"name":          "o.name",
	"surname":       "o.surname",
	"email":         "o.email",
	"phone":         "o.phone",
	"age":           "o.age",
	"course":        "o.course",
	"course_format": "o.course_format",
	"course_type":   "o.course_type",
	"status":        "o.status",
	"sum":           "o.sum",
	"already_paid":  "o.already_paid",
	"group":         "o.group_name",
	"created_at":    "o.created_at",
	"manager":       "u.first_name",
}

// orderingClause resolves an "ordering" query value ("-" prefix for
// descending) against the sort whitelist. Unknown fields fall back to the
// default newest-first ordering.
func orderingClause(ordering string) string {
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = strings.TrimPrefix(ordering, "-")
	}
	column, ok := orderSortColumns[ordering]
	if !ok {
		return "o.created_at DESC, o.id DESC"
	}
	return fmt.Sprintf("%s %s, o.id DESC", column, direction)
}

// FindByID fetches a single order with its manager name.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders o LEFT JOIN users u ON u.id = o.manager_id WHERE o.id = $1", orderColumns)
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return &order, nil
}

// Mutate applies a guarded change to one order inside a transaction. The row
// is locked with FOR UPDATE before apply runs, so concurrent claims against
// the same unclaimed order resolve deterministically: exactly one writer
// wins, the other observes the claimed row and fails inside apply. Any error
// from apply rolls the transaction back with no mutation.
func (r *OrderRepository) Mutate(ctx context.Context, id string, apply func(*models.Order) error) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order mutation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	order, err := lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := apply(order); err != nil {
		return nil, err
	}

	order.UpdatedAt = time.Now().UTC()
	if err := updateOrderTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order mutation: %w", err)
	}
	return order, nil
}

func lockOrder(ctx context.Context, tx *sqlx.Tx, id string) (*models.Order, error) {
	const query = `SELECT id, name, surname, email, phone, age, course, course_format, course_type,
        status, sum, already_paid, group_name, manager_id, utm, msg, created_at, updated_at
        FROM orders WHERE id = $1 FOR UPDATE`
	var order models.Order
	if err := tx.GetContext(ctx, &order, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return &order, nil
}

func updateOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	const query = `UPDATE orders SET name = :name, surname = :surname, email = :email, phone = :phone, age = :age,
        course = :course, course_format = :course_format, course_type = :course_type, status = :status,
        sum = :sum, already_paid = :already_paid, group_name = :group_name, manager_id = :manager_id,
        utm = :utm, msg = :msg, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// StatusCounts aggregates orders per status across the whole table. The nil
// status bucket holds unset-status orders.
func (r *OrderRepository) StatusCounts(ctx context.Context) ([]models.StatusCount, int, error) {
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, "SELECT status, COUNT(*) AS count FROM orders GROUP BY status"); err != nil {
		return nil, 0, fmt.Errorf("order status counts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return counts, total, nil
}

// ManagerStatusCounts aggregates a single manager's orders per status.
func (r *OrderRepository) ManagerStatusCounts(ctx context.Context, managerID string) ([]models.StatusCount, int, error) {
	var counts []models.StatusCount
	const query = "SELECT status, COUNT(*) AS count FROM orders WHERE manager_id = $1 GROUP BY status"
	if err := r.db.SelectContext(ctx, &counts, query, managerID); err != nil {
		return nil, 0, fmt.Errorf("manager status counts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders WHERE manager_id = $1", managerID); err != nil {
		return nil, 0, fmt.Errorf("count manager orders: %w", err)
	}
	return counts, total, nil
}
