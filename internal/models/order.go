package models

import "time"

// Order statuses a lead moves through.
const (
	StatusInWork   = "In work"
	StatusNew      = "New"
	StatusAgree    = "Agree"
	StatusDisagree = "Disagree"
	StatusDubbing  = "Dubbing"
)

// StatusNull labels the unset-status bucket in statistics payloads.
const StatusNull = "null"

// Closed sets for the enumerated order fields. These are the single source of
// truth; every validation and statistics call site reads from here.
var (
	OrderStatuses = []string{StatusInWork, StatusNew, StatusAgree, StatusDisagree, StatusDubbing}
	CourseChoices = []string{"FS", "QACX", "JCX", "JSCX", "FE", "PCX"}
	CourseFormats = []string{"static", "online"}
	CourseTypes   = []string{"pro", "minimal", "premium", "incubator", "vip"}
)

// ValidOrderStatus reports membership in the status set.
func ValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Order represents one lead tracked through the sales pipeline. Rows are
// inserted by the public application form; the API never deletes them.
type Order struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Surname      string    `db:"surname" json:"surname"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Age          int       `db:"age" json:"age"`
	Course       string    `db:"course" json:"course"`
	CourseFormat string    `db:"course_format" json:"course_format"`
	CourseType   string    `db:"course_type" json:"course_type"`
	Status       *string   `db:"status" json:"status"`
	Sum          int       `db:"sum" json:"sum"`
	AlreadyPaid  int       `db:"already_paid" json:"already_paid"`
	Group        string    `db:"group_name" json:"group"`
	ManagerID    *string   `db:"manager_id" json:"manager_id,omitempty"`
	// Manager carries the owning manager's first name when the row was
	// loaded with its users join; blank for unclaimed orders.
	Manager   *string   `db:"manager_name" json:"manager"`
	UTM       string    `db:"utm" json:"utm"`
	Msg       string    `db:"msg" json:"msg"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderFilter captures the shared filter/ordering contract used by listing
// and export. Free-text fields match case-insensitive substrings, enumerated
// fields match exactly, numeric and date fields match exactly.
type OrderFilter struct {
	Name         string
	Surname      string
	Email        string
	Phone        string
	Age          *int
	Course       string
	CourseFormat string
	CourseType   string
	Status       string
	Sum          *int
	AlreadyPaid  *int
	Group        string
	Manager      string
	CreatedAt    string

	Ordering string
	Page     int
	PageSize int
	// Unpaged disables pagination for export queries.
	Unpaged bool
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
