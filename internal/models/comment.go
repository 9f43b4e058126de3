package models

import "time"

// Comment is an append-only note attached to an order. Comments are created
// only through the claim-checked path and are never edited or removed.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order"`
	UserID    string    `db:"user_id" json:"-"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CommentList is the listing payload: newest-first comments plus the order's
// acquisition metadata, denormalised for the caller's convenience.
type CommentList struct {
	Comments []Comment `json:"comments"`
	UTM      string    `json:"utm"`
	Msg      string    `json:"msg"`
}
