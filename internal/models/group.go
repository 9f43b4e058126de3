package models

// Group is a named label usable as an order tag. Orders reference groups by
// name only; there is no foreign key between the two tables.
type Group struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
