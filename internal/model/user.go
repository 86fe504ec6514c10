package model

import "time"

// User owns categories, rules and transactions.
type User struct {
	CreatedAt time.Time
	ID        string
	Email     string
	Name      string
}
