package models

import "time"

// Task is a unit of work worth a fixed point value.
type Task struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Points      int       `db:"points" json:"points"`
	AppLink     *string   `db:"app_link" json:"app_link,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
