package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Todo is a task owned by one authenticated subject
type Todo struct {
	ID        uuid.UUID `json:"id" db:"id"` // UUIDv7, sorts by creation time
	Owner     string    `json:"-" db:"owner"`
	Descr     string    `json:"descr" db:"descr"`
	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the Todo model
func (Todo) TableName() string {
	return "todos"
}

// NewTodo creates a new, not yet completed Todo for owner
func NewTodo(owner, descr string) (*Todo, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate todo id: %w", err)
	}
	now := time.Now().UTC()
	return &Todo{
		ID:        id,
		Owner:     owner,
		Descr:     descr,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TodoPage is one page of a keyset-paginated listing
type TodoPage struct {
	Items []*Todo `json:"items"`
}
