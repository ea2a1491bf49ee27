package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ryanvade/infra-demo-lnl/models"
)

// ErrNotFound is returned when the requested row does not exist or is not visible to the caller
var ErrNotFound = errors.New("not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// TodoFilter selects one page of an owner's todos
type TodoFilter struct {
	Owner string
	// AfterID, when set, restricts the page to ids strictly greater than it.
	AfterID *uuid.UUID
	Limit   int
}

// TodoUpdate carries the fields of a partial update; nil fields are left unchanged
type TodoUpdate struct {
	Descr     *string
	Completed *bool
}

// TodoRepository handles todo data operations. Every lookup is scoped to an owner.
type TodoRepository interface {
	// Create inserts a new todo
	Create(ctx context.Context, todo *models.Todo) error

	// GetByID retrieves a todo owned by owner
	GetByID(ctx context.Context, owner string, id uuid.UUID) (*models.Todo, error)

	// List returns todos in ascending id order
	List(ctx context.Context, filter TodoFilter) ([]*models.Todo, error)

	// Update applies a partial update and returns the stored result
	Update(ctx context.Context, owner string, id uuid.UUID, update TodoUpdate) (*models.Todo, error)

	// Delete removes a todo owned by owner
	Delete(ctx context.Context, owner string, id uuid.UUID) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Todos TodoRepository
}
