package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ryanvade/infra-demo-lnl/models"
	"github.com/ryanvade/infra-demo-lnl/repositories"
	"go.uber.org/zap"
)

const todoColumns = "id, owner, descr, completed, created_at, updated_at"

// TodoRepository implements the repositories.TodoRepository interface
type TodoRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *DB, logger *zap.Logger) repositories.TodoRepository {
	return &TodoRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new todo
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	query := r.db.driver.Rebind(`
		INSERT INTO todos (id, owner, descr, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		todo.ID,
		todo.Owner,
		todo.Descr,
		todo.Completed,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	r.logger.Debug("todo created", zap.String("id", todo.ID.String()))
	return nil
}

// GetByID retrieves a todo owned by owner
func (r *TodoRepository) GetByID(ctx context.Context, owner string, id uuid.UUID) (*models.Todo, error) {
	query := r.db.driver.Rebind(`
		SELECT ` + todoColumns + `
		FROM todos
		WHERE id = ? AND owner = ?
	`)

	executor := GetExecutor(ctx, r.db)
	todo, err := scanTodo(executor.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("todo %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// List returns one page of the owner's todos in ascending id order
func (r *TodoRepository) List(ctx context.Context, filter repositories.TodoFilter) ([]*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE owner = ?`
	args := []interface{}{filter.Owner}
	if filter.AfterID != nil {
		query += ` AND id > ?`
		args = append(args, *filter.AfterID)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, filter.Limit)

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, r.db.driver.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*models.Todo, 0, filter.Limit)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}

	return todos, nil
}

// Update applies the non-nil fields of update and reads the row back.
// Run it inside a transaction for an atomic read-back.
func (r *TodoRepository) Update(ctx context.Context, owner string, id uuid.UUID, update repositories.TodoUpdate) (*models.Todo, error) {
	query := r.db.driver.Rebind(`
		UPDATE todos
		SET descr = COALESCE(?, descr),
			completed = COALESCE(?, completed),
			updated_at = ?
		WHERE id = ? AND owner = ?
	`)

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		update.Descr,
		update.Completed,
		time.Now().UTC(),
		id,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("todo %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("todo updated", zap.String("id", id.String()))
	return r.GetByID(ctx, owner, id)
}

// Delete removes a todo owned by owner
func (r *TodoRepository) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	query := r.db.driver.Rebind(`DELETE FROM todos WHERE id = ? AND owner = ?`)

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("todo %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("todo deleted", zap.String("id", id.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	if err := row.Scan(
		&todo.ID,
		&todo.Owner,
		&todo.Descr,
		&todo.Completed,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return todo, nil
}
