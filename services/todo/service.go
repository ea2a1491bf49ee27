// Package todo implements the todo use cases. Every operation is scoped to
// the verified subject that owns the todos.
package todo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/ryanvade/infra-demo-lnl/models"
	"github.com/ryanvade/infra-demo-lnl/repositories"
	"github.com/ryanvade/infra-demo-lnl/services"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CreateRequest is the body of POST /api/todos
type CreateRequest struct {
	Descr string `json:"descr" validate:"required,min=1,max=1024"`
}

// UpdateRequest is the body of PATCH /api/todos/{id}
type UpdateRequest struct {
	Completed *bool   `json:"completed" validate:"required"`
	Descr     *string `json:"descr,omitempty" validate:"omitempty,min=1,max=1024"`
}

// ListRequest carries the raw pagination query parameters
type ListRequest struct {
	LastID string
	Limit  string
}

// Service handles todo operations
type Service struct {
	todos     repositories.TodoRepository
	txManager repositories.TransactionManager
	logger    *zap.Logger
}

// NewService creates a new todo Service
func NewService(todos repositories.TodoRepository, txManager repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{
		todos:     todos,
		txManager: txManager,
		logger:    logger,
	}
}

// Create stores a new todo for owner
func (s *Service) Create(ctx context.Context, owner string, req CreateRequest) (*models.Todo, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	todo, err := models.NewTodo(owner, req.Descr)
	if err != nil {
		return nil, services.WrapInternal("failed to create todo", err)
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, services.WrapInternal("failed to create todo", err)
	}

	s.logger.Info("todo created",
		zap.String("todo_id", todo.ID.String()),
		zap.String("owner", owner))
	return todo, nil
}

// List returns one page of owner's todos after req.LastID
func (s *Service) List(ctx context.Context, owner string, req ListRequest) (*models.TodoPage, error) {
	filter := repositories.TodoFilter{Owner: owner, Limit: DefaultPageSize}

	if req.LastID != "" {
		lastID, err := uuid.Parse(req.LastID)
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid lastId", err).
				WithDetail("lastId", "lastId must be a valid UUID")
		}
		filter.AfterID = &lastID
	}

	if req.Limit != "" {
		limit, err := strconv.Atoi(req.Limit)
		if err != nil || limit < 1 || limit > MaxPageSize {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid limit", err).
				WithDetail("limit", "limit must be between 1 and "+strconv.Itoa(MaxPageSize))
		}
		filter.Limit = limit
	}

	todos, err := s.todos.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list todos", err)
	}
	return &models.TodoPage{Items: todos}, nil
}

// Get returns one of owner's todos. A malformed id is reported as not found.
func (s *Service) Get(ctx context.Context, owner, rawID string) (*models.Todo, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	todo, err := s.todos.GetByID(ctx, owner, id)
	if err != nil {
		return nil, repositoryError("failed to get todo", err)
	}
	return todo, nil
}

// Update applies a partial update and returns the stored todo
func (s *Service) Update(ctx context.Context, owner, rawID string, req UpdateRequest) (*models.Todo, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	update := repositories.TodoUpdate{Descr: req.Descr, Completed: req.Completed}
	todo, err := services.WithTransactionResult(ctx, s.txManager, func(ctx context.Context) (*models.Todo, error) {
		return s.todos.Update(ctx, owner, id, update)
	})
	if err != nil {
		return nil, repositoryError("failed to update todo", err)
	}

	s.logger.Info("todo updated",
		zap.String("todo_id", id.String()),
		zap.Bool("completed", todo.Completed))
	return todo, nil
}

// Delete removes one of owner's todos
func (s *Service) Delete(ctx context.Context, owner, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	if err := s.todos.Delete(ctx, owner, id); err != nil {
		return repositoryError("failed to delete todo", err)
	}

	s.logger.Info("todo deleted", zap.String("todo_id", id.String()))
	return nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", services.ErrTodoNotFound, err)
	}
	return id, nil
}

func repositoryError(message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %w", services.ErrTodoNotFound, err)
	}
	return services.WrapInternal(message, err)
}

func validate(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		domainErr := services.NewDomainError(services.ErrorTypeValidation, "validation failed", err)
		for field, message := range utils.GetValidationFields(err) {
			domainErr.WithDetail(field, message)
		}
		return domainErr
	}
	return nil
}
