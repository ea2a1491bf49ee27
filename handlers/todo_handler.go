package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryanvade/infra-demo-lnl/middleware"
	"github.com/ryanvade/infra-demo-lnl/models"
	"github.com/ryanvade/infra-demo-lnl/services/todo"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"go.uber.org/zap"
)

// TodoService is the subset of todo.Service used by the handler
type TodoService interface {
	Create(ctx context.Context, owner string, req todo.CreateRequest) (*models.Todo, error)
	List(ctx context.Context, owner string, req todo.ListRequest) (*models.TodoPage, error)
	Get(ctx context.Context, owner, id string) (*models.Todo, error)
	Update(ctx context.Context, owner, id string, req todo.UpdateRequest) (*models.Todo, error)
	Delete(ctx context.Context, owner, id string) error
}

// CreateTodoResponse is returned by POST /api/todos
type CreateTodoResponse struct {
	ID string `json:"id"`
}

// TodoHandler handles todo HTTP requests
type TodoHandler struct {
	todos  TodoService
	logger *zap.Logger
}

// NewTodoHandler creates a new TodoHandler
func NewTodoHandler(todos TodoService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{
		todos:  todos,
		logger: logger,
	}
}

// HandleCreate handles POST /api/todos
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req todo.CreateRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	created, err := h.todos.Create(r.Context(), owner, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, CreateTodoResponse{ID: created.ID.String()})
}

// HandleList handles GET /api/todos?lastId=&limit=
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.todos.List(r.Context(), owner, todo.ListRequest{
		LastID: query.Get("lastId"),
		Limit:  query.Get("limit"),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, page)
}

// HandleGet handles GET /api/todos/{id}
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	found, err := h.todos.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, found)
}

// HandleUpdate handles PATCH /api/todos/{id}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req todo.UpdateRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	updated, err := h.todos.Update(r.Context(), owner, chi.URLParam(r, "id"), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, updated)
}

// HandleDelete handles DELETE /api/todos/{id}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.todos.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// owner returns the verified subject. Routes are mounted behind the auth
// gate, so a missing principal is a wiring error.
func (h *TodoHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Subject == "" {
		h.logger.Error("todo route reached without verified claims",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path))
		_ = utils.WriteForbidden(w, "Missing authorization header")
		return "", false
	}
	return claims.Subject, true
}

// MeHandler handles GET /api/me
type MeHandler struct {
	logger *zap.Logger
}

// NewMeHandler creates a new MeHandler
func NewMeHandler(logger *zap.Logger) *MeHandler {
	return &MeHandler{logger: logger}
}

// HandleMe returns the verified claims of the caller
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteForbidden(w, "Missing authorization header")
		return
	}
	_ = utils.WriteOK(w, claims)
}
