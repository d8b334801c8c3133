package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

// UserAPI is the account use-case surface served over HTTP.
type UserAPI interface {
	List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.User, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.User, error)
	Create(ctx context.Context, actor policy.Actor, in services.UserInput) (types.User, error)
	Update(ctx context.Context, actor policy.Actor, id int, in services.UserUpdate) (types.User, error)
	Delete(ctx context.Context, actor policy.Actor, id int) error
	Recover(ctx context.Context, actor policy.Actor, id int) error
	AssignAreaToUnassignedWorkers(ctx context.Context, actor policy.Actor, areaID int) (int, error)
}

// UserHandler provides HTTP handlers for user accounts.
type UserHandler struct {
	users  UserAPI
	logger *zap.Logger
}

func NewUserHandler(users UserAPI, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Get("/deleted", handler.ListDeletedUsers)
	r.Post("/assign-area", handler.AssignArea)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
		r.Post("/recover", handler.RecoverUser)
	})
}

type CreateUserRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Role     types.Role `json:"role" validate:"required,oneof=admin ngo_staff worker"`
	AreaID   *int       `json:"area_id" validate:"omitempty,gt=0"`
}

// UpdateUserRequest replaces a profile. An omitted password keeps the
// current one; an omitted area_id clears the area.
type UpdateUserRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"omitempty,min=8"`
	Role     types.Role `json:"role" validate:"required,oneof=admin ngo_staff worker"`
	AreaID   *int       `json:"area_id" validate:"omitempty,gt=0"`
}

type AssignAreaRequest struct {
	AreaID int `json:"area_id" validate:"required,gt=0"`
}

type AssignAreaResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *UserHandler) ListDeletedUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request, deleted bool) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	users, err := h.users.List(r.Context(), actor, deleted)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "userID")
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	user, err := h.users.Create(r.Context(), actor, services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		AreaID:   req.AreaID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "userID")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	user, err := h.users.Update(r.Context(), actor, id, services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		AreaID:   req.AreaID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "userID")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) RecoverUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "userID")
	if !ok {
		return
	}
	if err := h.users.Recover(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	user, err := h.users.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) AssignArea(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req AssignAreaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	updated, err := h.users.AssignAreaToUnassignedWorkers(r.Context(), actor, req.AreaID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AssignAreaResponse{
		Message: fmt.Sprintf("assigned area to %d workers", updated),
		Updated: updated,
	})
}
