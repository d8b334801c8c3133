package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

// AreaAPI is the area use-case surface served over HTTP.
type AreaAPI interface {
	List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.Area, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.Area, error)
	Create(ctx context.Context, actor policy.Actor, in services.AreaInput) (types.Area, error)
	Update(ctx context.Context, actor policy.Actor, id int, in services.AreaInput) (types.Area, error)
	Delete(ctx context.Context, actor policy.Actor, id int) error
	Recover(ctx context.Context, actor policy.Actor, id int) error
}

// AreaHandler provides HTTP handlers for areas (barangays).
type AreaHandler struct {
	areas  AreaAPI
	logger *zap.Logger
}

func NewAreaHandler(areas AreaAPI, logger *zap.Logger) *AreaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AreaHandler{areas: areas, logger: logger}
}

// AreaRouter registers area routes on the given router.
func AreaRouter(r chi.Router, handler *AreaHandler) {
	r.Get("/", handler.ListAreas)
	r.Post("/", handler.CreateArea)
	r.Get("/deleted", handler.ListDeletedAreas)
	r.Route("/{areaID}", func(r chi.Router) {
		r.Get("/", handler.GetArea)
		r.Put("/", handler.UpdateArea)
		r.Delete("/", handler.DeleteArea)
		r.Post("/recover", handler.RecoverArea)
	})
}

// AreaRequest is the create and update payload. Location is a GeoJSON
// point; omitting it defaults to the origin on create and keeps the stored
// point on update.
type AreaRequest struct {
	Name     string          `json:"name" validate:"required"`
	Location *types.GeoPoint `json:"location"`
}

func (req AreaRequest) input() services.AreaInput {
	return services.AreaInput{Name: req.Name, Location: req.Location}
}

func (h *AreaHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *AreaHandler) ListDeletedAreas(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *AreaHandler) list(w http.ResponseWriter, r *http.Request, deleted bool) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	areas, err := h.areas.List(r.Context(), actor, deleted)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (h *AreaHandler) GetArea(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "areaID")
	if !ok {
		return
	}
	area, err := h.areas.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (h *AreaHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req AreaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	area, err := h.areas.Create(r.Context(), actor, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, area)
}

func (h *AreaHandler) UpdateArea(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "areaID")
	if !ok {
		return
	}
	var req AreaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	area, err := h.areas.Update(r.Context(), actor, id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (h *AreaHandler) DeleteArea(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "areaID")
	if !ok {
		return
	}
	if err := h.areas.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AreaHandler) RecoverArea(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "areaID")
	if !ok {
		return
	}
	if err := h.areas.Recover(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "area recovered"})
}
