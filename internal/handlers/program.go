package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

const dateLayout = "2006-01-02"

// ProgramAPI is the program use-case surface served over HTTP.
type ProgramAPI interface {
	List(ctx context.Context, actor policy.Actor) ([]types.Program, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.Program, error)
	Create(ctx context.Context, actor policy.Actor, in services.ProgramInput) (types.Program, error)
	Update(ctx context.Context, actor policy.Actor, id int, in services.ProgramInput) (types.Program, error)
	Delete(ctx context.Context, actor policy.Actor, id int) error
}

// ProgramHandler provides HTTP handlers for assistance programs.
type ProgramHandler struct {
	programs ProgramAPI
	logger   *zap.Logger
}

func NewProgramHandler(programs ProgramAPI, logger *zap.Logger) *ProgramHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramHandler{programs: programs, logger: logger}
}

// ProgramRouter registers program routes on the given router.
func ProgramRouter(r chi.Router, handler *ProgramHandler) {
	r.Get("/", handler.ListPrograms)
	r.Post("/", handler.CreateProgram)
	r.Route("/{programID}", func(r chi.Router) {
		r.Get("/", handler.GetProgram)
		r.Put("/", handler.UpdateProgram)
		r.Delete("/", handler.DeleteProgram)
	})
}

// ProgramRequest is the create and update payload. Dates are YYYY-MM-DD or
// RFC 3339 timestamps.
type ProgramRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
}

func (req ProgramRequest) input() (services.ProgramInput, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return services.ProgramInput{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return services.ProgramInput{}, err
	}
	return services.ProgramInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validation(field, field+" must be a date (YYYY-MM-DD)")
}

func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	programs, err := h.programs.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "programID")
	if !ok {
		return
	}
	program, err := h.programs.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	in, err := decodeProgram(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	program, err := h.programs.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, program)
}

func (h *ProgramHandler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "programID")
	if !ok {
		return
	}
	in, err := decodeProgram(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	program, err := h.programs.Update(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "programID")
	if !ok {
		return
	}
	if err := h.programs.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeProgram(r *http.Request) (services.ProgramInput, error) {
	var req ProgramRequest
	if err := decodeJSON(r, &req); err != nil {
		return services.ProgramInput{}, err
	}
	return req.input()
}
