package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

// ReferralAPI is the referral use-case surface served over HTTP.
type ReferralAPI interface {
	List(ctx context.Context, actor policy.Actor, status types.ReferralStatus) ([]types.Referral, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.Referral, error)
	Create(ctx context.Context, actor policy.Actor, in services.ReferralInput) (types.Referral, error)
	UpdateStatus(ctx context.Context, actor policy.Actor, id int, status types.ReferralStatus, notes *string) (types.Referral, error)
	Delete(ctx context.Context, actor policy.Actor, id int) error
}

// ReferralHandler provides HTTP handlers for referrals.
type ReferralHandler struct {
	referrals ReferralAPI
	logger    *zap.Logger
}

func NewReferralHandler(referrals ReferralAPI, logger *zap.Logger) *ReferralHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralHandler{referrals: referrals, logger: logger}
}

// ReferralRouter registers referral routes on the given router.
func ReferralRouter(r chi.Router, handler *ReferralHandler) {
	r.Get("/", handler.ListReferrals)
	r.Post("/", handler.CreateReferral)
	r.Route("/{referralID}", func(r chi.Router) {
		r.Get("/", handler.GetReferral)
		r.Patch("/status", handler.UpdateReferralStatus)
		r.Delete("/", handler.DeleteReferral)
	})
}

type ReferralRequest struct {
	HouseholdID int    `json:"household_id" validate:"required,gt=0"`
	ProgramID   int    `json:"program_id" validate:"required,gt=0"`
	Notes       string `json:"notes"`
}

// StatusRequest moves a referral to a new status. Notes replace the stored
// notes only when present.
type StatusRequest struct {
	Status types.ReferralStatus `json:"status" validate:"required"`
	Notes  *string              `json:"notes"`
}

func (h *ReferralHandler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status := types.ReferralStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	referrals, err := h.referrals.List(r.Context(), actor, status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, referrals)
}

func (h *ReferralHandler) GetReferral(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "referralID")
	if !ok {
		return
	}
	referral, err := h.referrals.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, referral)
}

func (h *ReferralHandler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ReferralRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	referral, err := h.referrals.Create(r.Context(), actor, services.ReferralInput{
		HouseholdID: req.HouseholdID,
		ProgramID:   req.ProgramID,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, referral)
}

func (h *ReferralHandler) UpdateReferralStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "referralID")
	if !ok {
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	referral, err := h.referrals.UpdateStatus(r.Context(), actor, id, req.Status, req.Notes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, referral)
}

func (h *ReferralHandler) DeleteReferral(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "referralID")
	if !ok {
		return
	}
	if err := h.referrals.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
