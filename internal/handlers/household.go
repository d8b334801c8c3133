package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20
	defaultImportBytes = 10 << 20
	formFieldFile      = "file"
)

// HouseholdAPI is the household use-case surface served over HTTP.
type HouseholdAPI interface {
	List(ctx context.Context, actor policy.Actor, q services.HouseholdQuery) (services.HouseholdPage, error)
	ListDeleted(ctx context.Context, actor policy.Actor, q services.HouseholdQuery) (services.HouseholdPage, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.Household, error)
	Create(ctx context.Context, actor policy.Actor, household types.Household) (types.Household, error)
	Update(ctx context.Context, actor policy.Actor, id int, household types.Household) (types.Household, error)
	Delete(ctx context.Context, actor policy.Actor, id int) error
	Recover(ctx context.Context, actor policy.Actor, id int) error
	Purge(ctx context.Context, actor policy.Actor) (int, error)
}

// Importer loads households from an uploaded spreadsheet.
type Importer interface {
	Import(ctx context.Context, actor policy.Actor, filename string, data []byte) (services.ImportResult, error)
}

// HouseholdHandler provides HTTP handlers for households.
type HouseholdHandler struct {
	households     HouseholdAPI
	importer       Importer
	maxImportBytes int64
	formMemory     int64
	logger         *zap.Logger
}

// NewHouseholdHandler constructs a handler. A non-positive maxImportBytes
// uses 10 MiB.
func NewHouseholdHandler(households HouseholdAPI, importer Importer, maxImportBytes int64, logger *zap.Logger) *HouseholdHandler {
	if maxImportBytes <= 0 {
		maxImportBytes = defaultImportBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HouseholdHandler{
		households:     households,
		importer:       importer,
		maxImportBytes: maxImportBytes,
		formMemory:     maxMultipartMemory,
		logger:         logger,
	}
}

// HouseholdRouter registers household routes on the given router.
func HouseholdRouter(r chi.Router, handler *HouseholdHandler) {
	r.Get("/", handler.ListHouseholds)
	r.Post("/", handler.CreateHousehold)
	r.Delete("/", handler.PurgeHouseholds)
	r.Get("/deleted", handler.ListDeletedHouseholds)
	r.Post("/import", handler.ImportHouseholds)
	r.Route("/{householdID}", func(r chi.Router) {
		r.Get("/", handler.GetHousehold)
		r.Put("/", handler.UpdateHousehold)
		r.Delete("/", handler.DeleteHousehold)
		r.Post("/recover", handler.RecoverHousehold)
	})
}

// HouseholdRequest is the create and update payload. Workers may omit
// area_id; their own area is always used.
type HouseholdRequest struct {
	HeadName             string                 `json:"head_name" validate:"required"`
	Address              string                 `json:"address" validate:"required"`
	AreaID               int                    `json:"area_id" validate:"gte=0"`
	FamilyIncome         *float64               `json:"family_income" validate:"required,gte=0"`
	EmploymentStatus     types.EmploymentStatus `json:"employment_status" validate:"required"`
	EducationLevel       types.EducationLevel   `json:"education_level" validate:"required"`
	HousingType          types.HousingType      `json:"housing_type" validate:"required"`
	AccessToServices     types.ServiceAccess    `json:"access_to_services"`
	GovernmentAssistance []string               `json:"government_assistance"`
}

func (req HouseholdRequest) household() types.Household {
	assistance := req.GovernmentAssistance
	if assistance == nil {
		assistance = []string{}
	}
	return types.Household{
		HeadName:             strings.TrimSpace(req.HeadName),
		Address:              strings.TrimSpace(req.Address),
		AreaID:               req.AreaID,
		FamilyIncome:         *req.FamilyIncome,
		EmploymentStatus:     req.EmploymentStatus,
		EducationLevel:       req.EducationLevel,
		HousingType:          req.HousingType,
		AccessToServices:     req.AccessToServices,
		GovernmentAssistance: assistance,
	}
}

// ImportResponse reports the outcome of a household import.
type ImportResponse struct {
	Message string `json:"message"`
	services.ImportResult
}

// PurgeResponse reports how many households a purge removed.
type PurgeResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

func (h *HouseholdHandler) ListHouseholds(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.households.List)
}

func (h *HouseholdHandler) ListDeletedHouseholds(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.households.ListDeleted)
}

type householdLister func(ctx context.Context, actor policy.Actor, q services.HouseholdQuery) (services.HouseholdPage, error)

func (h *HouseholdHandler) list(w http.ResponseWriter, r *http.Request, lister householdLister) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q, err := parseHouseholdQuery(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	page, err := lister(r.Context(), actor, q)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HouseholdHandler) GetHousehold(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "householdID")
	if !ok {
		return
	}

	household, err := h.households.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req HouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	created, err := h.households.Create(r.Context(), actor, req.household())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HouseholdHandler) UpdateHousehold(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "householdID")
	if !ok {
		return
	}

	var req HouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	updated, err := h.households.Update(r.Context(), actor, id, req.household())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *HouseholdHandler) DeleteHousehold(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "householdID")
	if !ok {
		return
	}
	if err := h.households.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) RecoverHousehold(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, h.logger, "householdID")
	if !ok {
		return
	}
	if err := h.households.Recover(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	household, err := h.households.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) PurgeHouseholds(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	removed, err := h.households.Purge(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{
		Message: fmt.Sprintf("%d households permanently deleted", removed),
		Removed: removed,
	})
}

func (h *HouseholdHandler) ImportHouseholds(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes+h.formMemory)
	if err := r.ParseMultipartForm(h.formMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeServiceError(w, h.logger, apperr.Validation(formFieldFile, "uploaded file too large"))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	filename, data, err := readUpload(r.MultipartForm, formFieldFile, h.maxImportBytes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.importer.Import(r.Context(), actor, filename, data)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Message:      fmt.Sprintf("%d households imported, %d skipped", result.Inserted, result.Skipped),
		ImportResult: result,
	})
}

func parseHouseholdQuery(r *http.Request) (services.HouseholdQuery, error) {
	page, limit, err := parsePagination(r)
	if err != nil {
		return services.HouseholdQuery{}, err
	}
	areaID, err := parseOptionalInt(r, "areaId")
	if err != nil {
		return services.HouseholdQuery{}, err
	}
	query := r.URL.Query()
	return services.HouseholdQuery{
		AreaID:    areaID,
		RiskLevel: types.RiskLevel(strings.TrimSpace(query.Get("riskLevel"))),
		Search:    strings.TrimSpace(query.Get("search")),
		Page:      page,
		Limit:     limit,
	}, nil
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperr.Validation("page", "invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, apperr.Validation("limit", "invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func readUpload(form *multipart.Form, field string, limit int64) (string, []byte, error) {
	if form == nil {
		return "", nil, apperr.Validation(field, "missing form data")
	}

	files := form.File[field]
	if len(files) == 0 {
		return "", nil, apperr.Validation(field, field+" is required")
	}
	if len(files) > 1 {
		return "", nil, apperr.Validation(field, "only one file is allowed")
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		return "", nil, apperr.Validation(field, "failed to read upload")
	}
	data, err := readFileLimited(file, limit)
	_ = file.Close()
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.Validation(formFieldFile, "uploaded file too large")
		}
		return nil, apperr.Validation(formFieldFile, "failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, apperr.Validation(formFieldFile, "uploaded file too large")
	}
	return data, nil
}
