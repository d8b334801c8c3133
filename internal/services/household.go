package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/metrics"
	"github.com/bayanihan-data/povassess/internal/mq"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/scoring"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	householdConflict = "an active household with the same head, area and address already exists"
)

// HouseholdRepository defines persistence operations for households.
type HouseholdRepository interface {
	List(ctx context.Context, filter types.HouseholdFilter, offset, limit int) ([]types.Household, int, error)
	Get(ctx context.Context, id int) (types.Household, error)
	FindActiveByKey(ctx context.Context, key types.HouseholdKey) (types.Household, error)
	Create(ctx context.Context, household types.Household) (types.Household, error)
	Update(ctx context.Context, household types.Household) (types.Household, error)
	SetDeleted(ctx context.Context, id int, deleted bool) error
	PurgeAll(ctx context.Context) (int, error)
	Summarize(ctx context.Context, areaID *int) ([]types.AreaSummary, error)
}

// EventPublisher publishes domain events. *mq.MQ satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) (string, error)
}

// HouseholdPage is one page of a household listing.
type HouseholdPage struct {
	Households []types.Household `json:"households"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// HouseholdQuery carries the list filters a caller may request.
type HouseholdQuery struct {
	AreaID    *int
	RiskLevel types.RiskLevel
	Search    string
	Page      int
	Limit     int
}

// HouseholdService encapsulates household use-cases.
type HouseholdService struct {
	repo    HouseholdRepository
	areas   AreaRepository
	metrics *metrics.Metrics
	events  EventPublisher
	logger  *zap.Logger
}

func NewHouseholdService(repo HouseholdRepository, areas AreaRepository, m *metrics.Metrics, events EventPublisher, logger *zap.Logger) *HouseholdService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HouseholdService{repo: repo, areas: areas, metrics: m, events: events, logger: logger}
}

// List returns active households visible to the actor.
func (s *HouseholdService) List(ctx context.Context, actor policy.Actor, q HouseholdQuery) (HouseholdPage, error) {
	return s.list(ctx, actor, q, false)
}

// ListDeleted returns soft-deleted households visible to the actor.
func (s *HouseholdService) ListDeleted(ctx context.Context, actor policy.Actor, q HouseholdQuery) (HouseholdPage, error) {
	return s.list(ctx, actor, q, true)
}

func (s *HouseholdService) list(ctx context.Context, actor policy.Actor, q HouseholdQuery, deleted bool) (HouseholdPage, error) {
	scope, err := policy.HouseholdScope(actor)
	if err != nil {
		return HouseholdPage{}, err
	}
	if q.RiskLevel != "" && !q.RiskLevel.Valid() {
		return HouseholdPage{}, apperr.Validation("riskLevel", "riskLevel must be one of Low, Moderate, High")
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	result := HouseholdPage{Households: []types.Household{}, Page: page, Limit: limit}

	filter := types.HouseholdFilter{
		AreaID:    q.AreaID,
		RiskLevel: q.RiskLevel,
		Search:    q.Search,
		Deleted:   deleted,
	}
	if !scope.All() {
		if q.AreaID != nil && *q.AreaID != *scope.AreaID {
			return result, nil
		}
		filter.AreaID = scope.AreaID
	}

	households, total, err := s.repo.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return HouseholdPage{}, storeError(err, "household", householdConflict)
	}
	result.Households = households
	result.Total = total
	return result, nil
}

// Get returns an active household the actor may see.
func (s *HouseholdService) Get(ctx context.Context, actor policy.Actor, id int) (types.Household, error) {
	household, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Household{}, storeError(err, "household", householdConflict)
	}
	if household.Deleted {
		return types.Household{}, apperr.NotFound("household")
	}
	if err := policy.CanReadHousehold(actor, household); err != nil {
		return types.Household{}, err
	}
	return household, nil
}

// Create validates, scores and stores a new household. Workers always write
// into their own area.
func (s *HouseholdService) Create(ctx context.Context, actor policy.Actor, household types.Household) (types.Household, error) {
	forced, err := policy.AssignedArea(actor)
	if err != nil {
		return types.Household{}, err
	}
	if forced != nil {
		household.AreaID = *forced
	}
	if err := ValidateHousehold(household); err != nil {
		return types.Household{}, err
	}
	area, err := s.activeArea(ctx, household.AreaID)
	if err != nil {
		return types.Household{}, err
	}

	household.ID = 0
	household.CreatedBy = &actor.ID
	result := scoring.Apply(&household)

	created, err := s.repo.Create(ctx, household)
	if err != nil {
		return types.Household{}, storeError(err, "household", householdConflict)
	}
	s.metrics.ObserveScore(result.RiskLevel)
	created.Area = &area
	return created, nil
}

// Update replaces an active household's attributes and re-scores it.
func (s *HouseholdService) Update(ctx context.Context, actor policy.Actor, id int, household types.Household) (types.Household, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Household{}, storeError(err, "household", householdConflict)
	}
	if existing.Deleted {
		return types.Household{}, apperr.NotFound("household")
	}
	if err := policy.CanWriteHouseholdIn(actor, existing.AreaID); err != nil {
		return types.Household{}, err
	}
	forced, err := policy.AssignedArea(actor)
	if err != nil {
		return types.Household{}, err
	}
	if forced != nil {
		household.AreaID = *forced
	}
	if err := ValidateHousehold(household); err != nil {
		return types.Household{}, err
	}
	area, err := s.activeArea(ctx, household.AreaID)
	if err != nil {
		return types.Household{}, err
	}

	household.ID = existing.ID
	household.CreatedBy = existing.CreatedBy
	household.CreatedAt = existing.CreatedAt
	result := scoring.Apply(&household)

	updated, err := s.repo.Update(ctx, household)
	if err != nil {
		return types.Household{}, storeError(err, "household", householdConflict)
	}
	s.metrics.ObserveScore(result.RiskLevel)
	updated.Area = &area
	return updated, nil
}

// Delete soft-deletes an active household.
func (s *HouseholdService) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return s.setDeleted(ctx, actor, id, true)
}

// Recover restores a soft-deleted household.
func (s *HouseholdService) Recover(ctx context.Context, actor policy.Actor, id int) error {
	return s.setDeleted(ctx, actor, id, false)
}

func (s *HouseholdService) setDeleted(ctx context.Context, actor policy.Actor, id int, deleted bool) error {
	if err := policy.CanWriteHouseholds(actor); err != nil {
		return err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeError(err, "household", householdConflict)
	}
	if existing.Deleted == deleted {
		return apperr.NotFound("household")
	}
	if err := policy.CanWriteHouseholdIn(actor, existing.AreaID); err != nil {
		return err
	}
	if err := s.repo.SetDeleted(ctx, id, deleted); err != nil {
		return storeError(err, "household", householdConflict)
	}
	return nil
}

// Purge permanently removes every household and returns how many were removed.
func (s *HouseholdService) Purge(ctx context.Context, actor policy.Actor) (int, error) {
	if err := policy.CanPurgeHouseholds(actor); err != nil {
		return 0, err
	}
	removed, err := s.repo.PurgeAll(ctx)
	if err != nil {
		return 0, storeError(err, "household", householdConflict)
	}
	s.logger.Info("households purged", zap.Int("actor_id", actor.ID), zap.Int("removed", removed))
	if s.events != nil {
		payload := map[string]int{"actor_id": actor.ID, "removed": removed}
		if _, err := s.events.PublishEvent(ctx, mq.ChannelHouseholdsPurged, payload); err != nil {
			s.logger.Warn("publish purge event failed", zap.Error(err))
		}
	}
	return removed, nil
}

func (s *HouseholdService) activeArea(ctx context.Context, id int) (types.Area, error) {
	return activeArea(ctx, s.areas, id)
}

func activeArea(ctx context.Context, areas AreaRepository, id int) (types.Area, error) {
	if id <= 0 {
		return types.Area{}, apperr.Validation("area_id", "area is required")
	}
	area, err := areas.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Area{}, apperr.NotFound("area")
		}
		return types.Area{}, storeError(err, "area", "area already exists")
	}
	if area.Deleted {
		return types.Area{}, apperr.NotFound("area")
	}
	return area, nil
}

// ValidateHousehold checks the intake fields of a household. Income must be
// a finite non-negative number.
func ValidateHousehold(h types.Household) error {
	if strings.TrimSpace(h.HeadName) == "" {
		return apperr.Validation("head_name", "household head is required")
	}
	if strings.TrimSpace(h.Address) == "" {
		return apperr.Validation("address", "address is required")
	}
	if math.IsNaN(h.FamilyIncome) || math.IsInf(h.FamilyIncome, 0) {
		return apperr.Validation("family_income", "family income must be a number")
	}
	if h.FamilyIncome < 0 {
		return apperr.Validation("family_income", "family income must not be negative")
	}
	if !h.EmploymentStatus.Valid() {
		return apperr.Validation("employment_status", "employment status must be one of Employed, Unemployed, Self-Employed")
	}
	if !h.EducationLevel.Valid() {
		return apperr.Validation("education_level", "education level must be one of None, Elementary, High School, College")
	}
	if !h.HousingType.Valid() {
		return apperr.Validation("housing_type", "housing type must be one of Owned, Rented, Informal Settler")
	}
	return nil
}
