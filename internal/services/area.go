package services

import (
	"context"
	"strings"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/types"
)

const areaConflict = "an area with this name already exists"

// AreaRepository defines persistence operations for areas.
type AreaRepository interface {
	List(ctx context.Context, deleted bool) ([]types.Area, error)
	Get(ctx context.Context, id int) (types.Area, error)
	FindByName(ctx context.Context, name string) (types.Area, error)
	Create(ctx context.Context, area types.Area) (types.Area, error)
	Update(ctx context.Context, area types.Area) (types.Area, error)
	SetDeleted(ctx context.Context, id int, deleted bool) error
}

// AreaInput is the writable part of an area. A nil Location stores the origin.
type AreaInput struct {
	Name     string
	Location *types.GeoPoint
}

// AreaService encapsulates area (barangay) use-cases.
type AreaService struct {
	repo AreaRepository
}

func NewAreaService(repo AreaRepository) *AreaService {
	return &AreaService{repo: repo}
}

func (s *AreaService) List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.Area, error) {
	if err := policy.CanManageAreas(actor); err != nil {
		return nil, err
	}
	areas, err := s.repo.List(ctx, deleted)
	if err != nil {
		return nil, storeError(err, "area", areaConflict)
	}
	return areas, nil
}

func (s *AreaService) Get(ctx context.Context, actor policy.Actor, id int) (types.Area, error) {
	if err := policy.CanManageAreas(actor); err != nil {
		return types.Area{}, err
	}
	return activeArea(ctx, s.repo, id)
}

func (s *AreaService) Create(ctx context.Context, actor policy.Actor, in AreaInput) (types.Area, error) {
	if err := policy.CanManageAreas(actor); err != nil {
		return types.Area{}, err
	}
	area, err := buildArea(in)
	if err != nil {
		return types.Area{}, err
	}
	created, err := s.repo.Create(ctx, area)
	if err != nil {
		return types.Area{}, storeError(err, "area", areaConflict)
	}
	return created, nil
}

func (s *AreaService) Update(ctx context.Context, actor policy.Actor, id int, in AreaInput) (types.Area, error) {
	if err := policy.CanManageAreas(actor); err != nil {
		return types.Area{}, err
	}
	existing, err := activeArea(ctx, s.repo, id)
	if err != nil {
		return types.Area{}, err
	}
	area, err := buildArea(in)
	if err != nil {
		return types.Area{}, err
	}
	if in.Location == nil {
		area.Location = existing.Location
	}
	area.ID = existing.ID
	updated, err := s.repo.Update(ctx, area)
	if err != nil {
		return types.Area{}, storeError(err, "area", areaConflict)
	}
	return updated, nil
}

// Delete soft-deletes an active area.
func (s *AreaService) Delete(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanManageAreas(actor); err != nil {
		return err
	}
	return storeError(s.repo.SetDeleted(ctx, id, true), "area", areaConflict)
}

// Recover restores a soft-deleted area. It fails with a conflict when an
// active area now holds the same name.
func (s *AreaService) Recover(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanManageAreas(actor); err != nil {
		return err
	}
	return storeError(s.repo.SetDeleted(ctx, id, false), "area", areaConflict)
}

func buildArea(in AreaInput) (types.Area, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Area{}, apperr.Validation("name", "area name is required")
	}
	area := types.Area{Name: name, Location: types.NewGeoPoint(0, 0)}
	if in.Location != nil {
		lng, lat := in.Location.Coordinates[0], in.Location.Coordinates[1]
		if lng < -180 || lng > 180 {
			return types.Area{}, apperr.Validation("location", "longitude must be between -180 and 180")
		}
		if lat < -90 || lat > 90 {
			return types.Area{}, apperr.Validation("location", "latitude must be between -90 and 90")
		}
		area.Location = types.NewGeoPoint(lng, lat)
	}
	return area, nil
}
