package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// HouseholdRepository handles persistence for households.
type HouseholdRepository struct {
	db *sql.DB
}

func NewHouseholdRepository(db *sql.DB) *HouseholdRepository {
	return &HouseholdRepository{db: db}
}

const householdSelect = `
		SELECT h.id, h.head_name, h.address, h.area_id, h.family_income,
		       h.employment_status, h.education_level, h.housing_type,
		       h.access_to_services, h.government_assistance,
		       h.poverty_score, h.risk_level, h.deleted, h.created_by,
		       h.created_at, h.updated_at,
		       a.name, a.lng, a.lat, a.deleted, a.created_at, a.updated_at
		FROM households h
		JOIN areas a ON a.id = h.area_id`

func scanHousehold(row interface{ Scan(...any) error }) (types.Household, error) {
	var h types.Household
	var area types.Area
	var servicesJSON, assistanceJSON []byte
	var createdBy sql.NullInt64
	var lng, lat float64
	if err := row.Scan(
		&h.ID,
		&h.HeadName,
		&h.Address,
		&h.AreaID,
		&h.FamilyIncome,
		&h.EmploymentStatus,
		&h.EducationLevel,
		&h.HousingType,
		&servicesJSON,
		&assistanceJSON,
		&h.PovertyScore,
		&h.RiskLevel,
		&h.Deleted,
		&createdBy,
		&h.CreatedAt,
		&h.UpdatedAt,
		&area.Name,
		&lng,
		&lat,
		&area.Deleted,
		&area.CreatedAt,
		&area.UpdatedAt,
	); err != nil {
		return types.Household{}, err
	}

	if err := json.Unmarshal(servicesJSON, &h.AccessToServices); err != nil {
		return types.Household{}, fmt.Errorf("household %d: decode access_to_services: %w", h.ID, err)
	}
	if err := json.Unmarshal(assistanceJSON, &h.GovernmentAssistance); err != nil {
		return types.Household{}, fmt.Errorf("household %d: decode government_assistance: %w", h.ID, err)
	}
	if h.GovernmentAssistance == nil {
		h.GovernmentAssistance = []string{}
	}
	if createdBy.Valid {
		id := int(createdBy.Int64)
		h.CreatedBy = &id
	}
	area.ID = h.AreaID
	area.Location = types.NewGeoPoint(lng, lat)
	h.Area = &area
	return h, nil
}

func householdConditions(filter types.HouseholdFilter) *conditions {
	c := &conditions{}
	c.add("h.deleted = ?", filter.Deleted)
	if filter.AreaID != nil {
		c.add("h.area_id = ?", *filter.AreaID)
	}
	if filter.RiskLevel != "" {
		c.add("h.risk_level = ?", string(filter.RiskLevel))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		c.add("(h.head_name ILIKE ? OR h.address ILIKE ?)", pattern, pattern)
	}
	return c
}

// List returns a page of households matching filter and the total count.
func (r *HouseholdRepository) List(ctx context.Context, filter types.HouseholdFilter, offset, limit int) ([]types.Household, int, error) {
	offset, limit = normalizePage(offset, limit)
	c := householdConditions(filter)

	countQuery := `SELECT COUNT(1) FROM households h` + c.where()
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := householdSelect + c.where() + `
		ORDER BY h.created_at DESC, h.id DESC
		OFFSET ` + c.next(offset) + ` LIMIT ` + c.next(limit)
	rows, err := r.db.QueryContext(ctx, listQuery, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	households := make([]types.Household, 0, limit)
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, 0, err
		}
		households = append(households, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return households, total, nil
}

// Get returns a household by id regardless of its deleted flag.
func (r *HouseholdRepository) Get(ctx context.Context, id int) (types.Household, error) {
	query := householdSelect + `
		WHERE h.id = $1`
	h, err := scanHousehold(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Household{}, ErrNotFound
		}
		return types.Household{}, err
	}
	return h, nil
}

// FindActiveByKey returns the non-deleted household holding key.
func (r *HouseholdRepository) FindActiveByKey(ctx context.Context, key types.HouseholdKey) (types.Household, error) {
	query := householdSelect + `
		WHERE h.head_name = $1 AND h.area_id = $2 AND h.address = $3 AND NOT h.deleted`
	h, err := scanHousehold(r.db.QueryRowContext(ctx, query, key.HeadName, key.AreaID, key.Address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Household{}, ErrNotFound
		}
		return types.Household{}, err
	}
	return h, nil
}

func encodeHouseholdDocs(h types.Household) ([]byte, []byte, error) {
	servicesJSON, err := json.Marshal(h.AccessToServices)
	if err != nil {
		return nil, nil, err
	}
	assistance := h.GovernmentAssistance
	if assistance == nil {
		assistance = []string{}
	}
	assistanceJSON, err := json.Marshal(assistance)
	if err != nil {
		return nil, nil, err
	}
	return servicesJSON, assistanceJSON, nil
}

func (r *HouseholdRepository) Create(ctx context.Context, h types.Household) (types.Household, error) {
	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now
	h.Deleted = false

	servicesJSON, assistanceJSON, err := encodeHouseholdDocs(h)
	if err != nil {
		return types.Household{}, err
	}

	const query = `
		INSERT INTO households (head_name, address, area_id, family_income,
			employment_status, education_level, housing_type,
			access_to_services, government_assistance,
			poverty_score, risk_level, deleted, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		h.HeadName,
		h.Address,
		h.AreaID,
		h.FamilyIncome,
		h.EmploymentStatus,
		h.EducationLevel,
		h.HousingType,
		servicesJSON,
		assistanceJSON,
		h.PovertyScore,
		h.RiskLevel,
		nullableID(h.CreatedBy),
		h.CreatedAt,
		h.UpdatedAt,
	).Scan(&h.ID); err != nil {
		return types.Household{}, mapError(err)
	}
	return h, nil
}

// Update rewrites an active household, including its stored score.
func (r *HouseholdRepository) Update(ctx context.Context, h types.Household) (types.Household, error) {
	h.UpdatedAt = time.Now()

	servicesJSON, assistanceJSON, err := encodeHouseholdDocs(h)
	if err != nil {
		return types.Household{}, err
	}

	const query = `
		UPDATE households
		SET head_name = $1,
			address = $2,
			area_id = $3,
			family_income = $4,
			employment_status = $5,
			education_level = $6,
			housing_type = $7,
			access_to_services = $8,
			government_assistance = $9,
			poverty_score = $10,
			risk_level = $11,
			updated_at = $12
		WHERE id = $13 AND NOT deleted`
	result, err := r.db.ExecContext(
		ctx,
		query,
		h.HeadName,
		h.Address,
		h.AreaID,
		h.FamilyIncome,
		h.EmploymentStatus,
		h.EducationLevel,
		h.HousingType,
		servicesJSON,
		assistanceJSON,
		h.PovertyScore,
		h.RiskLevel,
		h.UpdatedAt,
		h.ID,
	)
	if err != nil {
		return types.Household{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Household{}, err
	}
	return h, nil
}

// SetDeleted flips the deleted flag. It returns ErrNotFound when the
// household is missing or already in the requested state, and ErrConflict
// when recovering would duplicate an active household.
func (r *HouseholdRepository) SetDeleted(ctx context.Context, id int, deleted bool) error {
	const query = `
		UPDATE households
		SET deleted = $1, updated_at = $2
		WHERE id = $3 AND deleted = $4`
	result, err := r.db.ExecContext(ctx, query, deleted, time.Now(), id, !deleted)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// PurgeAll permanently removes every household, deleted or not, and their
// referrals.
func (r *HouseholdRepository) PurgeAll(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM households`)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Summarize groups active households by area and risk tier using their
// stored scores. A non-nil areaID limits the result to that area.
func (r *HouseholdRepository) Summarize(ctx context.Context, areaID *int) ([]types.AreaSummary, error) {
	c := &conditions{}
	c.add("NOT h.deleted")
	if areaID != nil {
		c.add("h.area_id = ?", *areaID)
	}
	query := `
		SELECT a.id, a.name, a.lng, a.lat,
		       COUNT(*) FILTER (WHERE h.risk_level = 'Low'),
		       COUNT(*) FILTER (WHERE h.risk_level = 'Moderate'),
		       COUNT(*) FILTER (WHERE h.risk_level = 'High'),
		       COUNT(*),
		       AVG(h.poverty_score)::float8,
		       AVG(h.family_income)::float8
		FROM households h
		JOIN areas a ON a.id = h.area_id` + c.where() + `
		GROUP BY a.id, a.name, a.lng, a.lat
		ORDER BY a.name`
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]types.AreaSummary, 0)
	for rows.Next() {
		var s types.AreaSummary
		var lng, lat float64
		if err := rows.Scan(
			&s.AreaID,
			&s.AreaName,
			&lng,
			&lat,
			&s.Low,
			&s.Moderate,
			&s.High,
			&s.Total,
			&s.AverageScore,
			&s.AverageIncome,
		); err != nil {
			return nil, err
		}
		s.Location = types.NewGeoPoint(lng, lat)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}
