package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// ReferralRepository handles persistence for referrals.
type ReferralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// ReferralFilter narrows referral listings.
type ReferralFilter struct {
	Status types.ReferralStatus
	// AreaID limits results to referrals on households in one area.
	AreaID *int
}

const referralSelect = `
		SELECT r.id, r.household_id, r.program_id, r.submitted_by, r.status, r.notes,
		       r.approved_by, r.created_at, r.updated_at,
		       h.head_name, h.address, h.area_id, h.poverty_score, h.risk_level, h.deleted,
		       p.name, p.start_date, p.end_date, p.created_by
		FROM referrals r
		JOIN households h ON h.id = r.household_id
		JOIN programs p ON p.id = r.program_id`

func scanReferral(row interface{ Scan(...any) error }) (types.Referral, error) {
	var ref types.Referral
	var h types.Household
	var p types.Program
	var approvedBy sql.NullInt64
	if err := row.Scan(
		&ref.ID,
		&ref.HouseholdID,
		&ref.ProgramID,
		&ref.SubmittedBy,
		&ref.Status,
		&ref.Notes,
		&approvedBy,
		&ref.CreatedAt,
		&ref.UpdatedAt,
		&h.HeadName,
		&h.Address,
		&h.AreaID,
		&h.PovertyScore,
		&h.RiskLevel,
		&h.Deleted,
		&p.Name,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedBy,
	); err != nil {
		return types.Referral{}, err
	}
	if approvedBy.Valid {
		id := int(approvedBy.Int64)
		ref.ApprovedBy = &id
	}
	h.ID = ref.HouseholdID
	p.ID = ref.ProgramID
	ref.Household = &h
	ref.Program = &p
	return ref, nil
}

func (r *ReferralRepository) List(ctx context.Context, filter ReferralFilter) ([]types.Referral, error) {
	c := &conditions{}
	if filter.Status != "" {
		c.add("r.status = ?", string(filter.Status))
	}
	if filter.AreaID != nil {
		c.add("h.area_id = ?", *filter.AreaID)
	}
	query := referralSelect + c.where() + `
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referrals := make([]types.Referral, 0)
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		referrals = append(referrals, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *ReferralRepository) Get(ctx context.Context, id int) (types.Referral, error) {
	query := referralSelect + `
		WHERE r.id = $1`
	ref, err := scanReferral(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Referral{}, ErrNotFound
		}
		return types.Referral{}, err
	}
	return ref, nil
}

func (r *ReferralRepository) Create(ctx context.Context, ref types.Referral) (types.Referral, error) {
	now := time.Now()
	ref.CreatedAt = now
	ref.UpdatedAt = now
	if ref.Status == "" {
		ref.Status = types.ReferralPending
	}

	const query = `
		INSERT INTO referrals (household_id, program_id, submitted_by, status, notes, approved_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		ref.HouseholdID,
		ref.ProgramID,
		ref.SubmittedBy,
		ref.Status,
		ref.Notes,
		nullableID(ref.ApprovedBy),
		ref.CreatedAt,
		ref.UpdatedAt,
	).Scan(&ref.ID); err != nil {
		return types.Referral{}, mapError(err)
	}
	return ref, nil
}

// UpdateStatus persists status, notes and approver.
func (r *ReferralRepository) UpdateStatus(ctx context.Context, ref types.Referral) (types.Referral, error) {
	ref.UpdatedAt = time.Now()

	const query = `
		UPDATE referrals
		SET status = $1,
			notes = $2,
			approved_by = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		ref.Status,
		ref.Notes,
		nullableID(ref.ApprovedBy),
		ref.UpdatedAt,
		ref.ID,
	)
	if err != nil {
		return types.Referral{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Referral{}, err
	}
	return ref, nil
}

func (r *ReferralRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM referrals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
