package types

import "time"

// ReferralStatus is the workflow state of a referral.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralApproved  ReferralStatus = "approved"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCancelled ReferralStatus = "cancelled"
	ReferralRejected  ReferralStatus = "rejected"
)

// Valid reports whether s is a known referral status.
func (s ReferralStatus) Valid() bool {
	switch s {
	case ReferralPending, ReferralApproved, ReferralCompleted, ReferralCancelled, ReferralRejected:
		return true
	}
	return false
}

// StampsApprover reports whether entering s records the acting user as approver.
func (s ReferralStatus) StampsApprover() bool {
	return s == ReferralApproved || s == ReferralCompleted
}

// Referral links a household to a program.
type Referral struct {
	// ID is the unique identifier of the referral.
	ID int `json:"id" db:"id"`

	HouseholdID int `json:"household_id" db:"household_id"`
	ProgramID   int `json:"program_id" db:"program_id"`

	// SubmittedBy is the user who created the referral.
	SubmittedBy int `json:"submitted_by" db:"submitted_by"`

	Status ReferralStatus `json:"status" db:"status"`
	Notes  string         `json:"notes" db:"notes"`

	// ApprovedBy is set when the referral enters approved or completed and
	// is never cleared afterwards.
	ApprovedBy *int `json:"approved_by" db:"approved_by"`

	// Household and Program are expanded on reads.
	Household *Household `json:"household,omitempty" db:"-"`
	Program   *Program   `json:"program,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
