package types

import "time"

// EmploymentStatus is the employment situation of the household head.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "Employed"
	EmploymentUnemployed   EmploymentStatus = "Unemployed"
	EmploymentSelfEmployed EmploymentStatus = "Self-Employed"
)

// EducationLevel is the highest education level attained by the household head.
type EducationLevel string

const (
	EducationNone       EducationLevel = "None"
	EducationElementary EducationLevel = "Elementary"
	EducationHighSchool EducationLevel = "High School"
	EducationCollege    EducationLevel = "College"
)

// HousingType describes the tenure of the household dwelling.
type HousingType string

const (
	HousingOwned           HousingType = "Owned"
	HousingRented          HousingType = "Rented"
	HousingInformalSettler HousingType = "Informal Settler"
)

// RiskLevel is the coarse poverty-risk tier derived from PovertyScore.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// RiskLevels lists the tiers in ascending order of severity.
var RiskLevels = []RiskLevel{RiskLow, RiskModerate, RiskHigh}

// Valid reports whether s is a known employment status.
func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentEmployed, EmploymentUnemployed, EmploymentSelfEmployed:
		return true
	}
	return false
}

// Valid reports whether l is a known education level.
func (l EducationLevel) Valid() bool {
	switch l {
	case EducationNone, EducationElementary, EducationHighSchool, EducationCollege:
		return true
	}
	return false
}

// Valid reports whether h is a known housing type.
func (h HousingType) Valid() bool {
	switch h {
	case HousingOwned, HousingRented, HousingInformalSettler:
		return true
	}
	return false
}

// Valid reports whether r is a known risk tier.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskHigh:
		return true
	}
	return false
}

// ServiceAccess records which basic utilities the household can reach.
type ServiceAccess struct {
	Water       bool `json:"water"`
	Electricity bool `json:"electricity"`
	Sanitation  bool `json:"sanitation"`
}

// Household is an assessed household record.
//
// PovertyScore and RiskLevel are computed once per create, update or import
// and stored with the record. Readers use the stored values and never
// recompute them, so reports stay consistent with what was shown at intake.
type Household struct {
	// ID is the unique identifier of the household.
	ID int `json:"id" db:"id"`

	// HeadName is the full name of the household head.
	HeadName string `json:"head_name" db:"head_name"`

	// Address is the street address within the area.
	Address string `json:"address" db:"address"`

	// AreaID references the barangay the household belongs to.
	AreaID int `json:"area_id" db:"area_id"`

	// Area is the expanded area record. Populated on reads that join areas.
	Area *Area `json:"area,omitempty" db:"-"`

	// FamilyIncome is the monthly family income. Never negative.
	FamilyIncome float64 `json:"family_income" db:"family_income"`

	EmploymentStatus EmploymentStatus `json:"employment_status" db:"employment_status"`
	EducationLevel   EducationLevel   `json:"education_level" db:"education_level"`
	HousingType      HousingType      `json:"housing_type" db:"housing_type"`

	// AccessToServices is stored as a JSON document.
	AccessToServices ServiceAccess `json:"access_to_services" db:"access_to_services"`

	// GovernmentAssistance is the ordered list of program names the household
	// already receives. May be empty.
	GovernmentAssistance []string `json:"government_assistance" db:"government_assistance"`

	// PovertyScore is the persisted 0-100 score.
	PovertyScore int `json:"poverty_score" db:"poverty_score"`

	// RiskLevel is the persisted tier derived from PovertyScore.
	RiskLevel RiskLevel `json:"risk_level" db:"risk_level"`

	// Deleted marks a soft-deleted record.
	Deleted bool `json:"deleted" db:"deleted"`

	// CreatedBy is the actor who created the record.
	CreatedBy *int `json:"created_by,omitempty" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HouseholdKey is the uniqueness key among non-deleted households.
type HouseholdKey struct {
	HeadName string
	AreaID   int
	Address  string
}

// Key returns the household's uniqueness key.
func (h Household) Key() HouseholdKey {
	return HouseholdKey{HeadName: h.HeadName, AreaID: h.AreaID, Address: h.Address}
}

// HouseholdFilter narrows household listings.
type HouseholdFilter struct {
	// AreaID restricts results to one area when non-nil.
	AreaID *int
	// RiskLevel restricts results to one tier when non-empty.
	RiskLevel RiskLevel
	// Search matches head name or address, case-insensitively.
	Search string
	// Deleted selects soft-deleted records instead of active ones.
	Deleted bool
}
