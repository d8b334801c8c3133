// Package scoring computes the poverty score and risk tier of a household.
//
// The weights below are not versioned. Stored scores are never recomputed,
// so changing a weight only affects households scored afterwards.
package scoring

import "github.com/bayanihan-data/povassess/types"

const (
	lowIncomeCeiling = 5000
	midIncomeCeiling = 10000

	highRiskFloor     = 60
	moderateRiskFloor = 30

	maxScore = 100
)

// Result is the scoring outcome persisted alongside a household.
type Result struct {
	PovertyScore int
	RiskLevel    types.RiskLevel
}

// Score returns the poverty score and risk tier for h. It only reads the
// household's attribute fields and has no side effects.
func Score(h types.Household) Result {
	points := incomePoints(h.FamilyIncome) +
		employmentPoints(h.EmploymentStatus) +
		educationPoints(h.EducationLevel) +
		housingPoints(h.HousingType) +
		servicePoints(h.AccessToServices)

	// Any entry counts, including empty strings.
	if len(h.GovernmentAssistance) > 0 {
		points -= 10
	}

	score := clamp(points)
	return Result{PovertyScore: score, RiskLevel: Tier(score)}
}

// Apply scores h and writes the result into its derived fields.
func Apply(h *types.Household) Result {
	res := Score(*h)
	h.PovertyScore = res.PovertyScore
	h.RiskLevel = res.RiskLevel
	return res
}

// Tier maps a clamped score to its risk level.
func Tier(score int) types.RiskLevel {
	switch {
	case score >= highRiskFloor:
		return types.RiskHigh
	case score >= moderateRiskFloor:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// Boundaries fall into the lower bracket: 5000 is +20, 10000 is +0.
func incomePoints(income float64) int {
	switch {
	case income < lowIncomeCeiling:
		return 40
	case income < midIncomeCeiling:
		return 20
	default:
		return 0
	}
}

func employmentPoints(s types.EmploymentStatus) int {
	switch s {
	case types.EmploymentUnemployed:
		return 20
	case types.EmploymentSelfEmployed:
		return 10
	default:
		return 0
	}
}

func educationPoints(l types.EducationLevel) int {
	switch l {
	case types.EducationNone:
		return 20
	case types.EducationElementary:
		return 10
	default:
		return 0
	}
}

func housingPoints(h types.HousingType) int {
	switch h {
	case types.HousingInformalSettler:
		return 20
	case types.HousingRented:
		return 10
	default:
		return 0
	}
}

func servicePoints(s types.ServiceAccess) int {
	points := 0
	if !s.Water {
		points += 10
	}
	if !s.Electricity {
		points += 10
	}
	if !s.Sanitation {
		points += 10
	}
	return points
}

func clamp(points int) int {
	if points < 0 {
		return 0
	}
	if points > maxScore {
		return maxScore
	}
	return points
}
