package types

// AreaSummary aggregates the stored scores of one area's active households.
type AreaSummary struct {
	AreaID        int      `json:"area_id"`
	AreaName      string   `json:"area_name"`
	Location      GeoPoint `json:"location"`
	Low           int      `json:"low"`
	Moderate      int      `json:"moderate"`
	High          int      `json:"high"`
	Total         int      `json:"total"`
	AverageScore  float64  `json:"average_score"`
	AverageIncome float64  `json:"average_income"`
}

// Report is the area-by-tier aggregation consumed by every report format.
type Report struct {
	Areas    []AreaSummary `json:"areas"`
	Totals   ReportTotals  `json:"totals"`
	Insights Insights      `json:"insights"`
}

// ReportTotals holds figures across all areas in the report.
type ReportTotals struct {
	Households    int     `json:"households"`
	Low           int     `json:"low"`
	Moderate      int     `json:"moderate"`
	High          int     `json:"high"`
	AverageScore  float64 `json:"average_score"`
	AverageIncome float64 `json:"average_income"`
}

// Insights names the notable areas in a report. Empty when there is no data.
type Insights struct {
	HighestRiskArea  *AreaSummary `json:"highest_risk_area"`
	LowestIncomeArea *AreaSummary `json:"lowest_income_area"`
}
