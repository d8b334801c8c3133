package services

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/report"
	"github.com/bayanihan-data/povassess/internal/storage"
	"github.com/bayanihan-data/povassess/types"
)

// Archiver keeps copies of uploaded files and generated reports.
// *storage.Storage satisfies it.
type Archiver interface {
	ArchiveImport(ctx context.Context, upload storage.ImportUpload) (string, error)
	ArchiveReport(ctx context.Context, file storage.ReportFile) (string, error)
}

// Export is a rendered report document.
type Export struct {
	Format     report.Format
	Data       []byte
	ArchiveKey string
}

// ReportService aggregates stored household scores by area.
type ReportService struct {
	households   HouseholdRepository
	archive      Archiver
	municipality string
	logger       *zap.Logger
	now          func() time.Time
}

func NewReportService(households HouseholdRepository, archive Archiver, municipality string, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		households:   households,
		archive:      archive,
		municipality: municipality,
		logger:       logger,
		now:          time.Now,
	}
}

// Summary groups the active households the actor may see by area and risk
// tier. Workers only get their own area.
func (s *ReportService) Summary(ctx context.Context, actor policy.Actor) (types.Report, error) {
	scope, err := policy.ReportScope(actor)
	if err != nil {
		return types.Report{}, err
	}
	areas, err := s.households.Summarize(ctx, scope.AreaID)
	if err != nil {
		return types.Report{}, storeError(err, "household", householdConflict)
	}
	return Aggregate(areas), nil
}

// Export renders the actor's summary in format and archives a copy when an
// archive is configured.
func (s *ReportService) Export(ctx context.Context, actor policy.Actor, format report.Format) (Export, error) {
	summary, err := s.Summary(ctx, actor)
	if err != nil {
		return Export{}, err
	}
	meta := report.Meta{
		Title:        "Poverty Assessment Report",
		Municipality: s.municipality,
		GeneratedAt:  s.now(),
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, format, summary, meta); err != nil {
		return Export{}, err
	}
	out := Export{Format: format, Data: buf.Bytes()}
	if s.archive != nil {
		key, err := s.archive.ArchiveReport(ctx, storage.ReportFile{
			Format:      string(format),
			ContentType: format.ContentType(),
			RequestedBy: actor.ID,
			Data:        out.Data,
		})
		if err != nil {
			s.logger.Warn("archive report failed", zap.String("format", string(format)), zap.Error(err))
		} else {
			out.ArchiveKey = key
		}
	}
	return out, nil
}

// Aggregate computes overall totals and insights from per-area summaries.
// Averages are weighted by household count. The highest-risk area has the
// highest average score; the lowest-income area the lowest average income.
// Ties keep the first area in name order.
func Aggregate(areas []types.AreaSummary) types.Report {
	if areas == nil {
		areas = []types.AreaSummary{}
	}
	r := types.Report{Areas: areas}

	var scoreSum, incomeSum float64
	for i := range areas {
		a := areas[i]
		r.Totals.Households += a.Total
		r.Totals.Low += a.Low
		r.Totals.Moderate += a.Moderate
		r.Totals.High += a.High
		scoreSum += a.AverageScore * float64(a.Total)
		incomeSum += a.AverageIncome * float64(a.Total)

		if r.Insights.HighestRiskArea == nil || a.AverageScore > r.Insights.HighestRiskArea.AverageScore {
			r.Insights.HighestRiskArea = &areas[i]
		}
		if r.Insights.LowestIncomeArea == nil || a.AverageIncome < r.Insights.LowestIncomeArea.AverageIncome {
			r.Insights.LowestIncomeArea = &areas[i]
		}
	}
	if r.Totals.Households > 0 {
		r.Totals.AverageScore = scoreSum / float64(r.Totals.Households)
		r.Totals.AverageIncome = incomeSum / float64(r.Totals.Households)
	}
	return r
}
