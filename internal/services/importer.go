package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/gazetteer"
	"github.com/bayanihan-data/povassess/internal/metrics"
	"github.com/bayanihan-data/povassess/internal/mq"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/scoring"
	"github.com/bayanihan-data/povassess/internal/storage"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

// ImportResult summarises one household file import.
type ImportResult struct {
	BatchID    string            `json:"batch_id"`
	Inserted   int               `json:"inserted"`
	Skipped    int               `json:"skipped"`
	SHA256     string            `json:"sha256"`
	ArchiveKey string            `json:"archive_key,omitempty"`
	Households []types.Household `json:"households"`
}

// ImportEvent is the payload of a household.imported event.
type ImportEvent struct {
	BatchID    string `json:"batch_id"`
	Filename   string `json:"filename"`
	ActorID    int    `json:"actor_id"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

// ImportService loads households from CSV or XLSX uploads.
type ImportService struct {
	households HouseholdRepository
	areas      AreaRepository
	gazetteer  *gazetteer.Gazetteer
	archive    Archiver
	events     EventPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	newID      func() string
}

func NewImportService(households HouseholdRepository, areas AreaRepository, gaz *gazetteer.Gazetteer, archive Archiver, events EventPublisher, m *metrics.Metrics, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		households: households,
		areas:      areas,
		gazetteer:  gaz,
		archive:    archive,
		events:     events,
		metrics:    m,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// Import validates the whole file, then inserts its rows in file order.
// Rows matching an active household on (head, area, address) are skipped.
// Admin rows resolve or create their barangay; worker rows always land in
// the worker's own area. A store failure stops the import and leaves the
// rows already inserted in place, so re-running the file is safe.
func (s *ImportService) Import(ctx context.Context, actor policy.Actor, filename string, data []byte) (ImportResult, error) {
	if err := policy.CanImportHouseholds(actor); err != nil {
		return ImportResult{}, err
	}
	forced, err := policy.AssignedArea(actor)
	if err != nil {
		return ImportResult{}, err
	}

	file, err := parseImportFile(filename, data, forced == nil)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		BatchID:    s.newID(),
		SHA256:     file.SHA256,
		Households: []types.Household{},
	}
	if s.archive != nil {
		key, err := s.archive.ArchiveImport(ctx, storage.ImportUpload{
			BatchID:    result.BatchID,
			Filename:   filename,
			SHA256:     file.SHA256,
			UploadedBy: actor.ID,
			Data:       data,
		})
		if err != nil {
			s.logger.Warn("archive import failed", zap.String("batch_id", result.BatchID), zap.Error(err))
		} else {
			result.ArchiveKey = key
		}
	}

	resolver := &areaResolver{repo: s.areas, gazetteer: s.gazetteer}
	var fixed *types.Area
	if forced != nil {
		area, err := activeArea(ctx, s.areas, *forced)
		if err != nil {
			return ImportResult{}, err
		}
		fixed = &area
	}

	for _, record := range file.Records {
		area := fixed
		if area == nil {
			resolved, err := resolver.resolve(ctx, record.Barangay)
			if err != nil {
				return s.abort(result, record.Line, err)
			}
			area = &resolved
		}

		household := record.Household
		household.AreaID = area.ID
		household.CreatedBy = &actor.ID

		_, err := s.households.FindActiveByKey(ctx, household.Key())
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return s.abort(result, record.Line, err)
		}

		scored := scoring.Apply(&household)
		created, err := s.households.Create(ctx, household)
		if errors.Is(err, store.ErrConflict) {
			result.Skipped++
			continue
		}
		if err != nil {
			return s.abort(result, record.Line, err)
		}
		s.metrics.ObserveScore(scored.RiskLevel)
		created.Area = area
		result.Households = append(result.Households, created)
		result.Inserted++
	}

	s.finish(ctx, actor, filename, result)
	return result, nil
}

func (s *ImportService) abort(result ImportResult, line int, err error) (ImportResult, error) {
	s.metrics.ObserveImport(result.Inserted, result.Skipped)
	s.logger.Error("import stopped",
		zap.String("batch_id", result.BatchID),
		zap.Int("row", line),
		zap.Int("inserted", result.Inserted),
		zap.Error(err),
	)
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return ImportResult{}, err
	}
	return ImportResult{}, apperr.Upstream(fmt.Sprintf("import stopped at row %d after %d households were inserted", line, result.Inserted), err)
}

func (s *ImportService) finish(ctx context.Context, actor policy.Actor, filename string, result ImportResult) {
	s.metrics.ObserveImport(result.Inserted, result.Skipped)
	s.logger.Info("households imported",
		zap.String("batch_id", result.BatchID),
		zap.String("filename", filename),
		zap.Int("actor_id", actor.ID),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
	)
	if s.events == nil {
		return
	}
	event := ImportEvent{
		BatchID:    result.BatchID,
		Filename:   filename,
		ActorID:    actor.ID,
		Inserted:   result.Inserted,
		Skipped:    result.Skipped,
		ArchiveKey: result.ArchiveKey,
	}
	if _, err := s.events.PublishEvent(ctx, mq.ChannelHouseholdImported, event); err != nil {
		s.logger.Warn("publish import event failed", zap.String("batch_id", result.BatchID), zap.Error(err))
	}
}

// areaResolver maps barangay names to areas, creating missing ones. The
// cache is loaded lazily on first use.
type areaResolver struct {
	repo      AreaRepository
	gazetteer *gazetteer.Gazetteer
	cache     map[string]types.Area
}

func (r *areaResolver) resolve(ctx context.Context, raw string) (types.Area, error) {
	if r.cache == nil {
		areas, err := r.repo.List(ctx, false)
		if err != nil {
			return types.Area{}, err
		}
		r.cache = make(map[string]types.Area, len(areas))
		for _, a := range areas {
			r.cache[areaKey(a.Name)] = a
		}
	}

	name := FormatAreaName(raw)
	key := areaKey(name)
	if area, ok := r.cache[key]; ok {
		return area, nil
	}

	location := types.NewGeoPoint(0, 0)
	if point, ok := r.gazetteer.Lookup(name); ok {
		location = point
	}
	area, err := r.repo.Create(ctx, types.Area{Name: name, Location: location})
	if errors.Is(err, store.ErrConflict) {
		area, err = r.repo.FindByName(ctx, name)
	}
	if err != nil {
		return types.Area{}, err
	}
	r.cache[key] = area
	return area, nil
}
