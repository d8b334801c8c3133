package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/metrics"
	"github.com/bayanihan-data/povassess/internal/mq"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/referralflow"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

const referralConflict = "referral already exists"

// ReferralRepository defines persistence operations for referrals.
type ReferralRepository interface {
	List(ctx context.Context, filter store.ReferralFilter) ([]types.Referral, error)
	Get(ctx context.Context, id int) (types.Referral, error)
	Create(ctx context.Context, referral types.Referral) (types.Referral, error)
	UpdateStatus(ctx context.Context, referral types.Referral) (types.Referral, error)
	Delete(ctx context.Context, id int) error
}

// ReferralInput describes a new referral of a household to a program.
type ReferralInput struct {
	HouseholdID int
	ProgramID   int
	Notes       string
}

// StatusChange is the payload of a referral.status_changed event.
type StatusChange struct {
	ReferralID int                  `json:"referral_id"`
	From       types.ReferralStatus `json:"from"`
	To         types.ReferralStatus `json:"to"`
	ActorID    int                  `json:"actor_id"`
}

// ReferralService encapsulates referral use-cases.
type ReferralService struct {
	repo       ReferralRepository
	households HouseholdRepository
	programs   ProgramRepository
	machine    referralflow.Machine
	metrics    *metrics.Metrics
	events     EventPublisher
	logger     *zap.Logger
}

func NewReferralService(repo ReferralRepository, households HouseholdRepository, programs ProgramRepository, machine referralflow.Machine, m *metrics.Metrics, events EventPublisher, logger *zap.Logger) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		repo:       repo,
		households: households,
		programs:   programs,
		machine:    machine,
		metrics:    m,
		events:     events,
		logger:     logger,
	}
}

// List returns referrals visible to the actor, optionally by status.
// Workers only see referrals on households in their area.
func (s *ReferralService) List(ctx context.Context, actor policy.Actor, status types.ReferralStatus) ([]types.Referral, error) {
	scope, err := policy.ReferralScope(actor)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("status", "status must be one of pending, approved, completed, cancelled, rejected")
	}
	referrals, err := s.repo.List(ctx, store.ReferralFilter{Status: status, AreaID: scope.AreaID})
	if err != nil {
		return nil, storeError(err, "referral", referralConflict)
	}
	return referrals, nil
}

func (s *ReferralService) Get(ctx context.Context, actor policy.Actor, id int) (types.Referral, error) {
	scope, err := policy.ReferralScope(actor)
	if err != nil {
		return types.Referral{}, err
	}
	referral, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Referral{}, storeError(err, "referral", referralConflict)
	}
	if referral.Household != nil && !scope.Allows(referral.Household.AreaID) {
		return types.Referral{}, apperr.Forbidden("referral is outside your assigned area")
	}
	return referral, nil
}

// Create refers an active household to an existing program. The referral
// starts pending and is attributed to the actor.
func (s *ReferralService) Create(ctx context.Context, actor policy.Actor, in ReferralInput) (types.Referral, error) {
	if err := policy.CanCreateReferral(actor); err != nil {
		return types.Referral{}, err
	}
	household, err := s.households.Get(ctx, in.HouseholdID)
	if err != nil {
		return types.Referral{}, storeError(err, "household", householdConflict)
	}
	if household.Deleted {
		return types.Referral{}, apperr.NotFound("household")
	}
	if err := policy.CanReadHousehold(actor, household); err != nil {
		return types.Referral{}, err
	}
	program, err := s.programs.Get(ctx, in.ProgramID)
	if err != nil {
		return types.Referral{}, storeError(err, "program", programConflict)
	}

	created, err := s.repo.Create(ctx, types.Referral{
		HouseholdID: household.ID,
		ProgramID:   program.ID,
		SubmittedBy: actor.ID,
		Status:      types.ReferralPending,
		Notes:       in.Notes,
	})
	if err != nil {
		return types.Referral{}, storeError(err, "referral", referralConflict)
	}
	created.Household = &household
	created.Program = &program
	return created, nil
}

// UpdateStatus moves a referral to status. Entering approved or completed
// records the actor as approver.
func (s *ReferralService) UpdateStatus(ctx context.Context, actor policy.Actor, id int, status types.ReferralStatus, notes *string) (types.Referral, error) {
	if err := policy.CanTransitionReferral(actor); err != nil {
		return types.Referral{}, err
	}
	referral, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Referral{}, storeError(err, "referral", referralConflict)
	}
	from := referral.Status
	if err := s.machine.Apply(&referral, status, notes, actor.ID); err != nil {
		return types.Referral{}, err
	}
	updated, err := s.repo.UpdateStatus(ctx, referral)
	if err != nil {
		return types.Referral{}, storeError(err, "referral", referralConflict)
	}

	s.metrics.ObserveTransition(status)
	s.logger.Info("referral status changed",
		zap.Int("referral_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.Int("actor_id", actor.ID),
	)
	if s.events != nil {
		change := StatusChange{ReferralID: id, From: from, To: status, ActorID: actor.ID}
		if _, err := s.events.PublishEvent(ctx, mq.ChannelReferralStatusChanged, change); err != nil {
			s.logger.Warn("publish referral event failed", zap.Int("referral_id", id), zap.Error(err))
		}
	}
	return updated, nil
}

func (s *ReferralService) Delete(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanDeleteReferral(actor); err != nil {
		return err
	}
	return storeError(s.repo.Delete(ctx, id), "referral", referralConflict)
}
