// Package referralflow implements referral status transitions.
package referralflow

import (
	"fmt"
	"strings"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/types"
)

var transitions = map[types.ReferralStatus][]types.ReferralStatus{
	types.ReferralPending:  {types.ReferralApproved, types.ReferralRejected, types.ReferralCancelled},
	types.ReferralApproved: {types.ReferralCompleted},
}

// Machine applies status changes to referrals. When Strict is false any
// known status may follow any other.
type Machine struct {
	Strict bool
}

// Allowed lists the statuses reachable from current under the strict graph.
func Allowed(current types.ReferralStatus) []types.ReferralStatus {
	return transitions[current]
}

// Check validates moving a referral from current to target.
func (m Machine) Check(current, target types.ReferralStatus) error {
	if !target.Valid() {
		return apperr.Validation("status", "status must be one of pending, approved, completed, cancelled, rejected")
	}
	if !m.Strict {
		return nil
	}
	next := Allowed(current)
	for _, status := range next {
		if status == target {
			return nil
		}
	}
	if len(next) == 0 {
		return apperr.Conflict(fmt.Sprintf("cannot move referral from %s to %s: %s is final", current, target, current))
	}
	names := make([]string, len(next))
	for i, status := range next {
		names[i] = string(status)
	}
	return apperr.Conflict(fmt.Sprintf("cannot move referral from %s to %s: allowed next statuses are %s",
		current, target, strings.Join(names, ", ")))
}

// Apply moves ref to target on behalf of actorID. Entering approved or
// completed stamps the approver; the stamp is never cleared afterwards.
func (m Machine) Apply(ref *types.Referral, target types.ReferralStatus, notes *string, actorID int) error {
	if err := m.Check(ref.Status, target); err != nil {
		return err
	}
	ref.Status = target
	if notes != nil {
		ref.Notes = *notes
	}
	if target.StampsApprover() {
		id := actorID
		ref.ApprovedBy = &id
	}
	return nil
}
