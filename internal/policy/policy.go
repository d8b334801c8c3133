// Package policy holds the role and area visibility rules consulted by every
// household, referral, program, user and report operation.
//
// Read rules return a Scope that list endpoints filter by. Every other rule
// returns nil when allowed or an authorization error when denied.
package policy

import (
	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/types"
)

// Actor is the authenticated caller of an operation. Role comes from the
// bearer token; AreaID is loaded from the user record on every request.
type Actor struct {
	ID     int
	Role   types.Role
	AreaID *int
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == types.RoleAdmin }

// Scope restricts a listing to one area. A nil AreaID means every area.
type Scope struct {
	AreaID *int
}

// All reports whether the scope spans every area.
func (s Scope) All() bool { return s.AreaID == nil }

// Allows reports whether a record in areaID falls inside the scope.
func (s Scope) Allows(areaID int) bool {
	return s.AreaID == nil || *s.AreaID == areaID
}

func deny(message string) error {
	return apperr.Forbidden(message)
}

func hasRole(a Actor, roles ...types.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// workerArea returns the worker's assigned area or an error when the record
// has lost it.
func workerArea(a Actor) (int, error) {
	if a.AreaID == nil {
		return 0, deny("worker has no assigned area")
	}
	return *a.AreaID, nil
}

// HouseholdScope decides which households the actor may list and read.
func HouseholdScope(a Actor) (Scope, error) {
	switch a.Role {
	case types.RoleAdmin, types.RoleNGOStaff:
		return Scope{}, nil
	case types.RoleWorker:
		area, err := workerArea(a)
		if err != nil {
			return Scope{}, err
		}
		return Scope{AreaID: &area}, nil
	default:
		return Scope{}, deny("role may not view households")
	}
}

// CanReadHousehold checks a single household read.
func CanReadHousehold(a Actor, h types.Household) error {
	scope, err := HouseholdScope(a)
	if err != nil {
		return err
	}
	if !scope.Allows(h.AreaID) {
		return deny("household is outside your assigned area")
	}
	return nil
}

// CanWriteHouseholds checks create, update, soft-delete and recover rights.
func CanWriteHouseholds(a Actor) error {
	if !hasRole(a, types.RoleAdmin, types.RoleWorker) {
		return deny("only admins and workers may modify households")
	}
	return nil
}

// CanWriteHouseholdIn checks write rights on a household stored in areaID.
func CanWriteHouseholdIn(a Actor, areaID int) error {
	if err := CanWriteHouseholds(a); err != nil {
		return err
	}
	if a.Role == types.RoleWorker {
		area, err := workerArea(a)
		if err != nil {
			return err
		}
		if area != areaID {
			return deny("household is outside your assigned area")
		}
	}
	return nil
}

// CanPurgeHouseholds checks the permanent delete-all operation.
func CanPurgeHouseholds(a Actor) error {
	if !a.IsAdmin() {
		return deny("only admins may purge households")
	}
	return nil
}

// AssignedArea returns the area new households must be written to. Workers
// always get their own area regardless of what was requested; a nil result
// means the caller's requested area stands.
func AssignedArea(a Actor) (*int, error) {
	if err := CanWriteHouseholds(a); err != nil {
		return nil, err
	}
	if a.Role == types.RoleWorker {
		area, err := workerArea(a)
		if err != nil {
			return nil, err
		}
		return &area, nil
	}
	return nil, nil
}

// CanImportHouseholds checks the tabular import operation.
func CanImportHouseholds(a Actor) error {
	if !hasRole(a, types.RoleAdmin, types.RoleWorker) {
		return deny("only admins and workers may import households")
	}
	return nil
}

// CanManageAreas checks area create, update, delete and recover. Any
// authenticated role is allowed.
func CanManageAreas(a Actor) error {
	if !a.Role.Valid() {
		return deny("unknown role")
	}
	return nil
}

// ProgramOwner returns the creator filter applied to program reads. NGO staff
// only see programs they created; a nil result means all programs.
func ProgramOwner(a Actor) (*int, error) {
	switch a.Role {
	case types.RoleAdmin, types.RoleWorker:
		return nil, nil
	case types.RoleNGOStaff:
		id := a.ID
		return &id, nil
	default:
		return nil, deny("role may not view programs")
	}
}

// CanReadProgram checks a single program read.
func CanReadProgram(a Actor, p types.Program) error {
	owner, err := ProgramOwner(a)
	if err != nil {
		return err
	}
	if owner != nil && *owner != p.CreatedBy {
		return deny("program belongs to another user")
	}
	return nil
}

// CanCreatePrograms checks program creation.
func CanCreatePrograms(a Actor) error {
	if !hasRole(a, types.RoleAdmin, types.RoleNGOStaff) {
		return deny("only admins and NGO staff may create programs")
	}
	return nil
}

// CanUpdateProgram checks a program update. NGO staff may only edit their own.
func CanUpdateProgram(a Actor, p types.Program) error {
	if err := CanCreatePrograms(a); err != nil {
		return err
	}
	if a.Role == types.RoleNGOStaff && p.CreatedBy != a.ID {
		return deny("program belongs to another user")
	}
	return nil
}

// CanDeleteProgram checks program deletion. Any authenticated role is allowed.
func CanDeleteProgram(a Actor) error {
	if !a.Role.Valid() {
		return deny("unknown role")
	}
	return nil
}

// CanCreateReferral checks referral creation. Any authenticated role is allowed.
func CanCreateReferral(a Actor) error {
	if !a.Role.Valid() {
		return deny("unknown role")
	}
	return nil
}

// ReferralScope decides which referrals the actor may list, by the area of
// the referred household.
func ReferralScope(a Actor) (Scope, error) {
	return HouseholdScope(a)
}

// CanTransitionReferral checks status changes.
func CanTransitionReferral(a Actor) error {
	if !hasRole(a, types.RoleAdmin, types.RoleNGOStaff) {
		return deny("only admins and NGO staff may change referral status")
	}
	return nil
}

// CanDeleteReferral checks referral deletion.
func CanDeleteReferral(a Actor) error {
	if !hasRole(a, types.RoleAdmin, types.RoleNGOStaff) {
		return deny("only admins and NGO staff may delete referrals")
	}
	return nil
}

// CanAdministerUsers checks user listing, creation, deletion and recovery.
func CanAdministerUsers(a Actor) error {
	if !a.IsAdmin() {
		return deny("admin access required")
	}
	return nil
}

// CanViewUser allows admins and the user themself.
func CanViewUser(a Actor, userID int) error {
	if a.IsAdmin() || a.ID == userID {
		return nil
	}
	return deny("cannot view another user")
}

// CanUpdateUser allows admins and the user themself; role and area changes
// require admin.
func CanUpdateUser(a Actor, userID int, changesRoleOrArea bool) error {
	if changesRoleOrArea && !a.IsAdmin() {
		return deny("admin access required to change role or area")
	}
	return CanViewUser(a, userID)
}

// CanBulkAssignArea checks assigning an area to every worker missing one.
func CanBulkAssignArea(a Actor) error {
	return CanAdministerUsers(a)
}

// ValidateAreaAssignment enforces that a worker always has an area. Other
// roles may have theirs cleared.
func ValidateAreaAssignment(role types.Role, areaID *int) error {
	if !role.Valid() {
		return apperr.Validation("role", "role must be one of admin, ngo_staff, worker")
	}
	if role == types.RoleWorker && areaID == nil {
		return apperr.Validation("area_id", "workers must be assigned an area")
	}
	return nil
}

// ReportScope decides which areas appear in reports.
func ReportScope(a Actor) (Scope, error) {
	return HouseholdScope(a)
}
