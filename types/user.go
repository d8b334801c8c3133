package types

import "time"

// Role is an actor's authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleNGOStaff Role = "ngo_staff"
	RoleWorker   Role = "worker"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleNGOStaff, RoleWorker:
		return true
	}
	return false
}

// User represents an account in the system.
// It contains identity, role, area assignment and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// AreaID is the assigned barangay. Always set for workers; optional
	// for other roles.
	AreaID *int `json:"area_id" db:"area_id"`

	// Area is the expanded area record when loaded with a join.
	Area *Area `json:"area,omitempty" db:"-"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Deleted marks a soft-deleted account. Deleted users cannot sign in.
	Deleted bool `json:"deleted" db:"deleted"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
