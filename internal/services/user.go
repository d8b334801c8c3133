package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

const (
	userConflict      = "a user with this email already exists"
	minPasswordLength = 8
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, deleted bool) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetDeleted(ctx context.Context, id int, deleted bool) error
	AssignAreaToUnassignedWorkers(ctx context.Context, areaID int) (int, error)
}

// UserInput describes a new account.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     types.Role
	AreaID   *int
}

// UserUpdate replaces an account's profile. A nil AreaID clears the area;
// an empty Password keeps the current one.
type UserUpdate struct {
	Name     string
	Email    string
	Password string
	Role     types.Role
	AreaID   *int
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo       UserRepository
	areas      AreaRepository
	logger     *zap.Logger
	bcryptCost int
}

func NewUserService(repo UserRepository, areas AreaRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, areas: areas, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// Authenticate checks an email and password pair against active accounts.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, storeError(err, "user", userConflict)
	}
	if user.Deleted {
		return types.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return s.withArea(ctx, user), nil
}

// ResolveActor loads the account behind a token subject. Role comes from the
// token; the area always comes from the stored record.
func (s *UserService) ResolveActor(ctx context.Context, userID int, role types.Role) (policy.Actor, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return policy.Actor{}, storeError(err, "user", userConflict)
	}
	if user.Deleted {
		return policy.Actor{}, apperr.NotFound("user")
	}
	return policy.Actor{ID: user.ID, Role: role, AreaID: user.AreaID}, nil
}

func (s *UserService) List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.User, error) {
	if err := policy.CanAdministerUsers(actor); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx, deleted)
	if err != nil {
		return nil, storeError(err, "user", userConflict)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, actor policy.Actor, id int) (types.User, error) {
	if err := policy.CanViewUser(actor, id); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "user", userConflict)
	}
	if user.Deleted {
		return types.User{}, apperr.NotFound("user")
	}
	return s.withArea(ctx, user), nil
}

// Create registers an account on behalf of an admin.
func (s *UserService) Create(ctx context.Context, actor policy.Actor, in UserInput) (types.User, error) {
	if err := policy.CanAdministerUsers(actor); err != nil {
		return types.User{}, err
	}
	return s.Bootstrap(ctx, in)
}

// Bootstrap registers an account without an acting user. It backs the
// command line and the admin-only Create.
func (s *UserService) Bootstrap(ctx context.Context, in UserInput) (types.User, error) {
	user := types.User{
		Name:   strings.TrimSpace(in.Name),
		Email:  normalizeEmail(in.Email),
		Role:   in.Role,
		AreaID: in.AreaID,
	}
	if err := s.validateProfile(ctx, user); err != nil {
		return types.User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return types.User{}, apperr.Validation("password", "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return types.User{}, apperr.Validation("password", "password cannot be hashed")
	}
	user.PasswordHash = string(hash)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user", userConflict)
	}
	s.logger.Info("user created", zap.Int("user_id", created.ID), zap.String("role", string(created.Role)))
	return s.withArea(ctx, created), nil
}

// Update replaces an account's profile. Changing role or area requires
// admin; a worker can never be left without an area.
func (s *UserService) Update(ctx context.Context, actor policy.Actor, id int, in UserUpdate) (types.User, error) {
	if err := policy.CanViewUser(actor, id); err != nil {
		return types.User{}, err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "user", userConflict)
	}
	if existing.Deleted {
		return types.User{}, apperr.NotFound("user")
	}
	if err := policy.CanUpdateUser(actor, id, in.Role != existing.Role || !sameArea(in.AreaID, existing.AreaID)); err != nil {
		return types.User{}, err
	}

	user := existing
	user.Name = strings.TrimSpace(in.Name)
	user.Email = normalizeEmail(in.Email)
	user.Role = in.Role
	user.AreaID = in.AreaID
	if err := s.validateProfile(ctx, user); err != nil {
		return types.User{}, err
	}
	if in.Password != "" {
		if len(in.Password) < minPasswordLength {
			return types.User{}, apperr.Validation("password", "password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return types.User{}, apperr.Validation("password", "password cannot be hashed")
		}
		user.PasswordHash = string(hash)
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user", userConflict)
	}
	return s.withArea(ctx, updated), nil
}

// Delete soft-deletes an account.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanAdministerUsers(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return apperr.Conflict("you cannot delete your own account")
	}
	return storeError(s.repo.SetDeleted(ctx, id, true), "user", userConflict)
}

// Recover restores a soft-deleted account.
func (s *UserService) Recover(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanAdministerUsers(actor); err != nil {
		return err
	}
	return storeError(s.repo.SetDeleted(ctx, id, false), "user", userConflict)
}

// AssignAreaToUnassignedWorkers gives areaID to every active worker lacking
// an area and returns how many accounts changed.
func (s *UserService) AssignAreaToUnassignedWorkers(ctx context.Context, actor policy.Actor, areaID int) (int, error) {
	if err := policy.CanBulkAssignArea(actor); err != nil {
		return 0, err
	}
	if _, err := activeArea(ctx, s.areas, areaID); err != nil {
		return 0, err
	}
	updated, err := s.repo.AssignAreaToUnassignedWorkers(ctx, areaID)
	if err != nil {
		return 0, storeError(err, "user", userConflict)
	}
	s.logger.Info("assigned area to workers", zap.Int("area_id", areaID), zap.Int("updated", updated))
	return updated, nil
}

func (s *UserService) validateProfile(ctx context.Context, user types.User) error {
	if user.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return apperr.Validation("email", "a valid email is required")
	}
	if err := policy.ValidateAreaAssignment(user.Role, user.AreaID); err != nil {
		return err
	}
	if user.AreaID != nil {
		if _, err := activeArea(ctx, s.areas, *user.AreaID); err != nil {
			return err
		}
	}
	return nil
}

// withArea expands the user's area for responses. A lookup failure leaves
// the bare id in place.
func (s *UserService) withArea(ctx context.Context, user types.User) types.User {
	if user.AreaID == nil {
		return user
	}
	area, err := s.areas.Get(ctx, *user.AreaID)
	if err != nil {
		return user
	}
	user.Area = &area
	return user
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameArea(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
