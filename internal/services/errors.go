package services

import (
	"errors"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/store"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email,
// a deleted account or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

// storeError translates repository errors into apperr kinds. Errors that
// already carry a kind pass through unchanged.
func storeError(err error, resource, conflict string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(resource)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(conflict)
	case errors.Is(err, store.ErrInvalidReference):
		return apperr.NotFound("referenced record")
	default:
		return apperr.Upstream("failed to access "+resource+" records", err)
	}
}
