package party

import (
	"errors"
	"fmt"

	"github.com/sharetube/party/internal/domain"
	"github.com/sharetube/party/internal/repository/party"
)

// mapRepoError translates store sentinels into the service error taxonomy.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, party.ErrPartyNotFound):
		return ErrPartyNotFound
	case errors.Is(err, domain.ErrNotHost), errors.Is(err, domain.ErrNotMember):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrInvalidTime):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return err
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func checkIdentity(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	return nil
}
