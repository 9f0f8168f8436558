package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnregisteredAccount    = errors.New("account not registered")
	ErrFetchFailed            = errors.New("profile fetch failed")
	ErrTokenMissing           = errors.New("refresh token not found in profile page")
	ErrParseFailed            = errors.New("profile page does not match the expected layout")
	ErrRoleNotFound           = errors.New("tier role not found")
	ErrInsufficientPermission = errors.New("missing manage roles permission")
)

// PartialFailure reports a sync whose stats were stored but whose role step failed.
type PartialFailure struct {
	Err error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("stats synced, role update failed: %v", e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}
