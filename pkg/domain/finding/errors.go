package finding

import (
	"errors"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Domain errors for findings and period memberships.
var (
	ErrFindingNotFound    = errors.New("finding not found")
	ErrFindingExists      = errors.New("finding already exists")
	ErrMembershipExists   = errors.New("period membership already exists")
	ErrMembershipNotFound = errors.New("period membership not found")
)

// NewFindingNotFoundError creates a finding not found error.
func NewFindingNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrFindingNotFound, id)
}

// NewFindingExistsError creates a finding exists error.
func NewFindingExistsError(fingerprint string) error {
	return fmt.Errorf("%w: fingerprint=%s", ErrFindingExists, fingerprint)
}

// NewMembershipExistsError creates a membership exists error.
func NewMembershipExistsError(findingID, periodLabel string) error {
	return fmt.Errorf("%w: finding=%s period=%s", ErrMembershipExists, findingID, periodLabel)
}

// NewMembershipNotFoundError creates a membership not found error.
func NewMembershipNotFoundError(findingID, periodLabel string) error {
	return fmt.Errorf("%w: finding=%s period=%s", ErrMembershipNotFound, findingID, periodLabel)
}

// IsFindingNotFound checks if the error is a finding not found error.
func IsFindingNotFound(err error) bool {
	return errors.Is(err, ErrFindingNotFound) || errors.Is(err, shared.ErrNotFound)
}

// IsFindingExists checks if the error is a finding exists error.
func IsFindingExists(err error) bool {
	return errors.Is(err, ErrFindingExists) || errors.Is(err, shared.ErrAlreadyExists)
}

// IsMembershipExists checks if the error is a membership exists error.
func IsMembershipExists(err error) bool {
	return errors.Is(err, ErrMembershipExists) || errors.Is(err, shared.ErrAlreadyExists)
}
