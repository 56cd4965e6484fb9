package dams

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an asset, grant or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor is not allowed to perform the action
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage is returned when the blob store rejects a write or delete
	ErrStorage = errors.New("storage failure")
	// ErrRepository is returned when the metadata store fails
	ErrRepository = errors.New("repository failure")
	// ErrConflict is returned when a concurrent writer changed the asset row first
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when no valid session identifies the caller
	ErrUnauthorized = errors.New("unauthorized")
)

// storageFailure tags err as a blob store failure unless it already carries
// one of the package sentinels.
func storageFailure(err error) error {
	if isClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// repositoryFailure tags err as a metadata store failure unless it already
// carries one of the package sentinels.
func repositoryFailure(err error) error {
	if isClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func isClassified(err error) bool {
	for _, target := range []error{ErrNotFound, ErrForbidden, ErrInvalidInput, ErrStorage, ErrRepository, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
