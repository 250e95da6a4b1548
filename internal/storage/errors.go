package storage

import (
	"errors"
	"fmt"
)

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBalanceFloor is returned when a balance change would drop the
	// stored balance below the caller-supplied floor. The floor is
	// revalidated against the live stored value at commit time.
	ErrBalanceFloor = errors.New("balance change would breach reserved floor")
)

// StaleOwnershipError reports an optimistic-concurrency conflict: the
// stored owner of a badge no longer matches the owner the caller
// observed. The entire batch containing the badge is rolled back.
type StaleOwnershipError struct {
	BadgeID string
}

func (e *StaleOwnershipError) Error() string {
	return fmt.Sprintf("stale badge ownership: %s", e.BadgeID)
}
