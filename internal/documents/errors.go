package documents

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown document or folder ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateName is returned when a sibling folder already has the name.
	ErrDuplicateName = errors.New("name already exists in this folder")

	// ErrInvalidName is returned for empty names or names that are not a
	// single path element.
	ErrInvalidName = errors.New("invalid name")

	// ErrFolderCycle is returned when a folder would be moved under itself.
	ErrFolderCycle = errors.New("folder cannot be moved under itself")
)

// TransitionError reports a refused status change.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("document %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
