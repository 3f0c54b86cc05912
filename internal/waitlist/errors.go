package waitlist

import (
	"errors"
	"fmt"
	"strings"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"
)

// ErrInvalidConfirmationCode is returned by CheckIn when the code matches no
// remote entry that can still check in.
var ErrInvalidConfirmationCode = errors.New("invalid confirmation code")

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

type InvalidTransitionError struct {
	From models.EntryStatus
	To   models.EntryStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move entry from %s to %s", e.From, e.To)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// notFound converts the store's sentinel errors into a NotFoundError and
// passes anything else through.
func notFound(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return &NotFoundError{Resource: "entry", ID: id}
	case errors.Is(err, store.ErrTableTypeNotFound):
		return &NotFoundError{Resource: "table type", ID: id}
	}
	return err
}
