package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/catering-orders/internal/domain/inventory"
)

// Business rule violations. They are returned synchronously and never retried.
var (
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrNotModifiable             = errors.New("order can no longer be modified")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrMissingCancellationReason = errors.New("cancellation requires a reason and a contact mode")
	ErrOutOfStock                = inventory.ErrOutOfStock
)

// ErrDuplicateNumber is returned by Tx.Insert when the generated order number
// is already taken. The service retries with a fresh number.
var ErrDuplicateNumber = errors.New("order number already exists")

// NotFoundError names the missing resource. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError describes malformed input. It matches ErrInvalidRequest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// TransitionError carries the rejected edge. It matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
