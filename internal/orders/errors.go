package orders

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-clothing-orders/internal/storage"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicateCheckout is returned when another checkout with the same
	// key committed first.
	ErrDuplicateCheckout = errors.New("checkout key already used")
	ErrStorage           = storage.ErrFailure
)

// TransitionError reports the status that blocked a transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.To == StatusCancelled {
		return fmt.Sprintf("order is %s and can no longer be cancelled", e.From)
	}
	return fmt.Sprintf("order is %s, cannot move to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
