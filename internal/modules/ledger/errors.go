package ledger

import (
	"errors"
	"fmt"
)

// ErrInsufficientQuantity is returned by Sell when the requested quantity
// exceeds the open position. The check happens before any mutation.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// ErrEmptyPosition is returned by AverageCostBasis when there are no open
// lots for the ticker. Callers are expected to check TotalQuantity first;
// this is a precondition violation, not a branch to handle routinely.
var ErrEmptyPosition = errors.New("no open position")

// ValidationError rejects bad input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
