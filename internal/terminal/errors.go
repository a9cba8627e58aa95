package terminal

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrItemNotFound reports a line id that is not on the working draft.
var ErrItemNotFound = errors.New("item not on draft")

// Machine-readable validation reasons. The UI maps these to the next
// operator action.
const (
	ReasonNoItems           = "NO_ITEMS"
	ReasonTableRequired     = "TABLE_REQUIRED"
	ReasonTabNameRequired   = "TAB_NAME_REQUIRED"
	ReasonPaymentRequired   = "PAYMENT_REQUIRED"
	ReasonSplitParentLocked = "SPLIT_PARENT_LOCKED"
	ReasonInvalidQuantity   = "INVALID_QUANTITY"
	ReasonInvalidSeat       = "INVALID_SEAT"
)

// ValidationError represents a recoverable rule failure. Reason carries a
// machine-readable code the UI maps to a next action (pick a table, enter a
// name, go to payment).
type ValidationError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError wraps a failed create/append/patch against the order
// store. The in-flight memo is already cleared when one of these surfaces,
// so the operator can retry without risking a duplicate order.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PaymentDeclinedError reports a gateway decline for one order or split.
// Queue state is preserved by the caller; the same target stays active for
// retry.
type PaymentDeclinedError struct {
	OrderID uuid.UUID
	Reason  string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment declined for order %s", e.OrderID)
	}
	return fmt.Sprintf("payment declined for order %s: %s", e.OrderID, e.Reason)
}

// BackgroundDispatchError reports a failed step of a fire-and-forget flow.
// It never reaches an HTTP response directly; it is published as an event
// and flagged on the open-orders surface.
type BackgroundDispatchError struct {
	OrderID uuid.UUID
	Step    string
	Err     error
}

func (e *BackgroundDispatchError) Error() string {
	return fmt.Sprintf("background %s failed for order %s: %v", e.Step, e.OrderID, e.Err)
}

func (e *BackgroundDispatchError) Unwrap() error {
	return e.Err
}
