package terminal

import (
	"strings"

	"github.com/google/uuid"
)

// SendCheck is the kitchen send verdict. Reason is machine-readable and
// tells the caller what to prompt for; Message is operator-facing text.
type SendCheck struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidateKitchenSend gates dispatch to the kitchen. Pure function. Rules
// run in fixed order so the operator is prompted for one thing at a time:
// items first, then table, then name, then payment.
func ValidateKitchenSend(draft DraftOrder, rules WorkflowRules) SendCheck {
	if len(draft.ActiveItems()) == 0 {
		return SendCheck{
			Reason:  ReasonNoItems,
			Message: "add at least one item before sending",
		}
	}

	if rules.RequiresTable && draft.TableID == uuid.Nil {
		return SendCheck{
			Reason:  ReasonTableRequired,
			Message: "this order type needs a table, pick one first",
		}
	}

	if rules.RequiresTabName && strings.TrimSpace(draft.TabName) == "" {
		return SendCheck{
			Reason:  ReasonTabNameRequired,
			Message: "this order type needs a customer or tab name",
		}
	}

	if rules.RequiresPaymentFirst && draft.Status != StatusPaid {
		return SendCheck{
			Reason:  ReasonPaymentRequired,
			Message: "this order type is paid before it is sent",
		}
	}

	return SendCheck{Valid: true}
}
