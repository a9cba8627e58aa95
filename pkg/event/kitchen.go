package event

import "time"

const (
	KitchenDispatchTopic        = "kitchen.dispatch"
	EventKitchenTicketRequested = "kitchen.ticket.requested"
)

// KitchenDispatchLine is one line item on a requested kitchen ticket.
type KitchenDispatchLine struct {
	OrderItemID string   `json:"order_item_id"`
	MenuItemID  string   `json:"menu_item_id"`
	Quantity    int      `json:"quantity"`
	SeatNumber  int      `json:"seat_number,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`

	// Denormalized for the kitchen display
	MenuItemName string `json:"menu_item_name,omitempty"`
}

// KitchenDispatchEvent asks the kitchen dispatch gateway to print/queue a
// ticket for an order. The gateway owns retries; publishers treat this as
// fire-and-forget.
type KitchenDispatchEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number,omitempty"`
	OrderType  string    `json:"order_type,omitempty"`
	TabName    string    `json:"tab_name,omitempty"`
	TableID    string    `json:"table_id,omitempty"`
	EmployeeID string    `json:"employee_id,omitempty"`

	Lines []KitchenDispatchLine `json:"lines"`
}
