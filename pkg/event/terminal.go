package event

import "time"

const (
	TerminalOrdersTopic = "terminal.orders"

	EventOrderPersisted    = "terminal.order.persisted"
	EventOrderSent         = "terminal.order.sent"
	EventOrderPaid         = "terminal.order.paid"
	EventOrderOrphaned     = "terminal.order.orphaned"
	EventSplitCreated      = "terminal.split.created"
	EventSplitPaid         = "terminal.split.paid"
	EventTabStarted        = "terminal.tab.started"
	EventTabDispatchFailed = "terminal.tab.dispatch_failed"
	EventTabAuthIncrement  = "terminal.tab.auth_increment"
)

// TerminalOrderEvent is the envelope for order lifecycle events published by
// the terminal. Consumed by the open-orders surface and back-office dashboards.
type TerminalOrderEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number,omitempty"`
	OrderType  string    `json:"order_type,omitempty"`
	TabName    string    `json:"tab_name,omitempty"`
	Status     string    `json:"status,omitempty"`
	Total      float64   `json:"total,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// SplitTicketEvent reports split chip activity under a parent order.
type SplitTicketEvent struct {
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	ParentOrderID string    `json:"parent_order_id"`
	SplitID       string    `json:"split_id"`
	DisplayNumber int       `json:"display_number,omitempty"`
	Total         float64   `json:"total,omitempty"`
	Method        string    `json:"method,omitempty"`
}

// TabFlowEvent reports card-first tab activity, including the informational
// outcome of authorization increments.
type TabFlowEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	TabName    string    `json:"tab_name,omitempty"`
	CardLast4  string    `json:"card_last4,omitempty"`
	Step       string    `json:"step,omitempty"`
	Action     string    `json:"action,omitempty"`
	Total      float64   `json:"total,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}
