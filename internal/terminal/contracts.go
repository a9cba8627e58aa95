package terminal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identifier aliases matching the wire format of the backing services.
type (
	OrderID    = uuid.UUID
	SplitID    = uuid.UUID
	MenuItemID = uuid.UUID
	TableID    = uuid.UUID
)

// NewOrderItem is one line in a create or append call. ClientRef echoes the
// terminal-generated item id so the returned server line can replace the
// local one in place instead of duplicating it.
type NewOrderItem struct {
	ClientRef  uuid.UUID  `json:"client_ref"`
	MenuItemID MenuItemID `json:"menu_item_id"`
	Name       string     `json:"name"`
	Price      float64    `json:"price"`
	Quantity   int        `json:"quantity"`
	Modifiers  []string   `json:"modifiers,omitempty"`
	SeatNumber int        `json:"seat_number,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// PersistedItem is a stored order line as the order service returns it.
type PersistedItem struct {
	ID            uuid.UUID  `json:"id"`
	ClientRef     uuid.UUID  `json:"client_ref,omitempty"`
	MenuItemID    MenuItemID `json:"menu_item_id"`
	Name          string     `json:"name"`
	Price         float64    `json:"price"`
	Quantity      int        `json:"quantity"`
	Modifiers     []string   `json:"modifiers,omitempty"`
	SeatNumber    int        `json:"seat_number,omitempty"`
	SentToKitchen bool       `json:"sent_to_kitchen"`
	Status        string     `json:"status"`
}

// PersistedOrder is the durable server representation of an order.
type PersistedOrder struct {
	ID            OrderID         `json:"id"`
	Number        string          `json:"number"`
	OrderType     string          `json:"order_type"`
	TableID       TableID         `json:"table_id,omitempty"`
	TabName       string          `json:"tab_name,omitempty"`
	GuestCount    int             `json:"guest_count"`
	Status        string          `json:"status"`
	Subtotal      float64         `json:"subtotal"`
	Tax           float64         `json:"tax"`
	DiscountTotal float64         `json:"discount_total"`
	TipTotal      float64         `json:"tip_total"`
	Total         float64         `json:"total"`
	Items         []PersistedItem `json:"items"`
}

// CreateOrderInput is the payload for a new order. Items may be empty; a
// shell order is a legitimate create.
type CreateOrderInput struct {
	OrderType  string         `json:"order_type"`
	TableID    TableID        `json:"table_id,omitempty"`
	TabName    string         `json:"tab_name,omitempty"`
	GuestCount int            `json:"guest_count,omitempty"`
	Items      []NewOrderItem `json:"items,omitempty"`
}

// OrderPatch carries the mutable header fields of a persisted order. Nil
// fields are left untouched.
type OrderPatch struct {
	TabName    *string  `json:"tab_name,omitempty"`
	TableID    *TableID `json:"table_id,omitempty"`
	GuestCount *int     `json:"guest_count,omitempty"`
	Status     *string  `json:"status,omitempty"`
}

// SplitTicket is a child ticket as the split service returns it.
type SplitTicket struct {
	ID            SplitID `json:"id"`
	ParentOrderID OrderID `json:"parent_order_id"`
	DisplayNumber int     `json:"display_number,omitempty"`
	IsPaid        bool    `json:"is_paid"`
	Total         float64 `json:"total"`
}

// PayAllResult summarizes a bulk settle of every unpaid split at once.
type PayAllResult struct {
	SplitsPaid  int     `json:"splits_paid"`
	TotalAmount float64 `json:"total_amount"`
}

// CardDetails identifies a tokenized card for card-not-present charges.
type CardDetails struct {
	Token string `json:"token"`
	Last4 string `json:"last4"`
}

// CardAuthorization is the gateway's answer to a card-present pre-auth.
type CardAuthorization struct {
	Approved         bool    `json:"approved"`
	CardLast4        string  `json:"card_last4,omitempty"`
	CardholderName   string  `json:"cardholder_name,omitempty"`
	CardType         string  `json:"card_type,omitempty"`
	AuthorizedAmount float64 `json:"authorized_amount"`
	DeclineReason    string  `json:"decline_reason,omitempty"`
}

// Outcomes of a tab pre-authorization increment. Informational only; none
// of these block or reverse an already dispatched order.
const (
	AuthActionIncremented     = "incremented"
	AuthActionBelowThreshold  = "below_threshold"
	AuthActionIncrementFailed = "increment_failed"
	AuthActionNoCard          = "no_card"
)

// AuthIncrement reports whether the held amount on a tab's card was topped
// up to cover the running total.
type AuthIncrement struct {
	Action             string  `json:"action"`
	NewAuthorizedTotal float64 `json:"new_authorized_total,omitempty"`
}

// ReceiptData is what the gateway hands back after a completed payment.
type ReceiptData struct {
	OrderID    OrderID   `json:"order_id"`
	Number     string    `json:"number,omitempty"`
	Method     string    `json:"method"`
	AmountPaid float64   `json:"amount_paid"`
	TipAmount  float64   `json:"tip_amount,omitempty"`
	CardLast4  string    `json:"card_last4,omitempty"`
	PaidAt     time.Time `json:"paid_at"`
}

// KitchenDispatchLine is one line of a kitchen ticket.
type KitchenDispatchLine struct {
	ItemID     uuid.UUID  `json:"item_id"`
	MenuItemID MenuItemID `json:"menu_item_id"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	SeatNumber int        `json:"seat_number,omitempty"`
	Modifiers  []string   `json:"modifiers,omitempty"`
}

// KitchenDispatch is the ticket handed to the kitchen gateway when an order
// is sent.
type KitchenDispatch struct {
	OrderID    OrderID               `json:"order_id"`
	Number     string                `json:"number"`
	OrderType  string                `json:"order_type"`
	TabName    string                `json:"tab_name,omitempty"`
	TableID    TableID               `json:"table_id,omitempty"`
	EmployeeID string                `json:"employee_id"`
	Lines      []KitchenDispatchLine `json:"lines"`
}

// OrderStore is the durable order service this terminal reconciles against.
type OrderStore interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*PersistedOrder, error)
	AppendItems(ctx context.Context, orderID OrderID, items []NewOrderItem) ([]PersistedItem, error)
	PatchOrder(ctx context.Context, orderID OrderID, patch OrderPatch) error
	GetOrder(ctx context.Context, orderID OrderID) (*PersistedOrder, error)
	SendToKitchen(ctx context.Context, orderID OrderID, employeeID string) error
	ListOpenOrders(ctx context.Context) ([]PersistedOrder, error)
}

// SplitService owns child tickets and the redistribution of value across
// them.
type SplitService interface {
	ListSplits(ctx context.Context, parentID OrderID) ([]SplitTicket, error)
	CreateSplit(ctx context.Context, parentID OrderID) (SplitTicket, error)
	PayAllSplits(ctx context.Context, parentID OrderID, method string, card *CardDetails) (*PayAllResult, error)
}

// PaymentGateway fronts the card-present hardware and the charge API.
// Declines come back as *PaymentDeclinedError.
type PaymentGateway interface {
	AuthorizeCard(ctx context.Context, orderID OrderID, amount float64) (*CardAuthorization, error)
	IncrementAuthorization(ctx context.Context, orderID OrderID) (*AuthIncrement, error)
	Pay(ctx context.Context, orderID OrderID, method string) (*ReceiptData, error)
}

// KitchenDispatcher queues a ticket for the kitchen. Fire-and-forget from
// this side; retry policy lives in the dispatch gateway.
type KitchenDispatcher interface {
	Dispatch(ctx context.Context, ticket KitchenDispatch) error
}
