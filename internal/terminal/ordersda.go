package terminal

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
)

// sendToKitchenRequest is the payload for a kitchen send.
type sendToKitchenRequest struct {
	EmployeeID string `json:"employee_id"`
}

// OrderDataAccess centralizes decoding of order service responses. It is
// the production OrderStore.
type OrderDataAccess struct {
	client *apt.ServiceClient
}

func NewOrderDataAccess(client *apt.ServiceClient) *OrderDataAccess {
	return &OrderDataAccess{client: client}
}

func (da *OrderDataAccess) CreateOrder(ctx context.Context, input CreateOrderInput) (*PersistedOrder, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.Create(ctx, "orders", input)
	if err != nil {
		return nil, err
	}

	var order PersistedOrder
	if err := decodeSuccessResponse(resp, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

func (da *OrderDataAccess) AppendItems(ctx context.Context, orderID OrderID, items []NewOrderItem) ([]PersistedItem, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}
	if len(items) == 0 {
		return nil, nil
	}

	path := fmt.Sprintf("/orders/%s/items", orderID)
	resp, err := da.client.Request(ctx, "POST", path, items)
	if err != nil {
		return nil, err
	}

	var appended []PersistedItem
	if err := decodeSuccessResponse(resp, &appended); err != nil {
		return nil, err
	}

	return appended, nil
}

func (da *OrderDataAccess) PatchOrder(ctx context.Context, orderID OrderID, patch OrderPatch) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("order client not configured")
	}

	path := fmt.Sprintf("/orders/%s", orderID)
	_, err := da.client.Request(ctx, "PATCH", path, patch)
	return err
}

func (da *OrderDataAccess) GetOrder(ctx context.Context, orderID OrderID) (*PersistedOrder, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.Get(ctx, "orders", orderID.String())
	if err != nil {
		return nil, err
	}

	var order PersistedOrder
	if err := decodeSuccessResponse(resp, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

func (da *OrderDataAccess) SendToKitchen(ctx context.Context, orderID OrderID, employeeID string) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("order client not configured")
	}

	path := fmt.Sprintf("/orders/%s/send", orderID)
	_, err := da.client.Request(ctx, "POST", path, sendToKitchenRequest{EmployeeID: employeeID})
	return err
}

func (da *OrderDataAccess) ListOpenOrders(ctx context.Context) ([]PersistedOrder, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.Request(ctx, "GET", "/orders?status=open", nil)
	if err != nil {
		return nil, err
	}

	var orders []PersistedOrder
	if err := decodeSuccessResponse(resp, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}
