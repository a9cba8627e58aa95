package terminal

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

type authorizeRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type payRequest struct {
	Method string `json:"method"`
}

// paymentResult is the gateway's wire shape for a charge attempt. Declines
// come back as a regular 200 with status declined, not as transport
// errors.
type paymentResult struct {
	Status        string       `json:"status"`
	DeclineReason string       `json:"decline_reason,omitempty"`
	Receipt       *ReceiptData `json:"receipt,omitempty"`
}

// PaymentDataAccess centralizes decoding of payment gateway responses. It
// is the production PaymentGateway.
type PaymentDataAccess struct {
	client *apt.ServiceClient
}

func NewPaymentDataAccess(client *apt.ServiceClient) *PaymentDataAccess {
	return &PaymentDataAccess{client: client}
}

func (da *PaymentDataAccess) AuthorizeCard(ctx context.Context, orderID OrderID, amount float64) (*CardAuthorization, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("payment client not configured")
	}

	resp, err := da.client.Request(ctx, "POST", "/authorizations", authorizeRequest{
		OrderID: orderID.String(),
		Amount:  amount,
	})
	if err != nil {
		return nil, err
	}

	var auth CardAuthorization
	if err := decodeSuccessResponse(resp, &auth); err != nil {
		return nil, err
	}

	return &auth, nil
}

func (da *PaymentDataAccess) IncrementAuthorization(ctx context.Context, orderID OrderID) (*AuthIncrement, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("payment client not configured")
	}

	path := fmt.Sprintf("/authorizations/%s/increment", orderID)
	resp, err := da.client.Request(ctx, "POST", path, nil)
	if err != nil {
		return nil, err
	}

	var inc AuthIncrement
	if err := decodeSuccessResponse(resp, &inc); err != nil {
		return nil, err
	}
	if inc.Action == "" {
		inc.Action = AuthActionNoCard
	}

	return &inc, nil
}

func (da *PaymentDataAccess) Pay(ctx context.Context, orderID OrderID, method string) (*ReceiptData, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("payment client not configured")
	}

	path := fmt.Sprintf("/orders/%s/payments", orderID)
	resp, err := da.client.Request(ctx, "POST", path, payRequest{Method: method})
	if err != nil {
		return nil, err
	}

	var result paymentResult
	if err := decodeSuccessResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Status == "declined" {
		return nil, &PaymentDeclinedError{OrderID: orderID, Reason: result.DeclineReason}
	}
	if result.Receipt == nil {
		return nil, fmt.Errorf("payment response for order %s has no receipt", orderID)
	}
	if result.Receipt.OrderID == uuid.Nil {
		result.Receipt.OrderID = orderID
	}

	return result.Receipt, nil
}
