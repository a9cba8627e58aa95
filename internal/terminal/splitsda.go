package terminal

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
)

// payAllRequest is the payload for a bulk settle of every unpaid split.
type payAllRequest struct {
	Method string       `json:"method"`
	Card   *CardDetails `json:"card,omitempty"`
}

// SplitDataAccess centralizes decoding of split service responses. It is
// the production SplitService.
type SplitDataAccess struct {
	client *apt.ServiceClient
}

func NewSplitDataAccess(client *apt.ServiceClient) *SplitDataAccess {
	return &SplitDataAccess{client: client}
}

func (da *SplitDataAccess) ListSplits(ctx context.Context, parentID OrderID) ([]SplitTicket, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("split client not configured")
	}

	path := fmt.Sprintf("/orders/%s/splits", parentID)
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var splits []SplitTicket
	if err := decodeSuccessResponse(resp, &splits); err != nil {
		return nil, err
	}

	return splits, nil
}

func (da *SplitDataAccess) CreateSplit(ctx context.Context, parentID OrderID) (SplitTicket, error) {
	if da == nil || da.client == nil {
		return SplitTicket{}, fmt.Errorf("split client not configured")
	}

	path := fmt.Sprintf("/orders/%s/splits", parentID)
	resp, err := da.client.Request(ctx, "POST", path, nil)
	if err != nil {
		return SplitTicket{}, err
	}

	var split SplitTicket
	if err := decodeSuccessResponse(resp, &split); err != nil {
		return SplitTicket{}, err
	}

	return split, nil
}

func (da *SplitDataAccess) PayAllSplits(ctx context.Context, parentID OrderID, method string, card *CardDetails) (*PayAllResult, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("split client not configured")
	}

	path := fmt.Sprintf("/orders/%s/splits/pay-all", parentID)
	resp, err := da.client.Request(ctx, "POST", path, payAllRequest{Method: method, Card: card})
	if err != nil {
		return nil, err
	}

	var result PayAllResult
	if err := decodeSuccessResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
