package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

// NATSKitchenDispatcher hands tickets to the kitchen over the message bus.
// The printer gateway consumes the topic and owns retries; from this side a
// dispatch call is done once the broker accepts it.
type NATSKitchenDispatcher struct {
	publisher events.Publisher
	logger    apt.Logger
}

func NewNATSKitchenDispatcher(publisher events.Publisher, logger apt.Logger) *NATSKitchenDispatcher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &NATSKitchenDispatcher{publisher: publisher, logger: logger}
}

func (d *NATSKitchenDispatcher) Dispatch(ctx context.Context, ticket KitchenDispatch) error {
	if d.publisher == nil {
		return fmt.Errorf("kitchen publisher not configured")
	}

	ev := event.KitchenDispatchEvent{
		EventType:  event.EventKitchenTicketRequested,
		OccurredAt: time.Now().UTC(),
		OrderID:    ticket.OrderID.String(),
		Number:     ticket.Number,
		OrderType:  ticket.OrderType,
		TabName:    ticket.TabName,
		EmployeeID: ticket.EmployeeID,
	}
	if ticket.TableID != uuid.Nil {
		ev.TableID = ticket.TableID.String()
	}
	for _, line := range ticket.Lines {
		ev.Lines = append(ev.Lines, event.KitchenDispatchLine{
			OrderItemID:  line.ItemID.String(),
			MenuItemID:   line.MenuItemID.String(),
			Quantity:     line.Quantity,
			SeatNumber:   line.SeatNumber,
			Modifiers:    line.Modifiers,
			MenuItemName: line.Name,
		})
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal kitchen ticket for order %s: %w", ticket.OrderID, err)
	}
	if err := d.publisher.Publish(ctx, event.KitchenDispatchTopic, payload); err != nil {
		return fmt.Errorf("publish kitchen ticket for order %s: %w", ticket.OrderID, err)
	}

	d.logger.Debug("kitchen ticket queued",
		"order_id", ticket.OrderID.String(),
		"lines", len(ticket.Lines),
	)
	return nil
}
