package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"golang.org/x/sync/singleflight"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

var errDraftSuperseded = errors.New("draft superseded before create completed")

// PersistenceCoordinator turns the working draft into a persisted order
// exactly once per draft generation. Pay, split, discount and tab flows all
// race to "make sure this order exists"; the single-flight group keyed on
// the draft generation collapses those races into one create call whose
// result every caller shares. The memo clears on completion or error, so a
// failed create can be retried without ever duplicating an order.
type PersistenceCoordinator struct {
	store     *DraftStore
	orders    OrderStore
	publisher events.Publisher
	logger    apt.Logger

	flight singleflight.Group
}

func NewPersistenceCoordinator(store *DraftStore, orders OrderStore, publisher events.Publisher, logger apt.Logger) *PersistenceCoordinator {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &PersistenceCoordinator{
		store:     store,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

// EnsureOrder returns the persisted id for the working draft, creating the
// order with the draft's current items when none exists yet.
func (c *PersistenceCoordinator) EnsureOrder(ctx context.Context) (OrderID, error) {
	return c.ensure(ctx, true)
}

// EnsureShell returns a persisted id for the working draft without sending
// any items. Card-first tab flows need an id to authorize against before
// content exists; the captured items follow in a background append.
func (c *PersistenceCoordinator) EnsureShell(ctx context.Context) (OrderID, error) {
	return c.ensure(ctx, false)
}

func (c *PersistenceCoordinator) ensure(ctx context.Context, withItems bool) (OrderID, error) {
	snapshot, gen := c.store.SnapshotWithGeneration()
	if snapshot.Persisted() {
		return snapshot.ID, nil
	}

	key := fmt.Sprintf("draft-%d", gen)
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		return c.createForGeneration(ctx, gen, withItems)
	})
	if err != nil {
		return OrderID{}, err
	}
	return v.(OrderID), nil
}

func (c *PersistenceCoordinator) createForGeneration(ctx context.Context, gen uint64, withItems bool) (OrderID, error) {
	// Re-read under the flight: another trigger may have finished a create
	// for this draft, or the operator may have reset it already.
	snapshot, liveGen := c.store.SnapshotWithGeneration()
	if snapshot.Persisted() {
		return snapshot.ID, nil
	}
	if liveGen != gen {
		return OrderID{}, &PersistenceError{Op: "create", Err: errDraftSuperseded}
	}

	input := CreateOrderInput{
		OrderType:  snapshot.OrderType,
		TableID:    snapshot.TableID,
		TabName:    snapshot.TabName,
		GuestCount: snapshot.GuestCount,
	}
	if withItems {
		input.Items = newOrderItems(snapshot.Items)
	}

	persisted, err := c.orders.CreateOrder(ctx, input)
	if err != nil {
		return OrderID{}, &PersistenceError{Op: "create", Err: err}
	}

	var adopted bool
	if withItems {
		adopted = c.store.AdoptPersisted(gen, persisted)
	} else {
		adopted = c.store.AdoptShell(gen, persisted.ID, persisted.Number)
	}
	if !adopted {
		// The operator moved on before the create came back. The order is
		// durable but ownerless; surface it so someone reconciles it.
		c.logger.Info("order persisted after draft reset",
			"order_id", persisted.ID.String(),
			"number", persisted.Number,
		)
		c.publishOrderEvent(ctx, event.EventOrderOrphaned, persisted, "draft reset before create completed")
		return persisted.ID, nil
	}

	c.logger.Debug("draft order persisted",
		"order_id", persisted.ID.String(),
		"number", persisted.Number,
	)
	c.publishOrderEvent(ctx, event.EventOrderPersisted, persisted, "")
	return persisted.ID, nil
}

// AppendUnsent pushes draft lines the store has not seen yet and swaps the
// returned server ids into the draft, matched by client ref. Items are
// replaced in place, never duplicated.
func (c *PersistenceCoordinator) AppendUnsent(ctx context.Context) error {
	snapshot, gen := c.store.SnapshotWithGeneration()
	if !snapshot.Persisted() {
		return &PersistenceError{Op: "append", Err: errors.New("draft has no persisted order")}
	}

	pending := snapshot.UnpersistedItems()
	if len(pending) == 0 {
		return nil
	}

	items, err := c.orders.AppendItems(ctx, snapshot.ID, newOrderItems(pending))
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}

	if !c.store.AdoptItemIDs(gen, items) {
		c.logger.Info("append finished after draft reset", "order_id", snapshot.ID.String())
	}
	return nil
}

func (c *PersistenceCoordinator) publishOrderEvent(ctx context.Context, eventType string, persisted *PersistedOrder, reason string) {
	if c.publisher == nil {
		return
	}
	ev := event.TerminalOrderEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		OrderID:    persisted.ID.String(),
		Number:     persisted.Number,
		OrderType:  persisted.OrderType,
		TabName:    persisted.TabName,
		Status:     persisted.Status,
		Total:      persisted.Total,
		Reason:     reason,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("cannot marshal order event", "error", err, "order_id", persisted.ID.String())
		return
	}
	if err := c.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		c.logger.Error("cannot publish order event", "error", err, "order_id", persisted.ID.String())
	}
}

func newOrderItems(items []DraftItem) []NewOrderItem {
	out := make([]NewOrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, NewOrderItem{
			ClientRef:  it.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			Modifiers:  it.Modifiers,
			SeatNumber: it.SeatNumber,
			Status:     it.Status,
		})
	}
	return out
}
