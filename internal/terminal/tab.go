package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/enums/ordertype"
	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

// TabCardAuthorization records one card hold against an order. At most one
// authorization per order is active; a new hold supersedes the old one,
// which stays on record with Authorized false.
type TabCardAuthorization struct {
	OrderID          OrderID   `json:"order_id"`
	CardLast4        string    `json:"card_last4"`
	CardholderName   string    `json:"cardholder_name,omitempty"`
	CardType         string    `json:"card_type,omitempty"`
	AuthorizedAmount float64   `json:"authorized_amount"`
	Authorized       bool      `json:"authorized"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthRegistry keeps the card holds taken on this terminal.
type AuthRegistry struct {
	mu      sync.RWMutex
	byOrder map[OrderID][]TabCardAuthorization
}

func NewAuthRegistry() *AuthRegistry {
	return &AuthRegistry{byOrder: make(map[OrderID][]TabCardAuthorization)}
}

// Record stores a new hold and supersedes any active one on the same order.
func (r *AuthRegistry) Record(auth TabCardAuthorization) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[auth.OrderID]
	for i := range history {
		history[i].Authorized = false
	}
	r.byOrder[auth.OrderID] = append(history, auth)
}

// Active returns the live hold for an order, if one exists.
func (r *AuthRegistry) Active(orderID OrderID) (TabCardAuthorization, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byOrder[orderID] {
		if a.Authorized {
			return a, true
		}
	}
	return TabCardAuthorization{}, false
}

// History returns every hold ever taken on an order, superseded ones
// included.
func (r *AuthRegistry) History(orderID OrderID) []TabCardAuthorization {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TabCardAuthorization, len(r.byOrder[orderID]))
	copy(out, r.byOrder[orderID])
	return out
}

// TabStartResult is what the operator screen gets back from a successful
// card-first start: the shell order id, the auto-assigned tab name and the
// hold that was taken. Everything else happens in the background.
type TabStartResult struct {
	OrderID       OrderID              `json:"order_id"`
	TabName       string               `json:"tab_name"`
	Authorization TabCardAuthorization `json:"authorization"`
}

type tabDispatchJob struct {
	orderID    OrderID
	number     string
	orderType  string
	tableID    TableID
	tabName    string
	cardLast4  string
	employeeID string
	items      []DraftItem
}

// TabOrchestrator runs the card-first tab flow: authorize a card against a
// shell order, hand the terminal back to the operator immediately, and
// finish the append, rename, kitchen send and hold increment in the
// background on a snapshot captured at start. The background task never
// re-reads live draft state; by the time it runs, the draft belongs to the
// next customer.
type TabOrchestrator struct {
	store     *DraftStore
	coord     *PersistenceCoordinator
	orders    OrderStore
	gateway   PaymentGateway
	kitchen   KitchenDispatcher
	auths     *AuthRegistry
	publisher events.Publisher
	logger    apt.Logger

	preAuthAmount float64
	bg            sync.WaitGroup
}

func NewTabOrchestrator(store *DraftStore, coord *PersistenceCoordinator, orders OrderStore, gateway PaymentGateway, kitchen KitchenDispatcher, auths *AuthRegistry, publisher events.Publisher, logger apt.Logger, preAuthAmount float64) *TabOrchestrator {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &TabOrchestrator{
		store:         store,
		coord:         coord,
		orders:        orders,
		gateway:       gateway,
		kitchen:       kitchen,
		auths:         auths,
		publisher:     publisher,
		logger:        logger,
		preAuthAmount: preAuthAmount,
	}
}

// StartTabWithCard authorizes a card hold for the working draft and resets
// the terminal for the next customer before the backend work is done. A
// decline leaves the draft untouched so the guest can try another card.
func (o *TabOrchestrator) StartTabWithCard(ctx context.Context, employeeID string) (TabStartResult, error) {
	snapshot := o.store.Snapshot()
	if snapshot.Status == StatusSplit {
		return TabStartResult{}, ValidationError{
			Field:   "order",
			Reason:  ReasonSplitParentLocked,
			Message: "a split order cannot be turned into a tab",
		}
	}
	if snapshot.OrderType == "" {
		o.store.SetOrderType(ordertype.Types.BarTab.Code())
	}

	orderID, err := o.coord.EnsureShell(ctx)
	if err != nil {
		return TabStartResult{}, err
	}

	auth, err := o.gateway.AuthorizeCard(ctx, orderID, o.preAuthAmount)
	if err != nil {
		return TabStartResult{}, fmt.Errorf("authorize card for order %s: %w", orderID, err)
	}
	if !auth.Approved {
		return TabStartResult{}, &PaymentDeclinedError{OrderID: orderID, Reason: auth.DeclineReason}
	}

	record := TabCardAuthorization{
		OrderID:          orderID,
		CardLast4:        auth.CardLast4,
		CardholderName:   auth.CardholderName,
		CardType:         auth.CardType,
		AuthorizedAmount: auth.AuthorizedAmount,
		Authorized:       true,
		CreatedAt:        time.Now().UTC(),
	}
	o.auths.Record(record)

	tabName := auth.CardholderName
	if tabName == "" {
		tabName = fmt.Sprintf("Card %s", auth.CardLast4)
	}

	// Capture everything the background task needs before the reset. It
	// must never look at the draft again.
	snapshot = o.store.Snapshot()
	job := tabDispatchJob{
		orderID:    orderID,
		number:     snapshot.Number,
		orderType:  snapshot.OrderType,
		tableID:    snapshot.TableID,
		tabName:    tabName,
		cardLast4:  auth.CardLast4,
		employeeID: employeeID,
		items:      snapshot.UnpersistedItems(),
	}

	o.store.Reset()

	o.publishTabEvent(ctx, event.TabFlowEvent{
		EventType: event.EventTabStarted,
		OrderID:   orderID.String(),
		TabName:   tabName,
		CardLast4: auth.CardLast4,
	})

	bgCtx := context.WithoutCancel(ctx)
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		o.dispatchTab(bgCtx, job)
	}()

	return TabStartResult{OrderID: orderID, TabName: tabName, Authorization: record}, nil
}

// Drain waits for in-flight background dispatches, bounded by ctx. Wired
// into service shutdown so a tab started seconds before a deploy still
// reaches the kitchen.
func (o *TabOrchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchTab finishes a started tab against the captured snapshot. A
// failed append aborts everything after it; dispatching a shell to the
// kitchen would be worse than a visible error. A failed rename is only
// logged. A failed send skips the hold increment. The increment itself is
// informational whatever happens.
func (o *TabOrchestrator) dispatchTab(ctx context.Context, job tabDispatchJob) {
	if len(job.items) > 0 {
		if _, err := o.orders.AppendItems(ctx, job.orderID, newOrderItems(job.items)); err != nil {
			derr := &BackgroundDispatchError{OrderID: job.orderID, Step: "append", Err: err}
			o.logger.Error("tab dispatch aborted", "error", derr, "order_id", job.orderID.String(), "step", "append")
			o.publishTabEvent(ctx, event.TabFlowEvent{
				EventType: event.EventTabDispatchFailed,
				OrderID:   job.orderID.String(),
				TabName:   job.tabName,
				Step:      "append",
				Reason:    err.Error(),
			})
			return
		}
	}

	patch := OrderPatch{TabName: &job.tabName}
	if err := o.orders.PatchOrder(ctx, job.orderID, patch); err != nil {
		o.logger.Error("cannot set tab name", "error", err, "order_id", job.orderID.String())
	}

	if err := o.orders.SendToKitchen(ctx, job.orderID, job.employeeID); err != nil {
		derr := &BackgroundDispatchError{OrderID: job.orderID, Step: "send", Err: err}
		o.logger.Error("tab dispatch aborted", "error", derr, "order_id", job.orderID.String(), "step", "send")
		o.publishTabEvent(ctx, event.TabFlowEvent{
			EventType: event.EventTabDispatchFailed,
			OrderID:   job.orderID.String(),
			TabName:   job.tabName,
			Step:      "send",
			Reason:    err.Error(),
		})
		return
	}

	o.publishOrderSent(ctx, job)

	if o.kitchen != nil {
		ticket := kitchenTicketFor(job)
		if err := o.kitchen.Dispatch(ctx, ticket); err != nil {
			o.logger.Error("cannot queue kitchen ticket", "error", err, "order_id", job.orderID.String())
		}
	}

	inc, err := o.gateway.IncrementAuthorization(ctx, job.orderID)
	action := AuthActionIncrementFailed
	var newTotal float64
	if err != nil {
		o.logger.Info("tab hold increment failed", "error", err, "order_id", job.orderID.String())
	} else {
		action = inc.Action
		newTotal = inc.NewAuthorizedTotal
	}
	o.publishTabEvent(ctx, event.TabFlowEvent{
		EventType: event.EventTabAuthIncrement,
		OrderID:   job.orderID.String(),
		TabName:   job.tabName,
		CardLast4: job.cardLast4,
		Action:    action,
		Total:     newTotal,
	})
}

func kitchenTicketFor(job tabDispatchJob) KitchenDispatch {
	ticket := KitchenDispatch{
		OrderID:    job.orderID,
		Number:     job.number,
		OrderType:  job.orderType,
		TabName:    job.tabName,
		TableID:    job.tableID,
		EmployeeID: job.employeeID,
	}
	for _, it := range job.items {
		if it.Status != ItemStatusActive || it.IsHeld {
			continue
		}
		ticket.Lines = append(ticket.Lines, KitchenDispatchLine{
			ItemID:     it.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			SeatNumber: it.SeatNumber,
			Modifiers:  it.Modifiers,
		})
	}
	return ticket
}

func (o *TabOrchestrator) publishTabEvent(ctx context.Context, ev event.TabFlowEvent) {
	if o.publisher == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("cannot marshal tab event", "error", err, "order_id", ev.OrderID)
		return
	}
	if err := o.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		o.logger.Error("cannot publish tab event", "error", err, "order_id", ev.OrderID)
	}
}

func (o *TabOrchestrator) publishOrderSent(ctx context.Context, job tabDispatchJob) {
	if o.publisher == nil {
		return
	}
	ev := event.TerminalOrderEvent{
		EventType:  event.EventOrderSent,
		OccurredAt: time.Now().UTC(),
		OrderID:    job.orderID.String(),
		Number:     job.number,
		OrderType:  job.orderType,
		TabName:    job.tabName,
		Status:     StatusSent,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("cannot marshal order event", "error", err, "order_id", job.orderID.String())
		return
	}
	if err := o.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		o.logger.Error("cannot publish order event", "error", err, "order_id", job.orderID.String())
	}
}
