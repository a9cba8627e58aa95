package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

// SplitChip is the operator-facing summary of one split ticket: a label, a
// paid flag and a total. Chips live in terminal memory; the split service
// owns the tickets themselves.
type SplitChip struct {
	ID            SplitID `json:"id"`
	ParentOrderID OrderID `json:"parent_order_id"`
	DisplayNumber int     `json:"display_number"`
	Label         string  `json:"label"`
	IsPaid        bool    `json:"is_paid"`
	Total         float64 `json:"total"`
}

type splitState struct {
	chips         []SplitChip
	declaredTotal float64
	manageMode    bool
}

// SplitOrchestrator creates and tracks split tickets under parent orders.
// The split service owns value redistribution across children; the
// orchestrator keeps the chips in sync and holds the parent-side
// invariants: a parent with live chips reports zero total, takes no direct
// item adds, and the chip totals always sum to the declared parent total
// between edits.
type SplitOrchestrator struct {
	mu       sync.RWMutex
	byParent map[OrderID]*splitState

	store     *DraftStore
	coord     *PersistenceCoordinator
	splits    SplitService
	orders    OrderStore
	publisher events.Publisher
	logger    apt.Logger
}

func NewSplitOrchestrator(store *DraftStore, coord *PersistenceCoordinator, splits SplitService, orders OrderStore, publisher events.Publisher, logger apt.Logger) *SplitOrchestrator {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &SplitOrchestrator{
		byParent:  make(map[OrderID]*splitState),
		store:     store,
		coord:     coord,
		splits:    splits,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateSplit allocates a new child ticket under the active order. The
// parent is persisted first; a draft that was never persisted cannot be
// split. The first split captures the parent's total as the declared total
// and flips the draft into split-parent mode.
func (o *SplitOrchestrator) CreateSplit(ctx context.Context) (SplitChip, error) {
	snapshot := o.store.Snapshot()
	if o.isSplitTicket(snapshot.ID) {
		return SplitChip{}, ValidationError{
			Field:   "order",
			Reason:  ReasonSplitParentLocked,
			Message: "a split ticket cannot be split again",
		}
	}

	declared := snapshot.Total

	parentID, err := o.coord.EnsureOrder(ctx)
	if err != nil {
		return SplitChip{}, err
	}

	ticket, err := o.splits.CreateSplit(ctx, parentID)
	if err != nil {
		return SplitChip{}, fmt.Errorf("create split for order %s: %w", parentID, err)
	}

	o.mu.Lock()
	state := o.byParent[parentID]
	if state == nil {
		state = &splitState{declaredTotal: declared}
		o.byParent[parentID] = state
	}
	number := len(state.chips) + 1
	chip := SplitChip{
		ID:            ticket.ID,
		ParentOrderID: parentID,
		DisplayNumber: number,
		Label:         fmt.Sprintf("Check %d", number),
		IsPaid:        false,
		Total:         0,
	}
	state.chips = append(state.chips, chip)
	o.mu.Unlock()

	o.store.MarkSplit()

	// The service redistributes value across children on every create;
	// re-list so chip totals keep summing to the declared total.
	if _, err := o.RefreshChips(ctx, parentID); err != nil {
		o.logger.Error("cannot refresh split chips", "error", err, "parent_order_id", parentID.String())
	}

	created := o.chip(parentID, chip.ID)
	o.publishSplitEvent(ctx, event.EventSplitCreated, created, "")
	return created, nil
}

// RefreshChips re-lists the children from the split service and reconciles
// paid flags and totals. Known chips keep their display numbers; new ones
// picked up from the service get the next numbers in order.
func (o *SplitOrchestrator) RefreshChips(ctx context.Context, parentID OrderID) ([]SplitChip, error) {
	tickets, err := o.splits.ListSplits(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list splits for order %s: %w", parentID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	state := o.byParent[parentID]
	if state == nil {
		state = &splitState{}
		o.byParent[parentID] = state
	}

	known := make(map[SplitID]*SplitChip, len(state.chips))
	for i := range state.chips {
		known[state.chips[i].ID] = &state.chips[i]
	}

	for _, t := range tickets {
		if chip, ok := known[t.ID]; ok {
			chip.IsPaid = t.IsPaid
			chip.Total = t.Total
			continue
		}
		number := len(state.chips) + 1
		state.chips = append(state.chips, SplitChip{
			ID:            t.ID,
			ParentOrderID: parentID,
			DisplayNumber: number,
			Label:         fmt.Sprintf("Check %d", number),
			IsPaid:        t.IsPaid,
			Total:         t.Total,
		})
	}

	var sum float64
	for _, c := range state.chips {
		sum += c.Total
	}
	if state.declaredTotal > 0 && !moneyEqual(sum, state.declaredTotal) {
		o.logger.Error("split totals out of balance",
			"parent_order_id", parentID.String(),
			"chip_sum", sum,
			"declared_total", state.declaredTotal,
		)
	}

	return copyChips(state.chips), nil
}

// Chips returns the chip list for a parent in display order.
func (o *SplitOrchestrator) Chips(parentID OrderID) []SplitChip {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state := o.byParent[parentID]
	if state == nil {
		return nil
	}
	return copyChips(state.chips)
}

// UnpaidSplits returns the unpaid chip ids in display order plus their
// combined total, the inputs a pay-all cycle starts from.
func (o *SplitOrchestrator) UnpaidSplits(parentID OrderID) ([]SplitID, float64) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state := o.byParent[parentID]
	if state == nil {
		return nil, 0
	}

	var ids []SplitID
	var total float64
	for _, c := range state.chips {
		if !c.IsPaid {
			ids = append(ids, c.ID)
			total += c.Total
		}
	}
	return ids, total
}

// DeclaredTotal is the parent's pre-split total that the chips distribute.
func (o *SplitOrchestrator) DeclaredTotal(parentID OrderID) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if state := o.byParent[parentID]; state != nil {
		return state.declaredTotal
	}
	return 0
}

// SelectSplit loads a child ticket's items into the draft store as the new
// active context. The operator edits one child at a time.
func (o *SplitOrchestrator) SelectSplit(ctx context.Context, splitID SplitID) (DraftOrder, error) {
	if _, ok := o.parentOf(splitID); !ok {
		return DraftOrder{}, fmt.Errorf("split %s is not on this terminal", splitID)
	}

	child, err := o.orders.GetOrder(ctx, splitID)
	if err != nil {
		return DraftOrder{}, &PersistenceError{Op: "get", Err: err}
	}

	o.store.LoadContext(draftFromPersisted(child))
	return o.store.Snapshot(), nil
}

// MarkPaid flips a chip to paid and reports whether every chip under the
// parent is now settled.
func (o *SplitOrchestrator) MarkPaid(splitID SplitID) (allPaid bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, state := range o.byParent {
		for i := range state.chips {
			if state.chips[i].ID != splitID {
				continue
			}
			state.chips[i].IsPaid = true

			allPaid = true
			for _, c := range state.chips {
				if !c.IsPaid {
					allPaid = false
					break
				}
			}
			return allPaid, nil
		}
	}
	return false, fmt.Errorf("split %s is not on this terminal", splitID)
}

// DissolveIfSettled tears down a fully paid parent: chips cleared, manage
// view closed, and the draft reset if the parent (or one of its children)
// is still the active context.
func (o *SplitOrchestrator) DissolveIfSettled(ctx context.Context, parentID OrderID) bool {
	o.mu.Lock()
	state := o.byParent[parentID]
	if state == nil {
		o.mu.Unlock()
		return false
	}
	for _, c := range state.chips {
		if !c.IsPaid {
			o.mu.Unlock()
			return false
		}
	}
	childIDs := make(map[OrderID]bool, len(state.chips))
	for _, c := range state.chips {
		childIDs[c.ID] = true
	}
	delete(o.byParent, parentID)
	o.mu.Unlock()

	active := o.store.Snapshot().ID
	if active == parentID || childIDs[active] {
		o.store.Reset()
	}

	o.publishParentSettled(ctx, parentID)
	return true
}

// EnterManage opens the split-manager view for a parent. While it is open
// the operator picks chips; direct item adds stay refused by the draft
// store either way.
func (o *SplitOrchestrator) EnterManage(parentID OrderID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := o.byParent[parentID]
	if state == nil || len(state.chips) == 0 {
		return fmt.Errorf("order %s has no splits to manage", parentID)
	}
	state.manageMode = true
	return nil
}

func (o *SplitOrchestrator) ExitManage(parentID OrderID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if state := o.byParent[parentID]; state != nil {
		state.manageMode = false
	}
}

// InManage reports whether the split-manager view is open for a parent.
func (o *SplitOrchestrator) InManage(parentID OrderID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if state := o.byParent[parentID]; state != nil {
		return state.manageMode
	}
	return false
}

func (o *SplitOrchestrator) parentOf(splitID SplitID) (OrderID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for parentID, state := range o.byParent {
		for _, c := range state.chips {
			if c.ID == splitID {
				return parentID, true
			}
		}
	}
	return OrderID{}, false
}

func (o *SplitOrchestrator) isSplitTicket(id OrderID) bool {
	_, ok := o.parentOf(id)
	return ok
}

func (o *SplitOrchestrator) chip(parentID OrderID, splitID SplitID) SplitChip {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if state := o.byParent[parentID]; state != nil {
		for _, c := range state.chips {
			if c.ID == splitID {
				return c
			}
		}
	}
	return SplitChip{}
}

func (o *SplitOrchestrator) publishSplitEvent(ctx context.Context, eventType string, chip SplitChip, method string) {
	if o.publisher == nil {
		return
	}
	ev := event.SplitTicketEvent{
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		ParentOrderID: chip.ParentOrderID.String(),
		SplitID:       chip.ID.String(),
		DisplayNumber: chip.DisplayNumber,
		Total:         chip.Total,
		Method:        method,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("cannot marshal split event", "error", err, "split_id", chip.ID.String())
		return
	}
	if err := o.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		o.logger.Error("cannot publish split event", "error", err, "split_id", chip.ID.String())
	}
}

func (o *SplitOrchestrator) publishParentSettled(ctx context.Context, parentID OrderID) {
	if o.publisher == nil {
		return
	}
	ev := event.TerminalOrderEvent{
		EventType:  event.EventOrderPaid,
		OccurredAt: time.Now().UTC(),
		OrderID:    parentID.String(),
		Status:     StatusPaid,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("cannot marshal order event", "error", err, "order_id", parentID.String())
		return
	}
	if err := o.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		o.logger.Error("cannot publish order event", "error", err, "order_id", parentID.String())
	}
}

func copyChips(chips []SplitChip) []SplitChip {
	out := make([]SplitChip, len(chips))
	copy(out, chips)
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayNumber < out[j].DisplayNumber })
	return out
}

// moneyEqual compares currency amounts with a half-cent tolerance.
func moneyEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.005
}
