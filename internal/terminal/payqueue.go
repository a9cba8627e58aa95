package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

// Pay-all runs as a small state machine. The session opens on the confirm
// step, moves to paying once the operator picks a method, and lands on done
// after the last split settles.
const (
	PayStepConfirm = "confirm"
	PayStepPaying  = "paying"
	PayStepDone    = "done"
)

// PaidSplit records one settled split inside a pay-all run.
type PaidSplit struct {
	SplitID SplitID `json:"split_id"`
	Total   float64 `json:"total"`
}

// PayAllState is a point-in-time view of the active session for the
// operator screen.
type PayAllState struct {
	Active        bool        `json:"active"`
	Step          string      `json:"step,omitempty"`
	ParentOrderID OrderID     `json:"parent_order_id,omitempty"`
	Queue         []SplitID   `json:"queue,omitempty"`
	Index         int         `json:"index"`
	Method        string      `json:"method,omitempty"`
	CombinedTotal float64     `json:"combined_total"`
	AmountPaid    float64     `json:"amount_paid"`
	Paid          []PaidSplit `json:"paid,omitempty"`
	LastDecline   string      `json:"last_decline,omitempty"`
}

type payAllSession struct {
	parentID    OrderID
	queue       []SplitID
	totals      map[SplitID]float64
	idx         int
	step        string
	method      string
	combined    float64
	amountPaid  float64
	paid        []PaidSplit
	lastDecline string
}

// PayAllQueue walks the unpaid splits of the active parent and settles them
// one at a time. A declined charge keeps the queue on the same split so the
// operator can retry or switch cards; cancelling mid-run keeps whatever was
// already paid. Only the last split in the run surfaces its receipt;
// intermediate ones are swallowed so the cycle never pauses.
type PayAllQueue struct {
	mu      sync.Mutex
	session *payAllSession

	store     *DraftStore
	splits    *SplitOrchestrator
	gateway   PaymentGateway
	publisher events.Publisher
	logger    apt.Logger
}

func NewPayAllQueue(store *DraftStore, splits *SplitOrchestrator, gateway PaymentGateway, publisher events.Publisher, logger apt.Logger) *PayAllQueue {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &PayAllQueue{
		store:     store,
		splits:    splits,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// Start opens a pay-all session for the active split parent. The unpaid
// chips are queued in display order and the session waits on the confirm
// step.
func (q *PayAllQueue) Start(ctx context.Context) (PayAllState, error) {
	snapshot := q.store.Snapshot()
	if snapshot.Status != StatusSplit {
		return PayAllState{}, ValidationError{
			Field:   "order",
			Reason:  ReasonSplitParentLocked,
			Message: "active order is not split into checks",
		}
	}

	ids, combined := q.splits.UnpaidSplits(snapshot.ID)
	if len(ids) == 0 {
		return PayAllState{}, fmt.Errorf("order %s has no unpaid splits", snapshot.ID)
	}

	totals := make(map[SplitID]float64, len(ids))
	for _, chip := range q.splits.Chips(snapshot.ID) {
		totals[chip.ID] = chip.Total
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.session != nil && q.session.step != PayStepDone {
		return PayAllState{}, errors.New("a pay-all session is already in progress")
	}
	q.session = &payAllSession{
		parentID: snapshot.ID,
		queue:    ids,
		totals:   totals,
		step:     PayStepConfirm,
		combined: combined,
	}
	return q.stateLocked(), nil
}

// Confirm records the payment method and moves the session to the paying
// step.
func (q *PayAllQueue) Confirm(method string) (PayAllState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.session == nil {
		return PayAllState{}, errors.New("no pay-all session in progress")
	}
	if q.session.step != PayStepConfirm {
		return PayAllState{}, fmt.Errorf("pay-all session is in step %s, not %s", q.session.step, PayStepConfirm)
	}
	if method == "" {
		return PayAllState{}, ValidationError{Field: "method", Reason: ReasonPaymentRequired, Message: "payment method is required"}
	}
	q.session.step = PayStepPaying
	q.session.method = method
	return q.stateLocked(), nil
}

// PayCurrent charges the split at the head of the queue. On success the
// chip is marked paid and the queue advances; a decline leaves the queue in
// place so the same split is retried. When the last split settles the
// session moves to done, the parent is dissolved, and the combined receipt
// is returned. Every earlier split returns a nil receipt.
func (q *PayAllQueue) PayCurrent(ctx context.Context) (*ReceiptData, PayAllState, error) {
	q.mu.Lock()
	if q.session == nil {
		q.mu.Unlock()
		return nil, PayAllState{}, errors.New("no pay-all session in progress")
	}
	if q.session.step != PayStepPaying {
		state := q.stateLocked()
		q.mu.Unlock()
		return nil, state, fmt.Errorf("pay-all session is in step %s, not %s", q.session.step, PayStepPaying)
	}
	splitID := q.session.queue[q.session.idx]
	method := q.session.method
	parentID := q.session.parentID
	q.mu.Unlock()

	receipt, err := q.gateway.Pay(ctx, splitID, method)
	if err != nil {
		q.mu.Lock()
		var declined *PaymentDeclinedError
		if errors.As(err, &declined) {
			q.session.lastDecline = declined.Reason
			q.logger.Info("split payment declined",
				"split_id", splitID.String(),
				"reason", declined.Reason,
			)
		}
		state := q.stateLocked()
		q.mu.Unlock()
		return nil, state, err
	}

	if _, err := q.splits.MarkPaid(splitID); err != nil {
		q.logger.Error("paid split missing from chip state", "error", err, "split_id", splitID.String())
	}

	q.mu.Lock()
	total := q.session.totals[splitID]
	q.session.amountPaid += total
	q.session.paid = append(q.session.paid, PaidSplit{SplitID: splitID, Total: total})
	q.session.lastDecline = ""
	q.session.idx++
	finished := q.session.idx >= len(q.session.queue)
	if finished {
		q.session.step = PayStepDone
	}
	state := q.stateLocked()
	q.mu.Unlock()

	q.publishSplitPaid(ctx, parentID, splitID, total, method)

	if !finished {
		// Intermediate receipts are suppressed so the cycle is not
		// interrupted between splits.
		return nil, state, nil
	}

	q.splits.DissolveIfSettled(ctx, parentID)
	return receipt, state, nil
}

// Cancel abandons the session. Splits already paid stay paid; the rest
// stay open for a later run.
func (q *PayAllQueue) Cancel() PayAllState {
	q.mu.Lock()
	defer q.mu.Unlock()

	state := q.stateLocked()
	q.session = nil
	return state
}

// State returns the current session view, or an inactive state when no
// session is open.
func (q *PayAllQueue) State() PayAllState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

func (q *PayAllQueue) stateLocked() PayAllState {
	if q.session == nil {
		return PayAllState{}
	}
	s := q.session
	state := PayAllState{
		Active:        true,
		Step:          s.step,
		ParentOrderID: s.parentID,
		Index:         s.idx,
		Method:        s.method,
		CombinedTotal: s.combined,
		AmountPaid:    s.amountPaid,
		LastDecline:   s.lastDecline,
	}
	state.Queue = make([]SplitID, len(s.queue))
	copy(state.Queue, s.queue)
	state.Paid = make([]PaidSplit, len(s.paid))
	copy(state.Paid, s.paid)
	return state
}

func (q *PayAllQueue) publishSplitPaid(ctx context.Context, parentID OrderID, splitID SplitID, total float64, method string) {
	if q.publisher == nil {
		return
	}
	chip := q.splits.chip(parentID, splitID)
	ev := event.SplitTicketEvent{
		EventType:     event.EventSplitPaid,
		OccurredAt:    time.Now().UTC(),
		ParentOrderID: parentID.String(),
		SplitID:       splitID.String(),
		DisplayNumber: chip.DisplayNumber,
		Total:         total,
		Method:        method,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		q.logger.Error("cannot marshal split event", "error", err, "split_id", splitID.String())
		return
	}
	if err := q.publisher.Publish(ctx, event.TerminalOrdersTopic, payload); err != nil {
		q.logger.Error("cannot publish split event", "error", err, "split_id", splitID.String())
	}
}
