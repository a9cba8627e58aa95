package terminal

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

// OpenOrderEntry is one row on the open-orders screen. NeedsAttention marks
// orders that finished persisting after their draft was gone or whose
// background dispatch broke; the operator reconciles those by hand.
type OpenOrderEntry struct {
	OrderID         OrderID   `json:"order_id"`
	Number          string    `json:"number,omitempty"`
	OrderType       string    `json:"order_type,omitempty"`
	TabName         string    `json:"tab_name,omitempty"`
	Status          string    `json:"status"`
	Total           float64   `json:"total"`
	NeedsAttention  bool      `json:"needs_attention"`
	AttentionReason string    `json:"attention_reason,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OpenOrdersCache maintains the in-memory open-orders view from the
// terminal event log. It warms from stream replay with an HTTP fallback,
// then follows the stream live.
type OpenOrdersCache struct {
	mu      sync.RWMutex
	entries map[OrderID]*OpenOrderEntry

	stream events.StreamConsumer
	orders OrderStore
	logger apt.Logger
}

func NewOpenOrdersCache(stream events.StreamConsumer, orders OrderStore, logger apt.Logger) *OpenOrdersCache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OpenOrdersCache{
		entries: make(map[OrderID]*OpenOrderEntry),
		stream:  stream,
		orders:  orders,
		logger:  logger,
	}
}

// Warm loads open orders using event replay from the stream, falling back
// to the order service when the stream is unavailable.
func (c *OpenOrdersCache) Warm(ctx context.Context) error {
	if c.stream != nil {
		if err := c.warmFromStream(ctx); err != nil {
			c.logger.Info("stream replay failed, falling back to HTTP", "error", err)
		} else {
			return nil
		}
	}

	if c.orders == nil {
		c.logger.Info("neither stream nor order store configured, open-orders view stays empty")
		return nil
	}
	return c.warmFromHTTP(ctx)
}

// Start follows the stream live. New events mutate the cache as they
// arrive.
func (c *OpenOrdersCache) Start(ctx context.Context) error {
	if c.stream == nil {
		return nil
	}
	return c.stream.SubscribeStream(ctx, func(ctx context.Context, data []byte) error {
		c.Apply(data)
		return nil
	})
}

func (c *OpenOrdersCache) warmFromStream(ctx context.Context) error {
	messages, err := c.stream.Fetch(ctx, 10000)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range messages {
		c.applyLocked(msg.Data)
	}

	c.logger.Info("open-orders view warmed from stream",
		"events", len(messages),
		"orders", len(c.entries),
	)
	return nil
}

func (c *OpenOrdersCache) warmFromHTTP(ctx context.Context) error {
	orders, err := c.orders.ListOpenOrders(ctx)
	if err != nil {
		c.logger.Error("cannot warm open-orders view from HTTP", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, po := range orders {
		c.entries[po.ID] = &OpenOrderEntry{
			OrderID:   po.ID,
			Number:    po.Number,
			OrderType: po.OrderType,
			TabName:   po.TabName,
			Status:    po.Status,
			Total:     po.Total,
			UpdatedAt: time.Now().UTC(),
		}
	}

	c.logger.Info("open-orders view warmed from HTTP", "orders", len(orders))
	return nil
}

// Apply folds a single terminal event into the view.
func (c *OpenOrdersCache) Apply(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(data)
}

func (c *OpenOrdersCache) applyLocked(data []byte) {
	var base struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		c.logger.Error("cannot unmarshal event type", "error", err)
		return
	}

	switch base.EventType {
	case event.EventOrderPersisted, event.EventOrderSent, event.EventOrderOrphaned:
		c.applyOrderEventLocked(data)
	case event.EventOrderPaid:
		c.applyOrderPaidLocked(data)
	case event.EventSplitCreated:
		c.applySplitCreatedLocked(data)
	case event.EventTabStarted, event.EventTabDispatchFailed:
		c.applyTabEventLocked(data)
	default:
		// Unknown event types are ignored for forward compatibility.
	}
}

func (c *OpenOrdersCache) applyOrderEventLocked(data []byte) {
	var evt event.TerminalOrderEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal order event", "error", err)
		return
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		c.logger.Error("order event carries invalid id", "order_id", evt.OrderID)
		return
	}

	entry := c.entries[orderID]
	if entry == nil {
		entry = &OpenOrderEntry{OrderID: orderID}
		c.entries[orderID] = entry
	}
	if evt.Number != "" {
		entry.Number = evt.Number
	}
	if evt.OrderType != "" {
		entry.OrderType = evt.OrderType
	}
	if evt.TabName != "" {
		entry.TabName = evt.TabName
	}
	if evt.Status != "" {
		entry.Status = evt.Status
	}
	if evt.Total != 0 {
		entry.Total = evt.Total
	}
	if evt.EventType == event.EventOrderOrphaned {
		entry.NeedsAttention = true
		entry.AttentionReason = evt.Reason
	}
	entry.UpdatedAt = evt.OccurredAt
}

func (c *OpenOrdersCache) applyOrderPaidLocked(data []byte) {
	var evt event.TerminalOrderEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal order event", "error", err)
		return
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return
	}
	delete(c.entries, orderID)
}

func (c *OpenOrdersCache) applySplitCreatedLocked(data []byte) {
	var evt event.SplitTicketEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal split event", "error", err)
		return
	}

	parentID, err := uuid.Parse(evt.ParentOrderID)
	if err != nil {
		return
	}

	entry := c.entries[parentID]
	if entry == nil {
		entry = &OpenOrderEntry{OrderID: parentID}
		c.entries[parentID] = entry
	}
	entry.Status = StatusSplit
	entry.Total = 0
	entry.UpdatedAt = evt.OccurredAt
}

func (c *OpenOrdersCache) applyTabEventLocked(data []byte) {
	var evt event.TabFlowEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal tab event", "error", err)
		return
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return
	}

	entry := c.entries[orderID]
	if entry == nil {
		entry = &OpenOrderEntry{OrderID: orderID, Status: StatusDraft}
		c.entries[orderID] = entry
	}
	if evt.TabName != "" {
		entry.TabName = evt.TabName
	}
	if evt.EventType == event.EventTabDispatchFailed {
		entry.NeedsAttention = true
		entry.AttentionReason = "tab dispatch failed at " + evt.Step + ": " + evt.Reason
	}
	entry.UpdatedAt = evt.OccurredAt
}

// Get returns one entry by order id.
func (c *OpenOrdersCache) Get(orderID OrderID) (OpenOrderEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry := c.entries[orderID]; entry != nil {
		return *entry, true
	}
	return OpenOrderEntry{}, false
}

// List returns every open order, most recently touched first.
func (c *OpenOrdersCache) List() []OpenOrderEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]OpenOrderEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// Attention returns the orders an operator has to reconcile by hand.
func (c *OpenOrdersCache) Attention() []OpenOrderEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []OpenOrderEntry
	for _, entry := range c.entries {
		if entry.NeedsAttention {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Resolve clears the attention flag once the operator has dealt with an
// order.
func (c *OpenOrdersCache) Resolve(orderID OrderID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[orderID]
	if entry == nil {
		return false
	}
	entry.NeedsAttention = false
	entry.AttentionReason = ""
	entry.UpdatedAt = time.Now().UTC()
	return true
}
