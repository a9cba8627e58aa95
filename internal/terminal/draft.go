package terminal

import (
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// Draft order statuses.
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusSplit     = "split"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Draft item statuses.
const (
	ItemStatusActive = "active"
	ItemStatusVoided = "voided"
	ItemStatusComped = "comped"
)

// DraftItem is a line on the operator's working order. Its ID is generated
// locally and swapped in place for the server id once persisted; the item is
// replaced, never duplicated.
type DraftItem struct {
	ID            uuid.UUID  `json:"id"`
	MenuItemID    MenuItemID `json:"menu_item_id"`
	Name          string     `json:"name"`
	Price         float64    `json:"price"`
	Quantity      int        `json:"quantity"`
	Modifiers     []string   `json:"modifiers,omitempty"`
	SeatNumber    int        `json:"seat_number,omitempty"`
	SentToKitchen bool       `json:"sent_to_kitchen"`
	IsHeld        bool       `json:"is_held"`
	Persisted     bool       `json:"persisted"`
	Status        string     `json:"status"`
}

// DraftOrder is the operator's in-progress order. ID stays uuid.Nil until
// the persistence coordinator adopts a server id. Money fields are
// server-authoritative once synced; before that Subtotal/Total are computed
// locally for display.
type DraftOrder struct {
	ID            OrderID     `json:"id,omitempty"`
	Number        string      `json:"number,omitempty"`
	OrderType     string      `json:"order_type"`
	TableID       TableID     `json:"table_id,omitempty"`
	TabName       string      `json:"tab_name,omitempty"`
	GuestCount    int         `json:"guest_count"`
	Items         []DraftItem `json:"items"`
	Status        string      `json:"status"`
	Subtotal      float64     `json:"subtotal"`
	Tax           float64     `json:"tax"`
	DiscountTotal float64     `json:"discount_total"`
	TipTotal      float64     `json:"tip_total"`
	Total         float64     `json:"total"`
}

// Persisted reports whether the draft carries a server-assigned id.
func (d DraftOrder) Persisted() bool {
	return d.ID != uuid.Nil
}

// ActiveItems returns items that still count toward the order.
func (d DraftOrder) ActiveItems() []DraftItem {
	var items []DraftItem
	for _, it := range d.Items {
		if it.Status == ItemStatusActive {
			items = append(items, it)
		}
	}
	return items
}

// UnpersistedItems returns lines the order service has not seen yet. These
// are what create and append calls carry; voided and comped lines travel
// too so the server keeps the audit trail.
func (d DraftOrder) UnpersistedItems() []DraftItem {
	var items []DraftItem
	for _, it := range d.Items {
		if !it.Persisted {
			items = append(items, it)
		}
	}
	return items
}

// SendableItems returns active unsent items that are not on hold. These are
// the lines a kitchen ticket is built from.
func (d DraftOrder) SendableItems() []DraftItem {
	var items []DraftItem
	for _, it := range d.Items {
		if it.Status == ItemStatusActive && !it.SentToKitchen && !it.IsHeld {
			items = append(items, it)
		}
	}
	return items
}

// DraftStore owns the terminal session's working order. Every component
// reads and writes through its named methods; nothing mutates a DraftOrder
// snapshot in place. The generation counter identifies one logical draft:
// it advances on reset or context load, and the persistence coordinator
// keys its single-flight memo on it.
type DraftStore struct {
	mu  sync.RWMutex
	cur DraftOrder
	gen uint64
}

func NewDraftStore() *DraftStore {
	return &DraftStore{
		cur: DraftOrder{Status: StatusDraft},
		gen: 1,
	}
}

// Snapshot returns a deep copy of the working order. Background flows must
// capture one of these at launch and never re-read live state.
func (s *DraftStore) Snapshot() DraftOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDraft(s.cur)
}

// SnapshotWithGeneration returns the working order and its generation as
// one consistent read. The persistence coordinator needs both together so a
// reset cannot slip between them.
func (s *DraftStore) SnapshotWithGeneration() (DraftOrder, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDraft(s.cur), s.gen
}

// Generation identifies the current logical draft.
func (s *DraftStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// GenerationKey is the single-flight key for the current draft.
func (s *DraftStore) GenerationKey() string {
	return fmt.Sprintf("draft-%d", s.Generation())
}

// AddItem appends a line to the working order. A split parent with live
// chips refuses direct adds; the operator has to pick a chip first.
func (s *DraftStore) AddItem(item DraftItem) (DraftItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur.Status == StatusSplit {
		return DraftItem{}, ValidationError{
			Field:   "items",
			Reason:  ReasonSplitParentLocked,
			Message: "order is split into checks, select a split chip before adding items",
		}
	}

	if item.ID == uuid.Nil {
		item.ID = apt.GenerateNewID()
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.Status == "" {
		item.Status = ItemStatusActive
	}

	s.cur.Items = append(s.cur.Items, item)
	s.recalcLocked()
	return item, nil
}

// UpdateItemQuantity changes a line's quantity. Quantity must stay positive;
// voiding is a separate action.
func (s *DraftStore) UpdateItemQuantity(itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return ValidationError{Field: "quantity", Reason: ReasonInvalidQuantity, Message: "quantity must be at least 1"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.findItemLocked(itemID)
	if it == nil {
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	}
	it.Quantity = quantity
	s.recalcLocked()
	return nil
}

// VoidItem marks a line voided. The line stays on the order for audit but
// stops counting toward totals.
func (s *DraftStore) VoidItem(itemID uuid.UUID) error {
	return s.setItemStatus(itemID, ItemStatusVoided)
}

// CompItem marks a line comped: it still prints but costs nothing.
func (s *DraftStore) CompItem(itemID uuid.UUID) error {
	return s.setItemStatus(itemID, ItemStatusComped)
}

func (s *DraftStore) setItemStatus(itemID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.findItemLocked(itemID)
	if it == nil {
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	}
	it.Status = status
	s.recalcLocked()
	return nil
}

// HoldItem toggles the hold flag; held lines are skipped by kitchen sends
// until released.
func (s *DraftStore) HoldItem(itemID uuid.UUID, held bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.findItemLocked(itemID)
	if it == nil {
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	}
	it.IsHeld = held
	return nil
}

// AssignSeat tags a line with a seat number; 0 clears the assignment.
func (s *DraftStore) AssignSeat(itemID uuid.UUID, seat int) error {
	if seat < 0 {
		return ValidationError{Field: "seat_number", Reason: ReasonInvalidSeat, Message: "seat number cannot be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.findItemLocked(itemID)
	if it == nil {
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	}
	it.SeatNumber = seat
	return nil
}

func (s *DraftStore) SetOrderType(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.OrderType = code
}

func (s *DraftStore) SetTable(tableID TableID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.TableID = tableID
}

func (s *DraftStore) SetTabName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.TabName = name
}

func (s *DraftStore) SetGuestCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.GuestCount = n
}

// AdoptPersisted copies the server id, number and item ids into the draft,
// but only when gen still matches the live draft. A false return means the
// operator has already moved on and the persisted order is an orphan; the
// caller decides how to surface that.
func (s *DraftStore) AdoptPersisted(gen uint64, persisted *PersistedOrder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	if s.cur.ID != uuid.Nil && s.cur.ID != persisted.ID {
		return false
	}

	s.cur.ID = persisted.ID
	s.cur.Number = persisted.Number

	byRef := make(map[uuid.UUID]uuid.UUID, len(persisted.Items))
	serverIDs := make(map[uuid.UUID]bool, len(persisted.Items))
	for _, it := range persisted.Items {
		serverIDs[it.ID] = true
		if it.ClientRef != uuid.Nil {
			byRef[it.ClientRef] = it.ID
		}
	}
	for i := range s.cur.Items {
		if serverID, ok := byRef[s.cur.Items[i].ID]; ok {
			s.cur.Items[i].ID = serverID
			s.cur.Items[i].Persisted = true
		} else if serverIDs[s.cur.Items[i].ID] {
			s.cur.Items[i].Persisted = true
		}
	}

	s.applyTotalsLocked(persisted)
	return true
}

// AdoptShell records the server id and number for an empty shell create.
// Local items and totals stay untouched; the items follow in a later
// append.
func (s *DraftStore) AdoptShell(gen uint64, id OrderID, number string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	if s.cur.ID != uuid.Nil && s.cur.ID != id {
		return false
	}
	s.cur.ID = id
	s.cur.Number = number
	return true
}

// AdoptItemIDs swaps server ids into the draft after an append, matched by
// client ref. Replace in place, never duplicate.
func (s *DraftStore) AdoptItemIDs(gen uint64, items []PersistedItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	for _, pi := range items {
		if pi.ClientRef == uuid.Nil {
			continue
		}
		for i := range s.cur.Items {
			if s.cur.Items[i].ID == pi.ClientRef {
				s.cur.Items[i].ID = pi.ID
				s.cur.Items[i].Persisted = true
				break
			}
		}
	}
	return true
}

// ApplyServerTotals overwrites the money fields with the store's numbers.
func (s *DraftStore) ApplyServerTotals(subtotal, tax, discount, tip, total float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur.Subtotal = subtotal
	s.cur.Tax = tax
	s.cur.DiscountTotal = discount
	s.cur.TipTotal = tip
	s.cur.Total = total
	if s.cur.Status == StatusSplit {
		s.cur.Total = 0
	}
}

// MarkItemsSent flips the kitchen flag on the given lines.
func (s *DraftStore) MarkItemsSent(itemIDs []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		sent[id] = true
	}
	for i := range s.cur.Items {
		if sent[s.cur.Items[i].ID] {
			s.cur.Items[i].SentToKitchen = true
		}
	}
}

func (s *DraftStore) MarkSent() {
	s.setStatus(StatusSent)
}

func (s *DraftStore) MarkPaid() {
	s.setStatus(StatusPaid)
}

// MarkSplit moves the draft into split-parent mode: the parent's displayed
// total drops to zero, all value lives in the chips.
func (s *DraftStore) MarkSplit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Status = StatusSplit
	s.cur.Total = 0
}

func (s *DraftStore) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Status = status
}

// Reset clears the working order and advances the generation. In-flight
// creates keyed on the old generation will refuse to adopt into this one.
func (s *DraftStore) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = DraftOrder{Status: StatusDraft}
	s.gen++
	return s.gen
}

// LoadContext replaces the working order with another order, typically a
// split child the operator selected. The generation advances: this is a new
// logical draft.
func (s *DraftStore) LoadContext(order DraftOrder) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = cloneDraft(order)
	if s.cur.Status == "" {
		s.cur.Status = StatusDraft
	}
	s.gen++
	return s.gen
}

func (s *DraftStore) findItemLocked(itemID uuid.UUID) *DraftItem {
	for i := range s.cur.Items {
		if s.cur.Items[i].ID == itemID {
			return &s.cur.Items[i]
		}
	}
	return nil
}

// recalcLocked refreshes the locally computed money fields. Tax, discount
// and tip stay whatever the last server sync said; the split parent always
// reports zero.
func (s *DraftStore) recalcLocked() {
	var subtotal float64
	for _, it := range s.cur.Items {
		if it.Status != ItemStatusActive {
			continue
		}
		subtotal += it.Price * float64(it.Quantity)
	}
	s.cur.Subtotal = subtotal
	s.cur.Total = subtotal + s.cur.Tax - s.cur.DiscountTotal + s.cur.TipTotal
	if s.cur.Status == StatusSplit {
		s.cur.Total = 0
	}
}

func (s *DraftStore) applyTotalsLocked(persisted *PersistedOrder) {
	s.cur.Subtotal = persisted.Subtotal
	s.cur.Tax = persisted.Tax
	s.cur.DiscountTotal = persisted.DiscountTotal
	s.cur.TipTotal = persisted.TipTotal
	s.cur.Total = persisted.Total
	if s.cur.Status == StatusSplit {
		s.cur.Total = 0
	}
}

func cloneDraft(d DraftOrder) DraftOrder {
	out := d
	out.Items = make([]DraftItem, len(d.Items))
	copy(out.Items, d.Items)
	for i := range out.Items {
		if len(out.Items[i].Modifiers) > 0 {
			mods := make([]string, len(out.Items[i].Modifiers))
			copy(mods, out.Items[i].Modifiers)
			out.Items[i].Modifiers = mods
		}
	}
	return out
}

// draftFromPersisted converts a store order into a working draft, used when
// selecting a split child as the active context.
func draftFromPersisted(po *PersistedOrder) DraftOrder {
	d := DraftOrder{
		ID:            po.ID,
		Number:        po.Number,
		OrderType:     po.OrderType,
		TableID:       po.TableID,
		TabName:       po.TabName,
		GuestCount:    po.GuestCount,
		Status:        po.Status,
		Subtotal:      po.Subtotal,
		Tax:           po.Tax,
		DiscountTotal: po.DiscountTotal,
		TipTotal:      po.TipTotal,
		Total:         po.Total,
	}
	for _, pi := range po.Items {
		d.Items = append(d.Items, DraftItem{
			ID:            pi.ID,
			MenuItemID:    pi.MenuItemID,
			Name:          pi.Name,
			Price:         pi.Price,
			Quantity:      pi.Quantity,
			Modifiers:     pi.Modifiers,
			SeatNumber:    pi.SeatNumber,
			SentToKitchen: pi.SentToKitchen,
			Persisted:     true,
			Status:        pi.Status,
		})
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	return d
}
