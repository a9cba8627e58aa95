package terminal

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewDraftStore(t *testing.T) {
	store := NewDraftStore()

	snapshot := store.Snapshot()
	if snapshot.Status != StatusDraft {
		t.Errorf("Status = %q, want %q", snapshot.Status, StatusDraft)
	}
	if len(snapshot.Items) != 0 {
		t.Errorf("Items count = %d, want 0", len(snapshot.Items))
	}
	if snapshot.Persisted() {
		t.Error("fresh draft should not be persisted")
	}
	if store.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", store.Generation())
	}
}

func TestDraftStoreAddItem(t *testing.T) {
	store := NewDraftStore()

	item, err := store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.ID == uuid.Nil {
		t.Error("AddItem() should assign an id")
	}
	if item.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", item.Quantity)
	}
	if item.Status != ItemStatusActive {
		t.Errorf("Status = %q, want %q", item.Status, ItemStatusActive)
	}

	snapshot := store.Snapshot()
	if snapshot.Subtotal != 15.5 {
		t.Errorf("Subtotal = %v, want 15.5", snapshot.Subtotal)
	}
	if snapshot.Total != 15.5 {
		t.Errorf("Total = %v, want 15.5", snapshot.Total)
	}
}

func TestDraftStoreAddItemSplitParentRefused(t *testing.T) {
	store := NewDraftStore()
	store.MarkSplit()

	_, err := store.AddItem(DraftItem{Name: "Caesar Salad", Price: 11.0})
	if err == nil {
		t.Fatal("AddItem() on a split parent should fail")
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if ve.Reason != ReasonSplitParentLocked {
		t.Errorf("Reason = %q, want %q", ve.Reason, ReasonSplitParentLocked)
	}
}

func TestDraftStoreUpdateItemQuantity(t *testing.T) {
	tests := []struct {
		name       string
		quantity   int
		wantReason string
	}{
		{
			name:     "validQuantity",
			quantity: 3,
		},
		{
			name:       "zeroQuantity",
			quantity:   0,
			wantReason: ReasonInvalidQuantity,
		},
		{
			name:       "negativeQuantity",
			quantity:   -2,
			wantReason: ReasonInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewDraftStore()
			item, _ := store.AddItem(DraftItem{Name: "Craft Lager", Price: 7.5})

			err := store.UpdateItemQuantity(item.ID, tt.quantity)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("UpdateItemQuantity() error = %v", err)
				}
				snapshot := store.Snapshot()
				want := 7.5 * float64(tt.quantity)
				if snapshot.Subtotal != want {
					t.Errorf("Subtotal = %v, want %v", snapshot.Subtotal, want)
				}
				return
			}

			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error type = %T, want ValidationError", err)
			}
			if ve.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", ve.Reason, tt.wantReason)
			}
		})
	}
}

func TestDraftStoreUpdateItemQuantityUnknownItem(t *testing.T) {
	store := NewDraftStore()

	err := store.UpdateItemQuantity(uuid.New(), 2)
	if err == nil {
		t.Fatal("UpdateItemQuantity() on unknown item should fail")
	}
}

func TestDraftStoreVoidItem(t *testing.T) {
	store := NewDraftStore()
	burger, _ := store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	store.AddItem(DraftItem{Name: "Craft Lager", Price: 7.5})

	if err := store.VoidItem(burger.ID); err != nil {
		t.Fatalf("VoidItem() error = %v", err)
	}

	snapshot := store.Snapshot()
	if len(snapshot.Items) != 2 {
		t.Errorf("Items count = %d, want 2 (voided line stays for audit)", len(snapshot.Items))
	}
	if len(snapshot.ActiveItems()) != 1 {
		t.Errorf("ActiveItems count = %d, want 1", len(snapshot.ActiveItems()))
	}
	if snapshot.Subtotal != 7.5 {
		t.Errorf("Subtotal = %v, want 7.5", snapshot.Subtotal)
	}
}

func TestDraftStoreCompItem(t *testing.T) {
	store := NewDraftStore()
	tart, _ := store.AddItem(DraftItem{Name: "Lemon Tart", Price: 9.0})

	if err := store.CompItem(tart.ID); err != nil {
		t.Fatalf("CompItem() error = %v", err)
	}

	snapshot := store.Snapshot()
	if snapshot.Subtotal != 0 {
		t.Errorf("Subtotal = %v, want 0 after comp", snapshot.Subtotal)
	}
	if snapshot.Items[0].Status != ItemStatusComped {
		t.Errorf("item status = %q, want %q", snapshot.Items[0].Status, ItemStatusComped)
	}
}

func TestDraftStoreHoldItem(t *testing.T) {
	store := NewDraftStore()
	steak, _ := store.AddItem(DraftItem{Name: "Ribeye 12oz", Price: 34.0})

	if err := store.HoldItem(steak.ID, true); err != nil {
		t.Fatalf("HoldItem() error = %v", err)
	}
	if got := len(store.Snapshot().SendableItems()); got != 0 {
		t.Errorf("SendableItems count = %d, want 0 while held", got)
	}

	if err := store.HoldItem(steak.ID, false); err != nil {
		t.Fatalf("HoldItem() release error = %v", err)
	}
	if got := len(store.Snapshot().SendableItems()); got != 1 {
		t.Errorf("SendableItems count = %d, want 1 after release", got)
	}
}

func TestDraftStoreAssignSeat(t *testing.T) {
	store := NewDraftStore()
	item, _ := store.AddItem(DraftItem{Name: "Grilled Salmon", Price: 24.0})

	if err := store.AssignSeat(item.ID, 2); err != nil {
		t.Fatalf("AssignSeat() error = %v", err)
	}
	if got := store.Snapshot().Items[0].SeatNumber; got != 2 {
		t.Errorf("SeatNumber = %d, want 2", got)
	}

	err := store.AssignSeat(item.ID, -1)
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if ve.Reason != ReasonInvalidSeat {
		t.Errorf("Reason = %q, want %q", ve.Reason, ReasonInvalidSeat)
	}

	if err := store.AssignSeat(item.ID, 0); err != nil {
		t.Fatalf("AssignSeat(0) should clear, got error %v", err)
	}
	if got := store.Snapshot().Items[0].SeatNumber; got != 0 {
		t.Errorf("SeatNumber = %d, want 0 after clear", got)
	}
}

func TestDraftStoreResetAdvancesGeneration(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	gen := store.Generation()

	newGen := store.Reset()
	if newGen != gen+1 {
		t.Errorf("Reset() generation = %d, want %d", newGen, gen+1)
	}

	snapshot := store.Snapshot()
	if len(snapshot.Items) != 0 {
		t.Errorf("Items count = %d, want 0 after reset", len(snapshot.Items))
	}
	if snapshot.Status != StatusDraft {
		t.Errorf("Status = %q, want %q", snapshot.Status, StatusDraft)
	}
}

func TestDraftStoreAdoptPersisted(t *testing.T) {
	store := NewDraftStore()
	burger, _ := store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	lager, _ := store.AddItem(DraftItem{Name: "Craft Lager", Price: 7.5})

	snapshot, gen := store.SnapshotWithGeneration()
	if snapshot.Persisted() {
		t.Fatal("draft should not be persisted yet")
	}

	serverBurger := uuid.New()
	serverLager := uuid.New()
	persisted := &PersistedOrder{
		ID:     uuid.New(),
		Number: "T-101",
		Items: []PersistedItem{
			{ID: serverBurger, ClientRef: burger.ID, Name: "House Burger", Price: 15.5, Quantity: 1},
			{ID: serverLager, ClientRef: lager.ID, Name: "Craft Lager", Price: 7.5, Quantity: 1},
		},
		Subtotal: 23.0,
		Tax:      1.84,
		Total:    24.84,
	}

	if !store.AdoptPersisted(gen, persisted) {
		t.Fatal("AdoptPersisted() = false, want true")
	}

	got := store.Snapshot()
	if got.ID != persisted.ID {
		t.Errorf("ID = %v, want %v", got.ID, persisted.ID)
	}
	if got.Number != "T-101" {
		t.Errorf("Number = %q, want %q", got.Number, "T-101")
	}
	if len(got.Items) != 2 {
		t.Fatalf("Items count = %d, want 2 (replaced in place, not duplicated)", len(got.Items))
	}
	if got.Items[0].ID != serverBurger {
		t.Errorf("item id = %v, want server id %v", got.Items[0].ID, serverBurger)
	}
	if !got.Items[0].Persisted || !got.Items[1].Persisted {
		t.Error("adopted items should be marked persisted")
	}
	if got.Total != 24.84 {
		t.Errorf("Total = %v, want server total 24.84", got.Total)
	}
	if len(got.UnpersistedItems()) != 0 {
		t.Errorf("UnpersistedItems count = %d, want 0", len(got.UnpersistedItems()))
	}
}

func TestDraftStoreAdoptPersistedStaleGeneration(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	_, gen := store.SnapshotWithGeneration()

	store.Reset()

	adopted := store.AdoptPersisted(gen, &PersistedOrder{ID: uuid.New(), Number: "T-102"})
	if adopted {
		t.Error("AdoptPersisted() with stale generation should return false")
	}
	if store.Snapshot().Persisted() {
		t.Error("reset draft must not adopt the orphaned order id")
	}
}

func TestDraftStoreAdoptPersistedForeignOrder(t *testing.T) {
	store := NewDraftStore()
	_, gen := store.SnapshotWithGeneration()

	first := &PersistedOrder{ID: uuid.New(), Number: "T-103"}
	if !store.AdoptPersisted(gen, first) {
		t.Fatal("first adoption should succeed")
	}

	other := &PersistedOrder{ID: uuid.New(), Number: "T-104"}
	if store.AdoptPersisted(gen, other) {
		t.Error("AdoptPersisted() with a different order id should return false")
	}
	if got := store.Snapshot().ID; got != first.ID {
		t.Errorf("ID = %v, want %v", got, first.ID)
	}
}

func TestDraftStoreAdoptShell(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "Old Fashioned", Price: 13.0})
	_, gen := store.SnapshotWithGeneration()

	shellID := uuid.New()
	if !store.AdoptShell(gen, shellID, "T-110") {
		t.Fatal("AdoptShell() = false, want true")
	}

	got := store.Snapshot()
	if got.ID != shellID {
		t.Errorf("ID = %v, want %v", got.ID, shellID)
	}
	if got.Number != "T-110" {
		t.Errorf("Number = %q, want %q", got.Number, "T-110")
	}
	// A shell create carries no items, so the local lines stay unpersisted
	// and the local subtotal stands.
	if len(got.UnpersistedItems()) != 1 {
		t.Errorf("UnpersistedItems count = %d, want 1", len(got.UnpersistedItems()))
	}
	if got.Subtotal != 13.0 {
		t.Errorf("Subtotal = %v, want 13.0 (shell must not zero local totals)", got.Subtotal)
	}
}

func TestDraftStoreAdoptShellStaleGeneration(t *testing.T) {
	store := NewDraftStore()
	_, gen := store.SnapshotWithGeneration()
	store.Reset()

	if store.AdoptShell(gen, uuid.New(), "T-111") {
		t.Error("AdoptShell() with stale generation should return false")
	}
}

func TestDraftStoreAdoptItemIDs(t *testing.T) {
	store := NewDraftStore()
	item, _ := store.AddItem(DraftItem{Name: "Tiramisu", Price: 9.5})
	_, gen := store.SnapshotWithGeneration()

	serverID := uuid.New()
	ok := store.AdoptItemIDs(gen, []PersistedItem{{ID: serverID, ClientRef: item.ID}})
	if !ok {
		t.Fatal("AdoptItemIDs() = false, want true")
	}

	got := store.Snapshot()
	if got.Items[0].ID != serverID {
		t.Errorf("item id = %v, want server id %v", got.Items[0].ID, serverID)
	}
	if !got.Items[0].Persisted {
		t.Error("appended item should be marked persisted")
	}
	if len(got.Items) != 1 {
		t.Errorf("Items count = %d, want 1 (swap in place, never duplicate)", len(got.Items))
	}
}

func TestDraftStoreMarkSplitZerosTotal(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "Ribeye 12oz", Price: 34.0})

	store.MarkSplit()

	snapshot := store.Snapshot()
	if snapshot.Status != StatusSplit {
		t.Errorf("Status = %q, want %q", snapshot.Status, StatusSplit)
	}
	if snapshot.Total != 0 {
		t.Errorf("Total = %v, want 0 while chips exist", snapshot.Total)
	}

	// Server totals pushed during split keep the parent total at zero.
	store.ApplyServerTotals(34.0, 2.72, 0, 0, 36.72)
	if got := store.Snapshot().Total; got != 0 {
		t.Errorf("Total = %v, want 0 after server sync on split parent", got)
	}
}

func TestDraftStoreMarkItemsSent(t *testing.T) {
	store := NewDraftStore()
	soup, _ := store.AddItem(DraftItem{Name: "French Onion Soup", Price: 8.5})
	salad, _ := store.AddItem(DraftItem{Name: "Caesar Salad", Price: 11.0})

	store.MarkItemsSent([]uuid.UUID{soup.ID})

	snapshot := store.Snapshot()
	if !snapshot.Items[0].SentToKitchen {
		t.Error("first item should be marked sent")
	}
	if snapshot.Items[1].SentToKitchen {
		t.Error("second item should not be marked sent")
	}
	sendable := snapshot.SendableItems()
	if len(sendable) != 1 || sendable[0].ID != salad.ID {
		t.Errorf("SendableItems = %d items, want just the salad", len(sendable))
	}
}

func TestDraftStoreLoadContext(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	gen := store.Generation()

	child := draftFromPersisted(&PersistedOrder{
		ID:     uuid.New(),
		Number: "T-120-1",
		Status: StatusDraft,
		Items: []PersistedItem{
			{ID: uuid.New(), Name: "Espresso Martini", Price: 12.5, Quantity: 1, Status: ItemStatusActive},
		},
		Subtotal: 12.5,
		Total:    12.5,
	})

	newGen := store.LoadContext(child)
	if newGen != gen+1 {
		t.Errorf("LoadContext() generation = %d, want %d", newGen, gen+1)
	}

	got := store.Snapshot()
	if got.Number != "T-120-1" {
		t.Errorf("Number = %q, want %q", got.Number, "T-120-1")
	}
	if len(got.Items) != 1 || got.Items[0].Name != "Espresso Martini" {
		t.Errorf("Items = %+v, want the loaded child's line", got.Items)
	}
	if !got.Items[0].Persisted {
		t.Error("loaded items should be marked persisted")
	}
}

func TestDraftStoreUnpersistedItemsKeepVoided(t *testing.T) {
	store := NewDraftStore()
	burger, _ := store.AddItem(DraftItem{Name: "House Burger", Price: 15.5})
	store.AddItem(DraftItem{Name: "Craft Lager", Price: 7.5})
	store.VoidItem(burger.ID)

	// Voided lines still travel to the server for the audit trail.
	unpersisted := store.Snapshot().UnpersistedItems()
	if len(unpersisted) != 2 {
		t.Errorf("UnpersistedItems count = %d, want 2", len(unpersisted))
	}
}

func TestDraftStoreSnapshotIsDeepCopy(t *testing.T) {
	store := NewDraftStore()
	store.AddItem(DraftItem{Name: "House Burger", Price: 15.5, Modifiers: []string{"no onion"}})

	snapshot := store.Snapshot()
	snapshot.Items[0].Name = "changed"
	snapshot.Items[0].Modifiers[0] = "changed"

	got := store.Snapshot()
	if got.Items[0].Name != "House Burger" {
		t.Error("mutating a snapshot item leaked into the store")
	}
	if got.Items[0].Modifiers[0] != "no onion" {
		t.Error("mutating snapshot modifiers leaked into the store")
	}
}
