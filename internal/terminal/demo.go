package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/jaswdr/faker"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/enums/ordertype"
)

var fake = faker.New()

const (
	DemoScenarioDineIn = "dine_in"
	DemoScenarioBarTab = "bar_tab"
)

type demoDish struct {
	name      string
	price     float64
	modifiers []string
}

var demoDishes = []demoDish{
	{"French Onion Soup", 8.5, nil},
	{"Caesar Salad", 11.0, []string{"no anchovy"}},
	{"Ribeye 12oz", 34.0, []string{"medium rare"}},
	{"Grilled Salmon", 24.0, nil},
	{"Mushroom Risotto", 19.5, []string{"extra parmesan"}},
	{"House Burger", 15.5, []string{"no onion", "add bacon"}},
	{"Lemon Tart", 9.0, nil},
}

var demoDrinks = []demoDish{
	{"Craft Lager", 7.5, nil},
	{"West Coast IPA", 8.5, nil},
	{"Pinot Noir Glass", 12.0, nil},
	{"Old Fashioned", 13.0, []string{"extra orange peel"}},
	{"Espresso Martini", 12.5, nil},
}

// ApplyDemoSeed stages a working order in the draft so a fresh install has
// something on screen. The draft is left untouched when it is already in use.
func ApplyDemoSeed(ctx context.Context, store *DraftStore, scenario string, logger apt.Logger) error {
	if store == nil {
		return errors.New("draft store is required for demo seeding")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := store.Snapshot()
	if snapshot.Persisted() || len(snapshot.Items) > 0 {
		logger.Info("Draft already in use, skipping demo seed")
		return nil
	}

	switch scenario {
	case DemoScenarioBarTab:
		return seedBarTabDraft(store, logger)
	case DemoScenarioDineIn, "":
		return seedDineInDraft(store, logger)
	default:
		return fmt.Errorf("unknown demo scenario %q", scenario)
	}
}

// seedDineInDraft stages a seated party with one or two dishes per guest.
func seedDineInDraft(store *DraftStore, logger apt.Logger) error {
	guests := fake.IntBetween(2, 4)

	store.SetOrderType(ordertype.Types.DineIn.Code())
	store.SetTable(apt.GenerateNewID())
	store.SetGuestCount(guests)

	seeded := 0
	for seat := 1; seat <= guests; seat++ {
		count := fake.IntBetween(1, 2)
		for n := 0; n < count; n++ {
			dish := demoDishes[fake.IntBetween(0, len(demoDishes)-1)]
			if _, err := store.AddItem(DraftItem{
				MenuItemID: apt.GenerateNewID(),
				Name:       dish.name,
				Price:      dish.price,
				Quantity:   1,
				Modifiers:  dish.modifiers,
				SeatNumber: seat,
			}); err != nil {
				return fmt.Errorf("seed item %s: %w", dish.name, err)
			}
			seeded++
		}
	}

	logger.Info("Demo dine-in draft seeded", "guests", guests, "items", seeded)
	return nil
}

// seedBarTabDraft stages a named walk-in tab with a round of drinks.
func seedBarTabDraft(store *DraftStore, logger apt.Logger) error {
	store.SetOrderType(ordertype.Types.BarTab.Code())
	store.SetTabName(fake.Person().Name())

	rounds := fake.IntBetween(2, 3)
	for n := 0; n < rounds; n++ {
		drink := demoDrinks[fake.IntBetween(0, len(demoDrinks)-1)]
		if _, err := store.AddItem(DraftItem{
			MenuItemID: apt.GenerateNewID(),
			Name:       drink.name,
			Price:      drink.price,
			Quantity:   1,
			Modifiers:  drink.modifiers,
		}); err != nil {
			return fmt.Errorf("seed item %s: %w", drink.name, err)
		}
	}

	logger.Info("Demo bar tab draft seeded", "drinks", rounds)
	return nil
}

// DemoSeedingFunc returns an apt lifecycle OnStart-compatible function for demo seeding.
func DemoSeedingFunc(seedCtx context.Context, store *DraftStore, scenario string, logger apt.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo draft seeding in background")
		go func() {
			if err := ApplyDemoSeed(seedCtx, store, scenario, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("❌ Demo draft seed failed: %v", err)
			} else if err == nil {
				logger.Info("✓ Demo draft seeding completed successfully")
			}
		}()
		return nil
	}
}
