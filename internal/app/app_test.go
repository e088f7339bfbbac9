package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"meal-swiper/internal/config"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mocks ---

type mockClient struct {
	mu         sync.Mutex
	batches    int
	groceryErr error
	items      []mealapi.GroceryItem
	reminders  []mealapi.Reminder
}

func (m *mockClient) FetchMealBatch(ctx context.Context) (mealapi.Batch, error) {
	m.mu.Lock()
	m.batches++
	page := m.batches
	m.mu.Unlock()

	var b mealapi.Batch
	for i := 0; i < 5; i++ {
		b.Ideas = append(b.Ideas, mealapi.Idea{Title: fmt.Sprintf("Meal %d.%d", page, i)})
		b.Links = append(b.Links, mealapi.Link{
			URL:         fmt.Sprintf("https://recipes.test/%d/%d", page, i),
			Ingredients: []string{"Salt", "Rice"},
		})
	}
	return b, nil
}

func (m *mockClient) FetchReminders(ctx context.Context) ([]mealapi.Reminder, error) {
	return m.reminders, nil
}

func (m *mockClient) FetchGroceryItems(ctx context.Context, links []string) ([]mealapi.GroceryItem, error) {
	return m.items, m.groceryErr
}

func (m *mockClient) Onboard(ctx context.Context, p mealapi.Profile) (string, error) {
	return p.Name, nil
}

func (m *mockClient) Checkout(ctx context.Context, items []mealapi.CheckoutItem) error { return nil }

func (m *mockClient) SubmitOrder(ctx context.Context, path string, links []string) error {
	return nil
}

func (m *mockClient) CancelOrder(ctx context.Context, orderID string) error { return nil }

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingSink) Deliver(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSink) Kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []notify.Kind
	for _, n := range r.got {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func testConfig() *config.Config {
	return &config.Config{
		MealAPIURL:      "http://meal.test",
		RefillThreshold: 0,
		SelectionNudge:  7,
		DeliveryOffset:  48 * time.Hour,
		OrderSubmitMode: config.OrderSubmitNone,
	}
}

// --- Tests ---

func TestSwipeToOrder(t *testing.T) {
	client := &mockClient{groceryErr: errors.New("not deployed")}
	sink := &recordingSink{}
	a := NewApp(testConfig(), client, sink, nil, logging.Discard())
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Launch(ctx))

	_, _, err := a.Done(ctx)
	assert.ErrorIs(t, err, order.ErrEmptySelection, "done requires a selection")

	cards := a.Feed().Cards()
	require.Len(t, cards, 5)
	_, err = a.Swipe(feed.Right, cards[0].ID)
	require.NoError(t, err)
	_, err = a.Swipe(feed.Right, cards[1].ID)
	require.NoError(t, err)

	lines, source, err := a.Done(ctx)
	require.NoError(t, err)
	assert.Equal(t, grocery.SourceClient, source)
	assert.Equal(t, "2x Salt", lines[0].String())

	o, err := a.Confirm(ctx)
	require.NoError(t, err)
	assert.Len(t, o.Meals, 2)
	assert.Zero(t, a.Selection().Len())
	assert.Zero(t, a.Groceries().Len())

	require.NoError(t, a.Cancel(ctx, o.ID))
	got, ok := a.Session().Order(o.ID)
	require.True(t, ok)
	assert.True(t, got.Canceled)

	assert.Eventually(t, func() bool {
		return len(sink.Kinds()) == 1 && sink.Kinds()[0] == notify.KindOrderConfirmed
	}, time.Second, 10*time.Millisecond)
}

func TestDonePrefersServerList(t *testing.T) {
	client := &mockClient{items: []mealapi.GroceryItem{{Name: "Rice", Quantity: 500, Unit: "g"}}}
	a := NewApp(testConfig(), client, &recordingSink{}, nil, logging.Discard())
	defer a.Close()

	require.NoError(t, a.Launch(context.Background()))
	_, top, ok := a.Feed().Top()
	require.True(t, ok)
	_, err := a.Swipe(feed.Right, top.ID)
	require.NoError(t, err)

	lines, source, err := a.Done(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grocery.SourceServer, source)
	assert.Equal(t, "Rice (500 g)", lines[0].String())
}

func TestAddSuggested(t *testing.T) {
	a := NewApp(testConfig(), &mockClient{}, &recordingSink{}, nil, logging.Discard())
	defer a.Close()

	line, err := a.AddSuggested("p2")
	require.NoError(t, err)
	assert.Equal(t, "Milk", line.Name)
	assert.Equal(t, 1, a.Groceries().Len())

	_, err = a.AddSuggested("nope")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestEditAndUnselect(t *testing.T) {
	a := NewApp(testConfig(), &mockClient{}, &recordingSink{}, nil, logging.Discard())
	defer a.Close()
	require.NoError(t, a.Launch(context.Background()))

	card, ok := a.Edit()
	require.True(t, ok)
	_, ok = a.Feed().Ingredients(card.ID)
	assert.False(t, ok)

	_, top, _ := a.Feed().Top()
	assert.NotEqual(t, card.ID, top.ID)
	_, err := a.Swipe(feed.Right, top.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Unselect(top.ID))
	assert.Zero(t, a.Selection().Len())
}

func TestCheckReminders(t *testing.T) {
	client := &mockClient{reminders: []mealapi.Reminder{{ItemName: "Milk", LastPurchasedDaysAgo: 9}}}
	sink := &recordingSink{}
	a := NewApp(testConfig(), client, sink, nil, logging.Discard())

	n, err := a.CheckReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Eventually(t, func() bool { return len(sink.Kinds()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, notify.KindRestock, sink.Kinds()[0])
	a.Close()
}

func TestRegistry(t *testing.T) {
	created := 0
	r := NewRegistry(func(userID int64) *App {
		created++
		return NewApp(testConfig(), &mockClient{}, &recordingSink{}, nil, logging.Discard())
	}, nil, logging.Discard())

	a1, fresh := r.Get(1)
	assert.True(t, fresh)
	again, fresh := r.Get(1)
	assert.False(t, fresh)
	assert.Same(t, a1, again)

	_, _ = r.Get(2)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, created)

	r.Close()
	assert.Zero(t, r.Len())
}
