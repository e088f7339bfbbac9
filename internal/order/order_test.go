package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"meal-swiper/internal/config"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mocks ---

type mockHistory struct {
	orders []Order
}

func (m *mockHistory) AppendOrder(o Order) { m.orders = append(m.orders, o) }

func (m *mockHistory) CancelOrder(id string) error {
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Canceled = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

type mockNotifier struct {
	sent []notify.Notification
	err  error
}

func (m *mockNotifier) Schedule(n notify.Notification) error {
	m.sent = append(m.sent, n)
	return m.err
}

type mockSubmitter struct {
	mu        sync.Mutex
	submitted [][]string
	paths     []string
	canceled  []string
	checkouts [][]mealapi.CheckoutItem
	err       error
}

func (m *mockSubmitter) SubmitOrder(ctx context.Context, path string, links []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	m.submitted = append(m.submitted, links)
	return m.err
}

func (m *mockSubmitter) CancelOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, id)
	return m.err
}

func (m *mockSubmitter) Checkout(ctx context.Context, items []mealapi.CheckoutItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts = append(m.checkouts, items)
	return m.err
}

type fixture struct {
	history   *mockHistory
	selection *selection.Accumulator
	list      *grocery.List
	notifier  *mockNotifier
	submitter *mockSubmitter
	finalizer *Finalizer
}

func newFixture(opts Options) *fixture {
	fx := &fixture{
		history:   &mockHistory{},
		selection: selection.NewAccumulator(selection.DefaultNudgeAt),
		list:      grocery.NewList(),
		notifier:  &mockNotifier{},
		submitter: &mockSubmitter{},
	}
	fx.finalizer = NewFinalizer(Deps{
		History:   fx.history,
		Selection: fx.selection,
		List:      fx.list,
		Notifier:  fx.notifier,
		Submitter: fx.submitter,
		Logger:    logging.Discard(),
	}, opts)
	fx.finalizer.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return fx
}

var (
	mealA = selection.Meal{ID: "1-0", Name: "Risotto", Link: "https://a.test/risotto", Ingredients: []string{"rice", "salt"}}
	mealB = selection.Meal{ID: "1-1", Name: "Paella", Link: "https://a.test/paella", Ingredients: []string{"rice", "saffron"}}
)

// --- Tests ---

func TestConfirmEmptySelection(t *testing.T) {
	fx := newFixture(Options{})

	_, err := fx.finalizer.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, fx.history.orders)
	assert.Empty(t, fx.notifier.sent)
}

func TestConfirm(t *testing.T) {
	fx := newFixture(Options{})
	fx.selection.Select(mealA)
	fx.selection.Select(mealB)
	fx.list.Set([]grocery.Line{{Name: "Rice", Quantity: 1, Unit: "kg"}}, grocery.SourceServer)

	o, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1700000000000", o.ID)
	assert.Equal(t, time.UnixMilli(1700000000000).Add(48*time.Hour), o.DeliveryTime)
	assert.False(t, o.Canceled)
	assert.Len(t, o.Meals, 2)
	assert.Equal(t, []grocery.Line{{Name: "Rice", Quantity: 1, Unit: "kg"}}, o.Items)

	require.Len(t, fx.history.orders, 1)
	assert.Equal(t, 0, fx.selection.Len(), "selection is cleared")
	assert.Equal(t, 0, fx.list.Len(), "grocery list is cleared")

	require.Len(t, fx.notifier.sent, 1)
	assert.Equal(t, notify.KindOrderConfirmed, fx.notifier.sent[0].Kind)
	assert.Zero(t, fx.notifier.sent[0].Delay)

	fx.finalizer.Wait()
	assert.Empty(t, fx.submitter.submitted, "submit mode none calls nothing")
}

func TestConfirmWithoutListCountsClientSide(t *testing.T) {
	fx := newFixture(Options{})
	fx.selection.Select(mealA)
	fx.selection.Select(mealB)

	o, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []grocery.Line{
		{Name: "rice", Quantity: 2},
		{Name: "salt", Quantity: 1},
		{Name: "saffron", Quantity: 1},
	}, o.Items)
}

func TestConfirmNotificationFailureIsNotFatal(t *testing.T) {
	fx := newFixture(Options{})
	fx.notifier.err = errors.New("permission denied")
	fx.selection.Select(mealA)

	_, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)
	assert.Len(t, fx.history.orders, 1)
}

func TestConfirmIDsAreUnique(t *testing.T) {
	fx := newFixture(Options{})

	fx.selection.Select(mealA)
	first, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)
	fx.selection.Select(mealB)
	second, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestConfirmSubmitsLinks(t *testing.T) {
	fx := newFixture(Options{SubmitMode: config.OrderSubmitLinks, SubmitPath: "/groceries"})
	fx.selection.Select(mealA)
	fx.selection.Select(mealB)

	_, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)
	fx.finalizer.Wait()

	require.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, []string{"/groceries"}, fx.submitter.paths)
	assert.Equal(t, []string{mealA.Link, mealB.Link}, fx.submitter.submitted[0])
	require.Len(t, fx.submitter.checkouts, 1)
	assert.Equal(t, mealapi.CheckoutItem{Name: "rice"}, fx.submitter.checkouts[0][0])
}

func TestSubmitFailureIsSwallowed(t *testing.T) {
	fx := newFixture(Options{SubmitMode: config.OrderSubmitLinks, SubmitPath: "/groceries"})
	fx.submitter.err = errors.New("shop offline")
	fx.selection.Select(mealA)

	_, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)
	fx.finalizer.Wait()
	assert.Len(t, fx.history.orders, 1)
}

func TestCancel(t *testing.T) {
	fx := newFixture(Options{SubmitMode: config.OrderSubmitLinks, SubmitPath: "/groceries"})
	fx.selection.Select(mealA)
	o, err := fx.finalizer.Confirm(context.Background())
	require.NoError(t, err)

	require.NoError(t, fx.finalizer.Cancel(context.Background(), o.ID))
	fx.finalizer.Wait()

	got := fx.history.orders[0]
	assert.True(t, got.Canceled)
	assert.Equal(t, o.Meals, got.Meals, "cancel flips only the flag")
	assert.Equal(t, []string{o.ID}, fx.submitter.canceled)

	assert.ErrorIs(t, fx.finalizer.Cancel(context.Background(), "missing"), ErrOrderNotFound)
}
