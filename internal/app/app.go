package app

import (
	"context"
	"errors"
	"fmt"

	"meal-swiper/internal/config"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/order"
	"meal-swiper/internal/reminders"
	"meal-swiper/internal/selection"
	"meal-swiper/internal/session"

	"github.com/sirupsen/logrus"
)

// ErrUnknownProduct is returned when a suggested product id is not in the
// catalog.
var ErrUnknownProduct = errors.New("unknown product")

// App holds the state and dependencies of one client.
type App struct {
	cfg    *config.Config
	client mealapi.Client
	logger logrus.FieldLogger

	session    *session.Store
	feed       *feed.Controller
	selection  *selection.Accumulator
	groceries  *grocery.List
	catalog    *grocery.Catalog
	aggregator *grocery.Aggregator
	orders     *order.Finalizer
	notifier   *notify.Scheduler
}

// NewApp wires a client against the meal service. resolver may be nil, in
// which case cards keep whatever image the service sent.
func NewApp(cfg *config.Config, client mealapi.Client, sink notify.Sink, resolver feed.ImageResolver, logger logrus.FieldLogger) *App {
	a := &App{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		session:   session.NewStore(client),
		selection: selection.NewAccumulator(cfg.SelectionNudge),
		groceries: grocery.NewList(),
		catalog:   grocery.NewCatalog(nil),
		notifier:  notify.NewScheduler(sink, logger),
	}
	a.feed = feed.NewController(client, a.selection, logger, cfg.RefillThreshold)
	if resolver != nil && cfg.ResolveImages {
		a.feed.SetImageResolver(resolver)
	}
	a.aggregator = grocery.NewAggregator(client, logger)
	a.orders = order.NewFinalizer(order.Deps{
		History:   a.session,
		Selection: a.selection,
		List:      a.groceries,
		Lookup:    a.feed,
		Notifier:  a.notifier,
		Submitter: client,
		Logger:    logger,
	}, order.OptionsFromConfig(cfg))
	return a
}

func (a *App) Session() *session.Store { return a.session }
func (a *App) Feed() *feed.Controller { return a.feed }
func (a *App) Selection() *selection.Accumulator { return a.selection }
func (a *App) Groceries() *grocery.List { return a.groceries }
func (a *App) Catalog() *grocery.Catalog { return a.catalog }

// Launch loads the first batch. A fetch already in flight is not an error.
func (a *App) Launch(ctx context.Context) error {
	err := a.feed.FetchBatch(ctx)
	if errors.Is(err, feed.ErrFetchInFlight) {
		return nil
	}
	return err
}

// Swipe applies a swipe to the card with cardID.
func (a *App) Swipe(direction feed.Direction, cardID string) (feed.SwipeResult, error) {
	return a.feed.OnSwipeID(direction, cardID)
}

// Edit deletes the top card of the deck.
func (a *App) Edit() (feed.Card, bool) {
	return a.feed.DiscardTop()
}

// Unselect drops a meal from the selection.
func (a *App) Unselect(mealID string) int {
	return a.selection.Remove(mealID)
}

// Done builds the grocery list for the current selection. The server list
// is preferred; client-side counting is the fallback.
func (a *App) Done(ctx context.Context) ([]grocery.Line, grocery.Source, error) {
	meals := a.selection.Selected()
	if len(meals) == 0 {
		return nil, grocery.SourceNone, order.ErrEmptySelection
	}
	lines, source := a.aggregator.Build(ctx, meals, a.feed.Lookup())
	a.groceries.Set(lines, source)
	return lines, source, nil
}

// RemoveGrocery removes a line after confirmer agreed.
func (a *App) RemoveGrocery(ctx context.Context, name string, confirmer grocery.Confirmer) error {
	return a.groceries.Remove(ctx, name, confirmer)
}

// AddSuggested adds a catalog product to the grocery list.
func (a *App) AddSuggested(productID string) (grocery.Line, error) {
	p, ok := a.catalog.Find(productID)
	if !ok {
		return grocery.Line{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return a.groceries.AddSuggested(p), nil
}

// Confirm places the order for the current selection.
func (a *App) Confirm(ctx context.Context) (order.Order, error) {
	return a.orders.Confirm(ctx)
}

// Cancel marks a placed order as canceled.
func (a *App) Cancel(ctx context.Context, orderID string) error {
	return a.orders.Cancel(ctx, orderID)
}

// CheckReminders fetches restock reminders once and schedules them.
func (a *App) CheckReminders(ctx context.Context) (int, error) {
	return reminders.Check(ctx, a.client, a.notifier, a.cfg.RestockDelay)
}

// WatchReminders registers this client with a poller under key.
func (a *App) WatchReminders(p *reminders.Poller, key string) error {
	return p.Watch(key, a.client, a.notifier)
}

// Close waits for background work and drops pending notifications.
func (a *App) Close() {
	a.feed.Wait()
	a.orders.Wait()
	a.notifier.Stop()
}
