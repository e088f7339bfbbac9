// Package order turns the current selection into a confirmed order.
package order

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"meal-swiper/internal/config"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/selection"

	"github.com/sirupsen/logrus"
)

const DefaultDeliveryOffset = 48 * time.Hour

var (
	ErrEmptySelection = errors.New("no meals selected")
	ErrOrderNotFound  = errors.New("order not found")
)

// Order is a confirmed batch of meals. Only Canceled changes after creation.
type Order struct {
	ID           string
	CreatedAt    time.Time
	Meals        []selection.Meal
	Items        []grocery.Line
	DeliveryTime time.Time
	Canceled     bool
}

// Links returns the recipe links of the ordered meals.
func (o Order) Links() []string {
	links := make([]string, 0, len(o.Meals))
	for _, m := range o.Meals {
		if m.Link != "" {
			links = append(links, m.Link)
		}
	}
	return links
}

// History stores placed orders.
type History interface {
	AppendOrder(o Order)
	CancelOrder(id string) error
}

// Selection is the part of the selection accumulator the finalizer needs.
type Selection interface {
	Selected() []selection.Meal
	Clear()
}

// GroceryList is the aggregated list being confirmed.
type GroceryList interface {
	Lines() []grocery.Line
	Reset()
}

// IngredientLookup maps card ids to ingredients.
type IngredientLookup interface {
	Lookup() map[string][]string
}

// Notifier schedules local notifications.
type Notifier interface {
	Schedule(n notify.Notification) error
}

// Submitter forwards orders to the remote shop.
type Submitter interface {
	SubmitOrder(ctx context.Context, path string, links []string) error
	CancelOrder(ctx context.Context, orderID string) error
	Checkout(ctx context.Context, items []mealapi.CheckoutItem) error
}

// Deps are the collaborators of a Finalizer. Lookup and Submitter may be nil.
type Deps struct {
	History   History
	Selection Selection
	List      GroceryList
	Lookup    IngredientLookup
	Notifier  Notifier
	Submitter Submitter
	Logger    logrus.FieldLogger
}

// Options control delivery time and server submission.
type Options struct {
	DeliveryOffset time.Duration
	SubmitMode     string
	SubmitPath     string
}

// OptionsFromConfig reads the order settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DeliveryOffset: cfg.DeliveryOffset,
		SubmitMode:     cfg.OrderSubmitMode,
		SubmitPath:     cfg.OrderSubmitPath,
	}
}

// Finalizer confirms and cancels orders.
type Finalizer struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu     sync.Mutex
	lastID int64
	wg     sync.WaitGroup
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(deps Deps, opts Options) *Finalizer {
	if opts.DeliveryOffset <= 0 {
		opts.DeliveryOffset = DefaultDeliveryOffset
	}
	if opts.SubmitMode == "" {
		opts.SubmitMode = config.OrderSubmitNone
	}
	deps.Logger = deps.Logger.WithField("component", "order")
	return &Finalizer{deps: deps, opts: opts, now: time.Now}
}

// Confirm places an order for the current selection. The selection and the
// grocery list are cleared and a confirmation notification is scheduled.
// There is no undo.
func (f *Finalizer) Confirm(ctx context.Context) (Order, error) {
	meals := f.deps.Selection.Selected()
	if len(meals) == 0 {
		return Order{}, ErrEmptySelection
	}

	items := f.deps.List.Lines()
	if len(items) == 0 {
		var lookup map[string][]string
		if f.deps.Lookup != nil {
			lookup = f.deps.Lookup.Lookup()
		}
		items = grocery.CountLines(meals, lookup)
	}

	now := f.now()
	o := Order{
		ID:           f.nextID(now),
		CreatedAt:    now,
		Meals:        meals,
		Items:        items,
		DeliveryTime: now.Add(f.opts.DeliveryOffset),
	}

	f.deps.History.AppendOrder(o)
	f.deps.Selection.Clear()
	f.deps.List.Reset()

	if err := f.deps.Notifier.Schedule(notify.OrderConfirmed(o.ID, len(o.Meals), o.DeliveryTime)); err != nil {
		logging.Error(f.deps.Logger, "order confirmation notification not scheduled", err, logrus.Fields{"order_id": o.ID})
	}
	if f.submitting() {
		f.detach("submit order", o.ID, func(ctx context.Context) error {
			if err := f.deps.Submitter.SubmitOrder(ctx, f.opts.SubmitPath, o.Links()); err != nil {
				return err
			}
			return f.deps.Submitter.Checkout(ctx, checkoutItems(o.Items))
		})
	}

	f.deps.Logger.WithFields(logrus.Fields{"order_id": o.ID, "meals": len(o.Meals), "items": len(o.Items)}).Info("order confirmed")
	return o, nil
}

// Cancel marks an order as canceled. The order stays in the history.
func (f *Finalizer) Cancel(ctx context.Context, orderID string) error {
	if err := f.deps.History.CancelOrder(orderID); err != nil {
		return err
	}
	if f.submitting() {
		f.detach("cancel order", orderID, func(ctx context.Context) error {
			return f.deps.Submitter.CancelOrder(ctx, orderID)
		})
	}
	f.deps.Logger.WithField("order_id", orderID).Info("order canceled")
	return nil
}

// Wait blocks until detached submissions have finished.
func (f *Finalizer) Wait() {
	f.wg.Wait()
}

func (f *Finalizer) submitting() bool {
	return f.opts.SubmitMode == config.OrderSubmitLinks && f.deps.Submitter != nil
}

// detach runs fn in the background. Failures are only logged.
func (f *Finalizer) detach(what, orderID string, fn func(ctx context.Context) error) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := fn(context.Background()); err != nil {
			logging.Error(f.deps.Logger, what+" failed", err, logrus.Fields{"order_id": orderID})
		}
	}()
}

// nextID returns the unix-millis id, bumped when two orders land in the
// same millisecond.
func (f *Finalizer) nextID(now time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := now.UnixMilli()
	if id <= f.lastID {
		id = f.lastID + 1
	}
	f.lastID = id
	return strconv.FormatInt(id, 10)
}

func checkoutItems(lines []grocery.Line) []mealapi.CheckoutItem {
	items := make([]mealapi.CheckoutItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, mealapi.CheckoutItem{Name: l.Name})
	}
	return items
}
