package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/selection"

	"github.com/sirupsen/logrus"
)

// DefaultRefillThreshold is the remaining-card count below which the next
// batch is prefetched.
const DefaultRefillThreshold = 3

var (
	ErrFetchInFlight    = errors.New("meal batch fetch already in flight")
	ErrUnknownDirection = errors.New("unknown swipe direction")
	ErrCardNotFound     = errors.New("card not in deck")
)

// Direction is the way a card was swiped.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Up    Direction = "up"
)

// ParseDirection accepts the direction names and their first letters.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	case "up", "u":
		return Up, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Card is a recipe in the deck. Cards are never mutated once appended.
type Card struct {
	ID          string
	Name        string
	Image       string
	Ingredients []string
	Link        string
	Source      string
}

// Meal snapshots the card for the selection.
func (c Card) Meal() selection.Meal {
	return selection.Meal{
		ID:          c.ID,
		Name:        c.Name,
		Image:       c.Image,
		Link:        c.Link,
		Source:      c.Source,
		Ingredients: append([]string(nil), c.Ingredients...),
	}
}

// BatchSource fetches pages of recipe ideas.
type BatchSource interface {
	FetchMealBatch(ctx context.Context) (mealapi.Batch, error)
}

// Selector receives right and up swipes.
type Selector interface {
	Select(meal selection.Meal) bool
	Like(meal selection.Meal) bool
}

// ImageResolver finds a picture for a recipe link.
type ImageResolver interface {
	ResolveImage(ctx context.Context, link string) (string, error)
}

// State is what a screen needs to render loading and retry affordances.
type State struct {
	Loading    bool
	LastError  error
	NeedsRetry bool
	DeckSize   int
	Remaining  int
}

// SwipeResult describes the side effects of a swipe.
type SwipeResult struct {
	Card      Card
	Direction Direction
	// Nudge is set when this right swipe filled the week.
	Nudge bool
	// Liked is false for an up swipe on an already liked meal.
	Liked  bool
	Refill bool
}

// Controller owns the deck and keeps it topped up.
type Controller struct {
	source    BatchSource
	selector  Selector
	resolver  ImageResolver
	logger    logrus.FieldLogger
	threshold int
	now       func() time.Time

	inFlight atomic.Bool
	wg       sync.WaitGroup
	// lastStamp is only touched while inFlight is held.
	lastStamp int64

	// Card indices are absolute: deck[0] has index base, and cursor is the
	// index of the top card. Compaction moves base, never renumbers.
	mu      sync.Mutex
	deck    []Card
	base    int
	cursor  int
	lookup  map[string][]string
	lastErr error
}

// NewController creates a Controller. threshold is the refill threshold;
// a negative value falls back to DefaultRefillThreshold.
func NewController(source BatchSource, selector Selector, logger logrus.FieldLogger, threshold int) *Controller {
	if threshold < 0 {
		threshold = DefaultRefillThreshold
	}
	return &Controller{
		source:    source,
		selector:  selector,
		logger:    logger.WithField("component", "feed"),
		threshold: threshold,
		now:       time.Now,
		lookup:    make(map[string][]string),
	}
}

// SetImageResolver makes batch fetches fill in missing card images.
func (c *Controller) SetImageResolver(r ImageResolver) {
	c.resolver = r
}

// FetchBatch requests the next page and appends it to the deck. A call made
// while another is outstanding returns ErrFetchInFlight without touching the
// deck. On failure the deck is left as it was and the error is kept for the
// retry affordance; nothing is retried automatically.
func (c *Controller) FetchBatch(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrFetchInFlight
	}
	defer c.inFlight.Store(false)

	batch, err := c.source.FetchMealBatch(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.logger.WithError(err).Warn("meal batch fetch failed")
		return fmt.Errorf("fetch meal batch: %w", err)
	}

	cards := c.buildCards(ctx, batch)

	c.mu.Lock()
	c.compactLocked()
	c.deck = append(c.deck, cards...)
	for _, card := range cards {
		c.lookup[card.ID] = card.Ingredients
	}
	c.lastErr = nil
	size := len(c.deck)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"added": len(cards), "deck": size}).Debug("meal batch appended")
	return nil
}

// buildCards pairs ideas with links. Ids are unique within the session only;
// the same recipe on a later page gets a new id.
func (c *Controller) buildCards(ctx context.Context, batch mealapi.Batch) []Card {
	stamp := c.now().UnixMilli()
	if stamp <= c.lastStamp {
		stamp = c.lastStamp + 1
	}
	c.lastStamp = stamp

	n := len(batch.Ideas)
	if len(batch.Links) < n {
		n = len(batch.Links)
	}

	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		idea, link := batch.Ideas[i], batch.Links[i]
		name := idea.Title
		if name == "" {
			name = link.Title
		}
		card := Card{
			ID:          fmt.Sprintf("%d-%d", stamp, i),
			Name:        name,
			Image:       link.Image,
			Ingredients: append([]string(nil), link.Ingredients...),
			Link:        link.URL,
			Source:      link.Source,
		}
		if card.Image == "" && card.Link != "" && c.resolver != nil {
			img, err := c.resolver.ResolveImage(ctx, card.Link)
			if err != nil {
				c.logger.WithError(err).WithField("link", card.Link).Debug("card image not resolved")
			} else {
				card.Image = img
			}
		}
		cards = append(cards, card)
	}
	return cards
}

// OnSwipe handles a swipe of the card at cardIndex. Right selects, up likes,
// left discards. If fewer than the refill threshold cards remain after it, a
// refill is started in the background and not waited for. Indices stay valid
// across refills; swiped cards can no longer be addressed.
func (c *Controller) OnSwipe(direction Direction, cardIndex int) (SwipeResult, error) {
	return c.swipe(direction, func() (int, error) {
		if cardIndex < c.cursor || cardIndex >= c.base+len(c.deck) {
			return 0, fmt.Errorf("%w: index %d", ErrCardNotFound, cardIndex)
		}
		return cardIndex, nil
	})
}

// OnSwipeID swipes the card with the given id.
func (c *Controller) OnSwipeID(direction Direction, id string) (SwipeResult, error) {
	return c.swipe(direction, func() (int, error) {
		for i := c.cursor - c.base; i < len(c.deck); i++ {
			if c.deck[i].ID == id {
				return c.base + i, nil
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	})
}

// swipe resolves the card index under the lock and applies the swipe.
func (c *Controller) swipe(direction Direction, locate func() (int, error)) (SwipeResult, error) {
	switch direction {
	case Left, Right, Up:
	default:
		return SwipeResult{}, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	c.mu.Lock()
	idx, err := locate()
	if err != nil {
		c.mu.Unlock()
		return SwipeResult{}, err
	}
	card := c.deck[idx-c.base]
	c.cursor = idx + 1
	remaining := c.base + len(c.deck) - c.cursor
	c.mu.Unlock()

	res := SwipeResult{Card: card, Direction: direction}
	switch direction {
	case Right:
		res.Nudge = c.selector.Select(card.Meal())
	case Up:
		res.Liked = c.selector.Like(card.Meal())
	}

	if remaining < c.threshold {
		res.Refill = c.refill()
	}
	return res, nil
}

// DiscardTop drops the top card without swiping it. Its index is consumed
// like a swiped card's so later indices do not move.
func (c *Controller) DiscardTop() (Card, bool) {
	c.mu.Lock()
	if c.cursor >= c.base+len(c.deck) {
		c.mu.Unlock()
		return Card{}, false
	}
	card := c.deck[c.cursor-c.base]
	delete(c.lookup, card.ID)
	c.cursor++
	remaining := c.base + len(c.deck) - c.cursor
	c.mu.Unlock()

	if remaining < c.threshold {
		c.refill()
	}
	return card, true
}

// refill starts a detached fetch unless one is already running.
func (c *Controller) refill() bool {
	if c.inFlight.Load() {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.FetchBatch(context.Background()); err != nil && !errors.Is(err, ErrFetchInFlight) {
			c.logger.WithError(err).Info("background refill failed, waiting for manual retry")
		}
	}()
	return true
}

// compactLocked evicts cards that were already swiped.
func (c *Controller) compactLocked() {
	n := c.cursor - c.base
	if n == 0 {
		return
	}
	for _, card := range c.deck[:n] {
		delete(c.lookup, card.ID)
	}
	c.deck = append([]Card(nil), c.deck[n:]...)
	c.base = c.cursor
}

// Wait blocks until background refills have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Top returns the card currently on top of the deck and its index.
func (c *Controller) Top() (int, Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor >= c.base+len(c.deck) {
		return -1, Card{}, false
	}
	return c.cursor, c.deck[c.cursor-c.base], true
}

// IndexOf returns the index of the card with id, or -1 once it was evicted.
func (c *Controller) IndexOf(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, card := range c.deck {
		if card.ID == id {
			return c.base + i
		}
	}
	return -1
}

// Base is the index of the first card Cards returns.
func (c *Controller) Base() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// Cards returns the retained deck starting at Base, swiped cards included
// until they are compacted.
func (c *Controller) Cards() []Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Card(nil), c.deck...)
}

// Ingredients returns the ingredient list recorded for a card id.
func (c *Controller) Ingredients(id string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ing, ok := c.lookup[id]
	return append([]string(nil), ing...), ok
}

// Lookup returns a copy of the card id to ingredients map.
func (c *Controller) Lookup() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.lookup))
	for id, ing := range c.lookup {
		out[id] = append([]string(nil), ing...)
	}
	return out
}

// State reports loading and retry status.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Loading:    c.inFlight.Load(),
		LastError:  c.lastErr,
		NeedsRetry: c.lastErr != nil,
		DeckSize:   len(c.deck),
		Remaining:  c.base + len(c.deck) - c.cursor,
	}
}
