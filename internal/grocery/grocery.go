// Package grocery turns selected meals into an editable shopping list.
//
// Two producers exist and they do not agree on shape: the client counts how
// many selected meals use an ingredient, the service returns purchasable
// quantities with units. The service is preferred; counting is the fallback.
package grocery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/selection"

	"github.com/sirupsen/logrus"
)

var (
	ErrLineNotFound        = errors.New("ingredient not on the list")
	ErrRemovalNotConfirmed = errors.New("removal not confirmed")
)

// Source records which path produced a list.
type Source int

const (
	SourceNone Source = iota
	SourceClient
	SourceServer
)

func (s Source) String() string {
	switch s {
	case SourceClient:
		return "client"
	case SourceServer:
		return "server"
	}
	return "none"
}

// Line is one ingredient on the shopping list. Client lines carry an
// occurrence count and no unit.
type Line struct {
	Name     string
	Quantity float64
	Unit     string
}

func (l Line) String() string {
	qty := strconv.FormatFloat(l.Quantity, 'f', -1, 64)
	if l.Unit != "" {
		return fmt.Sprintf("%s (%s %s)", l.Name, qty, l.Unit)
	}
	if l.Quantity > 1 {
		return fmt.Sprintf("%sx %s", qty, l.Name)
	}
	return l.Name
}

// CountIngredients maps each ingredient name to the number of selected meals
// using it. Ingredients come from lookup by meal id, falling back to the
// meal's own snapshot when the card has left the deck.
func CountIngredients(meals []selection.Meal, lookup map[string][]string) map[string]int {
	counts := make(map[string]int)
	for _, line := range CountLines(meals, lookup) {
		counts[line.Name] = int(line.Quantity)
	}
	return counts
}

// CountLines is CountIngredients as lines, in order of first appearance.
func CountLines(meals []selection.Meal, lookup map[string][]string) []Line {
	index := make(map[string]int)
	var lines []Line
	for _, meal := range meals {
		ingredients, ok := lookup[meal.ID]
		if !ok {
			ingredients = meal.Ingredients
		}
		for _, name := range ingredients {
			if i, seen := index[name]; seen {
				lines[i].Quantity++
				continue
			}
			index[name] = len(lines)
			lines = append(lines, Line{Name: name, Quantity: 1})
		}
	}
	return lines
}

// ServerLines converts service grocery items to lines.
func ServerLines(items []mealapi.GroceryItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{Name: item.Name, Quantity: item.Quantity, Unit: item.Unit})
	}
	return lines
}

// ItemFetcher is the service side of aggregation.
type ItemFetcher interface {
	FetchGroceryItems(ctx context.Context, links []string) ([]mealapi.GroceryItem, error)
}

// Aggregator builds shopping lists.
type Aggregator struct {
	fetcher ItemFetcher
	logger  logrus.FieldLogger
}

// NewAggregator creates an Aggregator. A nil fetcher means client counting only.
func NewAggregator(fetcher ItemFetcher, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{fetcher: fetcher, logger: logger.WithField("component", "grocery")}
}

// Build asks the service for the list of the selected meals' links and
// falls back to counting when there are no links, the call fails or the
// service returns nothing.
func (a *Aggregator) Build(ctx context.Context, meals []selection.Meal, lookup map[string][]string) ([]Line, Source) {
	var links []string
	for _, m := range meals {
		if m.Link != "" {
			links = append(links, m.Link)
		}
	}

	if a.fetcher != nil && len(links) > 0 {
		items, err := a.fetcher.FetchGroceryItems(ctx, links)
		switch {
		case err != nil:
			a.logger.WithError(err).Warn("grocery aggregation failed, counting ingredients locally")
		case len(items) == 0:
			a.logger.Info("grocery service returned no items, counting ingredients locally")
		default:
			return ServerLines(items), SourceServer
		}
	}
	return CountLines(meals, lookup), SourceClient
}

// Confirmer asks the user before a destructive change.
type Confirmer interface {
	ConfirmRemoval(ctx context.Context, name string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, name string) (bool, error)

func (f ConfirmFunc) ConfirmRemoval(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}

// Confirmed is a Confirmer for callers that already got the user's consent.
var Confirmed = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// List is the user-editable shopping list.
type List struct {
	mu     sync.Mutex
	lines  []Line
	source Source
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// Set replaces the list contents.
func (l *List) Set(lines []Line, source Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append([]Line(nil), lines...)
	l.source = source
}

// Lines returns the current lines.
func (l *List) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Line(nil), l.lines...)
}

// Source returns the path that produced the list.
func (l *List) Source() Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Reset empties the list.
func (l *List) Reset() {
	l.Set(nil, SourceNone)
}

// Remove deletes the line named exactly name, whatever its quantity, once
// the confirmer agrees. Counted lines are case-sensitive, so "Salt" and
// "salt" are different lines.
func (l *List) Remove(ctx context.Context, name string, confirmer Confirmer) error {
	if l.indexOf(name) < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, name)
	}

	ok, err := confirmer.ConfirmRemoval(ctx, name)
	if err != nil {
		return fmt.Errorf("confirm removal of %s: %w", name, err)
	}
	if !ok {
		return ErrRemovalNotConfirmed
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOfLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, name)
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	return nil
}

// AddSuggested bumps the quantity of an existing line by one or appends the
// product with quantity one. An exact name match wins over one differing
// only in case.
func (l *List) AddSuggested(p Product) Line {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfLocked(p.Name)
	if i < 0 {
		i = l.indexFoldLocked(p.Name)
	}
	if i >= 0 {
		l.lines[i].Quantity++
		return l.lines[i]
	}
	line := Line{Name: p.Name, Quantity: 1}
	l.lines = append(l.lines, line)
	return line
}

func (l *List) indexOf(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexOfLocked(name)
}

func (l *List) indexOfLocked(name string) int {
	for i, line := range l.lines {
		if line.Name == name {
			return i
		}
	}
	return -1
}

func (l *List) indexFoldLocked(name string) int {
	for i, line := range l.lines {
		if strings.EqualFold(line.Name, name) {
			return i
		}
	}
	return -1
}
