// Package selection tracks the meals a user picked (swiped right) and liked
// (swiped up). Entries are value copies, so they outlive the deck cards they
// were taken from.
package selection

import "sync"

// DefaultNudgeAt is the selection size that triggers the "week is full" prompt.
const DefaultNudgeAt = 7

// Meal is a snapshot of a recipe card taken at swipe time.
type Meal struct {
	ID          string
	Name        string
	Image       string
	Link        string
	Source      string
	Ingredients []string
}

// Copy returns a deep copy of m.
func (m Meal) Copy() Meal {
	if m.Ingredients != nil {
		m.Ingredients = append([]string(nil), m.Ingredients...)
	}
	return m
}

// Accumulator holds the selected sequence and the liked set.
type Accumulator struct {
	mu       sync.Mutex
	selected []Meal
	liked    []Meal
	nudgeAt  int
	nudged   bool
}

// NewAccumulator creates an Accumulator that nudges when the selection first
// reaches nudgeAt meals. A non-positive value disables the nudge.
func NewAccumulator(nudgeAt int) *Accumulator {
	return &Accumulator{nudgeAt: nudgeAt}
}

// Select appends meal to the selection. Duplicates are kept. It reports true
// exactly once per cycle, when the selection size hits the nudge count; the
// user may keep selecting past it.
func (a *Accumulator) Select(meal Meal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.selected = append(a.selected, meal.Copy())
	if a.nudgeAt > 0 && !a.nudged && len(a.selected) == a.nudgeAt {
		a.nudged = true
		return true
	}
	return false
}

// Like adds meal to the liked set unless a meal with the same id is already
// there. It reports whether the meal was added.
func (a *Accumulator) Like(meal Meal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range a.liked {
		if m.ID == meal.ID {
			return false
		}
	}
	a.liked = append(a.liked, meal.Copy())
	return true
}

// Remove drops every selected entry with the given id and returns how many
// were removed.
func (a *Accumulator) Remove(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.selected[:0]
	removed := 0
	for _, m := range a.selected {
		if m.ID == id {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	a.selected = kept
	return removed
}

// Clear empties the selection and re-arms the nudge. Liked meals stay.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.selected = nil
	a.nudged = false
}

// Selected returns the selection in insertion order.
func (a *Accumulator) Selected() []Meal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyMeals(a.selected)
}

// Liked returns the liked meals in insertion order.
func (a *Accumulator) Liked() []Meal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyMeals(a.liked)
}

// Len returns the number of selected meals.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.selected)
}

func copyMeals(meals []Meal) []Meal {
	out := make([]Meal, len(meals))
	for i, m := range meals {
		out[i] = m.Copy()
	}
	return out
}
