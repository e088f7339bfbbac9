package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meal(id string) Meal {
	return Meal{ID: id, Name: "Meal " + id, Ingredients: []string{"salt"}}
}

func TestSelectPreservesOrder(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	for _, id := range []string{"a", "b", "c"} {
		acc.Select(meal(id))
	}

	selected := acc.Selected()
	require.Len(t, selected, 3)
	assert.Equal(t, "a", selected[0].ID)
	assert.Equal(t, "b", selected[1].ID)
	assert.Equal(t, "c", selected[2].ID)
}

func TestSelectKeepsDuplicates(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	acc.Select(meal("a"))
	acc.Select(meal("a"))

	assert.Equal(t, 2, acc.Len())
}

func TestNudgeFiresOnceAtSeven(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)

	var nudges []int
	for i := 1; i <= 9; i++ {
		if acc.Select(meal(fmt.Sprint(i))) {
			nudges = append(nudges, i)
		}
	}
	assert.Equal(t, []int{7}, nudges)
	assert.Equal(t, 9, acc.Len(), "selection is not capped at the nudge")

	// Removing below seven and climbing back must not nudge again.
	acc.Remove("9")
	acc.Remove("8")
	acc.Remove("7")
	assert.False(t, acc.Select(meal("x")))

	acc.Clear()
	for i := 1; i <= 6; i++ {
		assert.False(t, acc.Select(meal(fmt.Sprint(i))))
	}
	assert.True(t, acc.Select(meal("7")), "nudge re-arms after Clear")
}

func TestNudgeDisabled(t *testing.T) {
	acc := NewAccumulator(0)
	for i := 0; i < 10; i++ {
		assert.False(t, acc.Select(meal(fmt.Sprint(i))))
	}
}

func TestLikeDedupsByID(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	assert.True(t, acc.Like(meal("a")))
	assert.False(t, acc.Like(meal("a")))
	assert.True(t, acc.Like(meal("b")))

	assert.Len(t, acc.Liked(), 2)
	assert.Equal(t, 0, acc.Len(), "likes do not select")
}

func TestRemove(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	acc.Select(meal("a"))
	acc.Select(meal("b"))
	acc.Select(meal("a"))

	assert.Equal(t, 2, acc.Remove("a"))
	assert.Equal(t, 0, acc.Remove("missing"))
	require.Len(t, acc.Selected(), 1)
	assert.Equal(t, "b", acc.Selected()[0].ID)
}

func TestClearKeepsLiked(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	acc.Select(meal("a"))
	acc.Like(meal("b"))

	acc.Clear()

	assert.Empty(t, acc.Selected())
	assert.Len(t, acc.Liked(), 1)
}

func TestSelectionIsACopy(t *testing.T) {
	acc := NewAccumulator(DefaultNudgeAt)
	m := meal("a")
	acc.Select(m)

	m.Ingredients[0] = "sugar"
	got := acc.Selected()
	got[0].Name = "changed"

	again := acc.Selected()
	assert.Equal(t, "salt", again[0].Ingredients[0])
	assert.Equal(t, "Meal a", again[0].Name)
}
