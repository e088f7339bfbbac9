package session

import (
	"context"
	"errors"
	"testing"

	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOnboarder struct {
	got  *mealapi.Profile
	user string
	err  error
}

func (m *mockOnboarder) Onboard(ctx context.Context, p mealapi.Profile) (string, error) {
	m.got = &p
	return m.user, m.err
}

func TestNewStoreSeedsPantry(t *testing.T) {
	s := NewStore(&mockOnboarder{})
	pantry := s.Pantry()
	require.Len(t, pantry, 4)

	var names []string
	for _, item := range pantry {
		assert.NotEmpty(t, item.ID)
		names = append(names, item.Name)
	}
	assert.Equal(t, DefaultPantry, names)
	assert.False(t, s.LoggedIn())
}

func TestLogin(t *testing.T) {
	s := NewStore(&mockOnboarder{})

	assert.Error(t, s.Login("", "secret"))
	assert.Error(t, s.Login("sam@example.com", ""))
	assert.False(t, s.LoggedIn(), "failed login changes nothing")

	require.NoError(t, s.Login(" sam@example.com ", "secret"))
	user, err := s.User()
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.ID)
}

func TestRegister(t *testing.T) {
	valid := Registration{
		Email:         "sam@example.com",
		Password:      "secret",
		Username:      "sam",
		Age:           30,
		Height:        170,
		Weight:        65,
		Goal:          "lose_weight",
		ActivityLevel: "moderate",
	}

	t.Run("Success", func(t *testing.T) {
		ob := &mockOnboarder{user: "sam-42"}
		s := NewStore(ob)

		require.NoError(t, s.Register(context.Background(), valid))
		user, err := s.User()
		require.NoError(t, err)
		assert.Equal(t, "sam-42", user.ID)
		require.NotNil(t, ob.got)
		assert.Equal(t, "sam", ob.got.Name)
		assert.Equal(t, "moderate", ob.got.ActivityLevel)
	})

	t.Run("InvalidForm", func(t *testing.T) {
		tests := map[string]func(r *Registration){
			"missing email":  func(r *Registration) { r.Email = "" },
			"bad email":      func(r *Registration) { r.Email = "not-an-email" },
			"missing user":   func(r *Registration) { r.Username = " " },
			"negative age":   func(r *Registration) { r.Age = -1 },
			"unknown goal":   func(r *Registration) { r.Goal = "bulk" },
			"unknown level":  func(r *Registration) { r.ActivityLevel = "extreme" },
			"missing secret": func(r *Registration) { r.Password = "" },
		}
		for name, mutate := range tests {
			t.Run(name, func(t *testing.T) {
				ob := &mockOnboarder{user: "x"}
				s := NewStore(ob)
				r := valid
				mutate(&r)

				assert.Error(t, s.Register(context.Background(), r))
				assert.Nil(t, ob.got, "service must not be called")
				assert.False(t, s.LoggedIn())
			})
		}
	})

	t.Run("OnboardingFails", func(t *testing.T) {
		s := NewStore(&mockOnboarder{err: errors.New("boom")})
		assert.Error(t, s.Register(context.Background(), valid))
		assert.False(t, s.LoggedIn())
	})
}

func TestLogoutClearsUserAndPantry(t *testing.T) {
	s := NewStore(&mockOnboarder{})
	require.NoError(t, s.Login("sam@example.com", "secret"))

	s.Logout()
	_, err := s.User()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, s.Pantry())
}

func TestPantryCRUD(t *testing.T) {
	s := NewStore(&mockOnboarder{})

	item, err := s.AddPantryItem("Eggs")
	require.NoError(t, err)
	assert.Len(t, s.Pantry(), 5)

	_, err = s.AddPantryItem("  ")
	assert.Error(t, err)

	require.NoError(t, s.UpdatePantryItem(item.ID, "Free-range eggs"))
	pantry := s.Pantry()
	assert.Equal(t, "Free-range eggs", pantry[len(pantry)-1].Name)

	require.NoError(t, s.RemovePantryItem(item.ID))
	assert.Len(t, s.Pantry(), 4)
	assert.ErrorIs(t, s.RemovePantryItem(item.ID), ErrPantryItemNotFound)
	assert.ErrorIs(t, s.UpdatePantryItem("nope", "x"), ErrPantryItemNotFound)

	s.ClearPantry()
	assert.Empty(t, s.Pantry())
}

func TestOrders(t *testing.T) {
	s := NewStore(&mockOnboarder{})
	s.AppendOrder(order.Order{ID: "1"})
	s.AppendOrder(order.Order{ID: "2"})

	require.NoError(t, s.CancelOrder("1"))
	assert.ErrorIs(t, s.CancelOrder("3"), order.ErrOrderNotFound)

	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.True(t, orders[0].Canceled)
	assert.False(t, orders[1].Canceled)

	o, ok := s.Order("2")
	require.True(t, ok)
	assert.Equal(t, "2", o.ID)
	_, ok = s.Order("3")
	assert.False(t, ok)
}
