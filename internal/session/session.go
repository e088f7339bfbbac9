// Package session holds the per-client state shared across screens: the
// logged-in user, the pantry and the order history. Everything is in memory
// and the last write wins.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/order"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrPantryItemNotFound = errors.New("pantry item not found")
)

// DefaultPantry is what every new session starts with.
var DefaultPantry = []string{"Salt", "Olive oil", "Rice", "Pasta"}

// User identifies the logged-in account.
type User struct {
	ID string
}

// PantryItem is something the user already has at home.
type PantryItem struct {
	ID   string
	Name string
}

// Credentials are checked for presence only.
type Credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Registration is the sign-up form including the onboarding profile.
type Registration struct {
	Email         string `validate:"required,email"`
	Password      string `validate:"required"`
	Username      string `validate:"required"`
	Age           int    `validate:"gte=0"`
	Height        int    `validate:"gte=0"`
	Weight        int    `validate:"gte=0"`
	Gender        string
	Goal          string `validate:"omitempty,oneof=lose_weight gain_muscle maintain"`
	ActivityLevel string `validate:"omitempty,oneof=sedentary light moderate active"`
}

// Profile converts the form to the onboarding payload.
func (r Registration) Profile() mealapi.Profile {
	return mealapi.Profile{
		Name:          r.Username,
		Email:         r.Email,
		Age:           r.Age,
		Height:        r.Height,
		Weight:        r.Weight,
		Gender:        r.Gender,
		Goal:          r.Goal,
		ActivityLevel: r.ActivityLevel,
	}
}

// Onboarder registers a profile with the remote service.
type Onboarder interface {
	Onboard(ctx context.Context, p mealapi.Profile) (string, error)
}

// Store is the session state of one client.
type Store struct {
	onboarder Onboarder
	validate  *validator.Validate

	mu     sync.Mutex
	user   *User
	pantry []PantryItem
	orders []order.Order
}

// NewStore creates a logged-out Store with the default pantry.
func NewStore(onboarder Onboarder) *Store {
	s := &Store{
		onboarder: onboarder,
		validate:  validator.New(),
	}
	s.seedPantry()
	return s
}

func (s *Store) seedPantry() {
	s.pantry = make([]PantryItem, 0, len(DefaultPantry))
	for _, name := range DefaultPantry {
		s.pantry = append(s.pantry, PantryItem{ID: uuid.NewString(), Name: name})
	}
}

// Login accepts any non-empty email and password. The email becomes the
// user id.
func (s *Store) Login(email, password string) error {
	creds := Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(creds); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &User{ID: creds.Email}
	return nil
}

// Register validates the form, posts the profile and logs the returned
// identifier in. Nothing changes when validation or onboarding fails.
func (s *Store) Register(ctx context.Context, r Registration) error {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	if err := s.validate.Struct(r); err != nil {
		return fmt.Errorf("invalid registration: %w", err)
	}

	id, err := s.onboarder.Onboard(ctx, r.Profile())
	if err != nil {
		return fmt.Errorf("onboarding failed: %w", err)
	}
	if id == "" {
		id = r.Email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &User{ID: id}
	return nil
}

// Logout clears the user and the pantry. Orders are kept.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.pantry = nil
}

// User returns the logged-in user.
func (s *Store) User() (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, ErrNotLoggedIn
	}
	return *s.user, nil
}

func (s *Store) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// Pantry returns the pantry items in insertion order.
func (s *Store) Pantry() []PantryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PantryItem(nil), s.pantry...)
}

// AddPantryItem adds name with a fresh id.
func (s *Store) AddPantryItem(name string) (PantryItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PantryItem{}, errors.New("pantry item name is empty")
	}
	item := PantryItem{ID: uuid.NewString(), Name: name}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pantry = append(s.pantry, item)
	return item, nil
}

func (s *Store) RemovePantryItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.pantry {
		if item.ID == id {
			s.pantry = append(s.pantry[:i:i], s.pantry[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPantryItemNotFound, id)
}

func (s *Store) UpdatePantryItem(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("pantry item name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pantry {
		if s.pantry[i].ID == id {
			s.pantry[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPantryItemNotFound, id)
}

func (s *Store) ClearPantry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pantry = nil
}

// AppendOrder adds o to the history.
func (s *Store) AppendOrder(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

// CancelOrder flips the canceled flag of the order with id. Nothing else
// about the order changes.
func (s *Store) CancelOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Canceled = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", order.ErrOrderNotFound, id)
}

// Orders returns the order history, oldest first.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.Order(nil), s.orders...)
}

func (s *Store) Order(id string) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}
