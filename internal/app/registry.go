package app

import (
	"strconv"
	"sync"

	"meal-swiper/internal/logging"
	"meal-swiper/internal/reminders"

	"github.com/sirupsen/logrus"
)

// Factory builds the App of a user.
type Factory func(userID int64) *App

// Registry keeps one App per user, created on first use.
type Registry struct {
	factory Factory
	poller  *reminders.Poller
	logger  logrus.FieldLogger

	mu   sync.Mutex
	apps map[int64]*App
}

// NewRegistry creates a Registry. poller may be nil; otherwise every new App
// is watched for restock reminders.
func NewRegistry(factory Factory, poller *reminders.Poller, logger logrus.FieldLogger) *Registry {
	return &Registry{
		factory: factory,
		poller:  poller,
		logger:  logger.WithField("component", "registry"),
		apps:    make(map[int64]*App),
	}
}

// Get returns the App of userID and reports whether it was just created.
func (r *Registry) Get(userID int64) (*App, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.apps[userID]; ok {
		return a, false
	}
	a := r.factory(userID)
	r.apps[userID] = a
	if r.poller != nil {
		if err := a.WatchReminders(r.poller, strconv.FormatInt(userID, 10)); err != nil {
			logging.Error(r.logger, "reminder polling not registered", err, logrus.Fields{"user_id": userID})
		}
	}
	return a, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// Close closes every App.
func (r *Registry) Close() {
	r.mu.Lock()
	apps := make([]*App, 0, len(r.apps))
	for id, a := range r.apps {
		apps = append(apps, a)
		if r.poller != nil {
			r.poller.Unwatch(strconv.FormatInt(id, 10))
		}
	}
	r.apps = make(map[int64]*App)
	r.mu.Unlock()

	for _, a := range apps {
		a.Close()
	}
}
