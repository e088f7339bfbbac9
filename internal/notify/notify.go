// Package notify schedules local notifications. Notifications are always
// presented, even while the user is active in the app.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meal-swiper/internal/logging"

	"github.com/sirupsen/logrus"
)

// Kind tells restock reminders and order confirmations apart.
type Kind string

const (
	KindRestock        Kind = "restock_reminder"
	KindOrderConfirmed Kind = "order_confirmed"
)

const defaultSound = "default"

var (
	ErrStopped      = errors.New("scheduler stopped")
	ErrEmptyMessage = errors.New("notification needs a title")
)

// Notification is a title/body/sound tuple fired after Delay.
type Notification struct {
	Kind  Kind
	Title string
	Body  string
	Sound string
	Delay time.Duration
}

// OrderConfirmed builds the notification sent right after an order.
func OrderConfirmed(orderID string, meals int, delivery time.Time) Notification {
	return Notification{
		Kind:  KindOrderConfirmed,
		Title: "Order confirmed! 🛒",
		Body:  fmt.Sprintf("Order %s with %d meals arrives %s.", orderID, meals, delivery.Format("Mon 2 Jan")),
		Sound: defaultSound,
	}
}

// Restock builds a restock reminder for item.
func Restock(item string, daysAgo int, delay time.Duration) Notification {
	return Notification{
		Kind:  KindRestock,
		Title: fmt.Sprintf("Time to restock %s", item),
		Body:  fmt.Sprintf("You last bought %s %d days ago.", item, daysAgo),
		Sound: defaultSound,
		Delay: delay,
	}
}

// Sink presents a notification to the user.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to the log. Used by the CLI.
func LogSink(logger logrus.FieldLogger) Sink {
	return SinkFunc(func(_ context.Context, n Notification) error {
		logger.WithFields(logrus.Fields{"kind": n.Kind, "sound": n.Sound}).Infof("🔔 %s: %s", n.Title, n.Body)
		return nil
	})
}

// Scheduler fires notifications after their delay. Delivery failures are
// logged and dropped.
type Scheduler struct {
	sink   Sink
	logger logrus.FieldLogger

	mu      sync.Mutex
	timers  map[int]*time.Timer
	nextID  int
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler delivering to sink.
func NewScheduler(sink Sink, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		sink:   sink,
		logger: logger.WithField("component", "notify"),
		timers: make(map[int]*time.Timer),
	}
}

// Schedule registers n and returns without waiting for delivery.
func (s *Scheduler) Schedule(n Notification) error {
	if n.Title == "" {
		return ErrEmptyMessage
	}
	if n.Sound == "" {
		n.Sound = defaultSound
	}
	if n.Delay < 0 {
		n.Delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(n.Delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		if err := s.sink.Deliver(context.Background(), n); err != nil {
			logging.Error(s.logger, "notification delivery failed", err, logrus.Fields{"kind": n.Kind})
		}
	})
	return nil
}

// Pending returns the number of notifications not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending notifications and waits for deliveries in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Flush waits until every scheduled notification has been delivered.
func (s *Scheduler) Flush() {
	s.wg.Wait()
}
