// Package reminders polls the meal service for restock reminders and turns
// them into local notifications.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSchedule = "@every 6h"
	DefaultDelay    = 5 * time.Second
)

// Fetcher returns the restock reminders of one client.
type Fetcher interface {
	FetchReminders(ctx context.Context) ([]mealapi.Reminder, error)
}

// Notifier schedules local notifications.
type Notifier interface {
	Schedule(n notify.Notification) error
}

// Check fetches reminders once and schedules one restock notification per
// item, each after delay. It returns how many were scheduled.
func Check(ctx context.Context, fetcher Fetcher, notifier Notifier, delay time.Duration) (int, error) {
	items, err := fetcher.FetchReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch reminders: %w", err)
	}

	scheduled := 0
	for _, r := range items {
		if r.ItemName == "" {
			continue
		}
		if err := notifier.Schedule(notify.Restock(r.ItemName, r.LastPurchasedDaysAgo, delay)); err != nil {
			return scheduled, fmt.Errorf("schedule reminder for %s: %w", r.ItemName, err)
		}
		scheduled++
	}
	return scheduled, nil
}

// Poller runs Check for every watched client on a cron schedule. Failures are
// logged and never surfaced.
type Poller struct {
	cron   *cron.Cron
	spec   string
	delay  time.Duration
	logger logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewPoller creates a stopped Poller. spec accepts standard five-field cron
// expressions and descriptors such as "@every 6h".
func NewPoller(spec string, delay time.Duration, logger logrus.FieldLogger) (*Poller, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}

	logger = logger.WithField("component", "reminders")
	cronLogger := cron.PrintfLogger(logger)
	return &Poller{
		cron: cron.New(cron.WithLogger(cronLogger), cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		spec:    spec,
		delay:   delay,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Watch polls reminders for key. Watching a key again replaces its entry.
func (p *Poller) Watch(key string, fetcher Fetcher, notifier Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.entries[key]; ok {
		p.cron.Remove(id)
	}
	id, err := p.cron.AddFunc(p.spec, func() {
		n, err := Check(context.Background(), fetcher, notifier, p.delay)
		if err != nil {
			logging.Error(p.logger, "reminder poll failed", err, logrus.Fields{"client": key})
			return
		}
		p.logger.WithFields(logrus.Fields{"client": key, "scheduled": n}).Debug("reminders polled")
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	p.entries[key] = id
	return nil
}

// Unwatch stops polling for key.
func (p *Poller) Unwatch(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.entries[key]; ok {
		p.cron.Remove(id)
		delete(p.entries, key)
	}
}

// Watching returns the number of watched clients.
func (p *Poller) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Poller) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for running polls.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}
