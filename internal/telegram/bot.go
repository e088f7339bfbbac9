package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"meal-swiper/internal/app"
	"meal-swiper/internal/config"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the swipe front end. Every Telegram user gets their own client
// state from the registry.
type Bot struct {
	api      Sender
	parse    func(r *http.Request) (*tgbotapi.Update, error)
	cfg      *config.Config
	registry *app.Registry
	poller   *reminders.Poller
	logger   logrus.FieldLogger
	started  time.Time
	wg       sync.WaitGroup

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

// NewBot initializes the Telegram Bot and sets the Webhook. resolver and
// poller may be nil.
func NewBot(cfg *config.Config, client mealapi.Client, resolver feed.ImageResolver, poller *reminders.Poller, logger logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Infof("Authorized on account %s", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Infof("Webhook set response: %s", resp.Description)

	b := newBot(api, cfg, client, resolver, poller, logger)
	b.parse = api.HandleUpdate
	return b, nil
}

func newBot(api Sender, cfg *config.Config, client mealapi.Client, resolver feed.ImageResolver, poller *reminders.Poller, logger logrus.FieldLogger) *Bot {
	b := &Bot{
		api:     api,
		cfg:     cfg,
		poller:  poller,
		logger:  logger.WithField("component", "telegram"),
		started: time.Now(),
		users:   make(map[int64]*sync.Mutex),
	}
	b.registry = app.NewRegistry(func(userID int64) *app.App {
		userLogger := logger.WithField("user_id", userID)
		// Private chats share the user's id.
		return app.NewApp(cfg, client, NotificationSink(api, userID, userLogger), resolver, userLogger)
	}, poller, logger)
	return b
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Shutdown waits for updates being processed and closes every session.
func (b *Bot) Shutdown() {
	b.wg.Wait()
	b.registry.Close()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.parse(r)
	if err != nil {
		b.logger.WithError(err).Warn("Error parsing update")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if !b.isAllowed(q.From) {
			return
		}
		b.dispatch(q.From.ID, func(ctx context.Context) { b.handleCallbackQuery(ctx, q) })
	case update.Message != nil:
		if !b.isAllowed(update.Message.From) {
			return
		}
		msg := update.Message
		b.dispatch(msg.From.ID, func(ctx context.Context) { b.processMessage(ctx, msg) })
	}
}

// dispatch handles an update off the webhook goroutine. Updates of one user
// run one at a time; different users do not wait on each other.
func (b *Bot) dispatch(userID int64, fn func(ctx context.Context)) {
	lock := b.userLock(userID)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		lock.Lock()
		defer lock.Unlock()
		fn(context.Background())
	}()
}

func (b *Bot) userLock(userID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		b.users[userID] = lock
	}
	return lock
}

// isAllowed checks the allow-list. An empty list lets nobody in.
func (b *Bot) isAllowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if from.ID == id {
			return true
		}
	}
	b.logger.WithFields(logrus.Fields{"user_id": from.ID, "username": from.UserName}).Warn("⚠️ Unauthorized access attempt")
	return false
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		logging.Error(b.logger, "telegram send failed", err, nil)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(keyboard.InlineKeyboard) > 0 {
		msg.ReplyMarkup = keyboard
	}
	b.send(msg)
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.reply(b.cfg.AdminTelegramID, text)
}

func (b *Bot) watchingCounter() func() int {
	if b.poller == nil {
		return func() int { return 0 }
	}
	return b.poller.Watching
}
