package telegram

import (
	"context"
	"fmt"

	"meal-swiper/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// NotificationSink delivers notifications as chat messages to chatID.
func NotificationSink(api Sender, chatID int64, logger logrus.FieldLogger) notify.Sink {
	return notify.SinkFunc(func(ctx context.Context, n notify.Notification) error {
		msg := tgbotapi.NewMessage(chatID, formatNotification(n))
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := api.Send(msg); err != nil {
			return fmt.Errorf("send %s notification: %w", n.Kind, err)
		}
		logger.WithField("kind", n.Kind).Debug("notification delivered")
		return nil
	})
}
