package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-swiper/internal/config"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/preview"
	"meal-swiper/internal/reminders"
	"meal-swiper/internal/telegram"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Configuration
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New("meal-swiper-bot", cfg.AppEnv, cfg.LogLevel)

	// 2. Remote service and helpers
	client := mealapi.NewClient(cfg)

	var resolver feed.ImageResolver
	if cfg.ResolveImages {
		resolver = preview.New(cfg.HTTPTimeout)
	}

	poller, err := reminders.NewPoller(cfg.ReminderSchedule, cfg.RestockDelay, logger)
	if err != nil {
		logger.Fatalf("Failed to create reminder poller: %v", err)
	}

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, client, resolver, poller, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	// 4. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	poller.Start()
	go func() {
		logger.Infof("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	poller.Stop()
	bot.Shutdown()

	logger.Info("Server exiting")
}
