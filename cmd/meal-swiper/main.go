package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"meal-swiper/internal/config"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/logging"
	"meal-swiper/internal/mealapi"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/preview"
	"meal-swiper/internal/reminders"
	"meal-swiper/internal/selection"

	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// The catalog is local and works without any configuration.
	if os.Args[1] == "catalog" {
		runCatalog(os.Args[2:])
		return
	}

	_ = godotenv.Load()
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New("meal-swiper", cfg.AppEnv, cfg.LogLevel)
	client := mealapi.NewClient(cfg)

	switch os.Args[1] {
	case "batch":
		batchCmd := flag.NewFlagSet("batch", flag.ExitOnError)
		images := batchCmd.Bool("images", false, "Resolve missing card images from the recipe pages")
		batchCmd.Parse(os.Args[2:])

		controller := feed.NewController(client, selection.NewAccumulator(cfg.SelectionNudge), logger, cfg.RefillThreshold)
		if *images {
			controller.SetImageResolver(preview.New(cfg.HTTPTimeout))
		}
		if err := controller.FetchBatch(ctx); err != nil {
			log.Fatalf("Batch fetch failed: %v", err)
		}
		for _, card := range controller.Cards() {
			fmt.Printf("%s  %s\n", card.ID, card.Name)
			fmt.Printf("    %s\n", card.Link)
			if card.Image != "" {
				fmt.Printf("    image: %s\n", card.Image)
			}
			if len(card.Ingredients) > 0 {
				fmt.Printf("    ingredients: %v\n", card.Ingredients)
			}
		}
	case "reminders":
		remindersCmd := flag.NewFlagSet("reminders", flag.ExitOnError)
		notifyFlag := remindersCmd.Bool("notify", false, "Schedule the restock notifications and wait for them")
		remindersCmd.Parse(os.Args[2:])

		if *notifyFlag {
			scheduler := notify.NewScheduler(notify.LogSink(logger), logger)
			n, err := reminders.Check(ctx, client, scheduler, cfg.RestockDelay)
			if err != nil {
				log.Fatalf("Reminder check failed: %v", err)
			}
			fmt.Printf("Scheduled %d restock notifications.\n", n)
			scheduler.Flush()
			scheduler.Stop()
			return
		}

		items, err := client.FetchReminders(ctx)
		if err != nil {
			log.Fatalf("Reminder fetch failed: %v", err)
		}
		if len(items) == 0 {
			fmt.Println("Nothing to restock.")
		}
		for _, r := range items {
			fmt.Printf("%-20s last bought %d days ago (every %d days)\n", r.ItemName, r.LastPurchasedDaysAgo, r.TypicalIntervalDays)
		}
	case "groceries":
		links := os.Args[2:]
		if len(links) == 0 {
			fmt.Println("Usage: meal-swiper groceries <recipe link>...")
			os.Exit(1)
		}
		items, err := client.FetchGroceryItems(ctx, links)
		if err != nil {
			log.Fatalf("Grocery aggregation failed: %v", err)
		}
		for _, line := range grocery.ServerLines(items) {
			fmt.Printf("• %s\n", line)
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runCatalog(args []string) {
	catalogCmd := flag.NewFlagSet("catalog", flag.ExitOnError)
	query := catalogCmd.String("q", "", "Case-insensitive product search")
	catalogCmd.Parse(args)

	for _, p := range grocery.NewCatalog(nil).Search(*query) {
		fmt.Printf("%-4s %-20s %-8s €%.2f\n", p.ID, p.Name, p.Category, p.Price)
	}
}

func printUsage() {
	fmt.Println("Usage: meal-swiper <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  batch [-images]        Fetch one meal batch and print the cards")
	fmt.Println("  reminders [-notify]    Print restock reminders")
	fmt.Println("  groceries <link>...    Aggregate a grocery list on the server")
	fmt.Println("  catalog [-q query]     Search the suggested products")
}
