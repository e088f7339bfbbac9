package telegram

import (
	"fmt"
	"strings"

	"meal-swiper/internal/feed"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/metrics"
	"meal-swiper/internal/notify"
	"meal-swiper/internal/order"
	"meal-swiper/internal/selection"
	"meal-swiper/internal/session"
)

const helpText = `🥗 *Meal Swiper*

/login <email> <password>
/register <email> <password> <username> (optional: age height weight goal activity)
/swipe - show the next meal
/edit - drop the top card
/selected - meals picked so far
/done - build the grocery list
/add <product> - add extras
/confirm - place the order
/orders - order history
/manage - cancel orders
/pantry - what you have at home
/reminders - check restock reminders
/logout`

func formatCard(card feed.Card) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\n", esc(card.Name)))
	if card.Source != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", esc(card.Source)))
	}
	if len(card.Ingredients) > 0 {
		sb.WriteString(fmt.Sprintf("\n🧂 %s", esc(strings.Join(card.Ingredients, ", "))))
	}
	return sb.String()
}

func formatGroceries(lines []grocery.Line, source grocery.Source) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Grocery List*\n\n")
	if len(lines) == 0 {
		sb.WriteString("_Nothing to buy_\n")
	}
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("• %s\n", esc(l.String())))
	}
	switch source {
	case grocery.SourceServer:
		sb.WriteString("\n_Quantities from the shop._")
	case grocery.SourceClient:
		sb.WriteString("\n_Counted from your recipes._")
	}
	sb.WriteString("\nTap /confirm to order or /add <product> for extras.")
	return sb.String()
}

func formatSelected(meals []selection.Meal) string {
	if len(meals) == 0 {
		return "✅ *Selected meals*\n\n_None yet. Swipe right to pick._"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ *Selected meals* (%d)\n\n", len(meals)))
	for i, m := range meals {
		sb.WriteString(fmt.Sprintf("%d. %s `%s`\n", i+1, esc(m.Name), m.ID))
	}
	return sb.String()
}

func formatOrderConfirmed(o order.Order) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ *Order #%s confirmed!*\n\n", o.ID))
	for _, m := range o.Meals {
		sb.WriteString(fmt.Sprintf("🍽 %s\n", esc(m.Name)))
	}
	sb.WriteString(fmt.Sprintf("\n🚚 Delivery: *%s*", o.DeliveryTime.Format("Mon 2 Jan 15:04")))
	return sb.String()
}

func formatOrders(orders []order.Order) string {
	if len(orders) == 0 {
		return "📦 *Your orders*\n\n_No orders yet._"
	}
	var sb strings.Builder
	sb.WriteString("📦 *Your orders*\n\n")
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		sb.WriteString(fmt.Sprintf("*#%s* · %d meals · %d items · %s", o.ID, len(o.Meals), len(o.Items), o.DeliveryTime.Format("Mon 2 Jan")))
		if o.Canceled {
			sb.WriteString(" · _canceled_")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatPantry(items []session.PantryItem) string {
	if len(items) == 0 {
		return "🥫 *Pantry*\n\n_Empty._"
	}
	var sb strings.Builder
	sb.WriteString("🥫 *Pantry*\n\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("• %s `%s`\n", esc(item.Name), item.ID))
	}
	return sb.String()
}

func formatNotification(n notify.Notification) string {
	return fmt.Sprintf("🔔 *%s*\n%s", esc(n.Title), esc(n.Body))
}

func formatMetrics(h metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")
	sb.WriteString("👥 *Sessions*\n")
	sb.WriteString(fmt.Sprintf("• Active: %d\n", h.Sessions))
	sb.WriteString(fmt.Sprintf("• Reminder polls: %d\n", h.Watching))

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", h.Goroutines))
	sb.WriteString(fmt.Sprintf("• GC runs: %d\n", h.NumGC))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", h.Uptime))
	return sb.String()
}
