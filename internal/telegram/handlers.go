package telegram

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"meal-swiper/internal/app"
	"meal-swiper/internal/feed"
	"meal-swiper/internal/grocery"
	"meal-swiper/internal/metrics"
	"meal-swiper/internal/order"
	"meal-swiper/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data is "action|arg|arg". Telegram caps it at 64 bytes, so
// grocery lines are addressed by index plus a tag of the line name.
const (
	cbSwipe    = "swipe"
	cbRetry    = "retry"
	cbRemove   = "rm"
	cbRemoveOK = "rmyes"
	cbRemoveNo = "rmno"
	cbAdd      = "add"
	cbCancel   = "cancel"
	cbUnselect = "unselect"
)

func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, "|")
	return parts[0], parts[1:]
}

// lineTag identifies a grocery line by name in callback data.
func lineTag(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

func removeData(action string, idx int, name string) string {
	return action + "|" + strconv.Itoa(idx) + "|" + lineTag(name)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !msg.IsCommand() {
		b.reply(chatID, helpText)
		return
	}

	a, _ := b.registry.Get(msg.From.ID)
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
		return
	case "login":
		b.handleLogin(ctx, chatID, a, args)
		return
	case "register":
		b.handleRegister(ctx, chatID, a, args)
		return
	case "metrics":
		b.handleMetricsRequest(msg)
		return
	}

	if !a.Session().LoggedIn() {
		b.reply(chatID, "🔒 Please /login or /register first.")
		return
	}

	switch msg.Command() {
	case "logout":
		a.Session().Logout()
		b.reply(chatID, "👋 Logged out.")
	case "swipe":
		b.showTop(ctx, chatID, a)
	case "edit":
		if card, ok := a.Edit(); ok {
			b.reply(chatID, fmt.Sprintf("🗑 Removed *%s* from the deck.", esc(card.Name)))
		}
		b.showTop(ctx, chatID, a)
	case "selected":
		b.showSelected(chatID, a)
	case "unselect":
		if len(args) != 1 {
			b.reply(chatID, "Usage: /unselect <meal id>")
			return
		}
		b.unselect(chatID, a, args[0])
	case "done":
		b.handleDone(ctx, chatID, a)
	case "add":
		b.handleAdd(chatID, a, strings.TrimSpace(msg.CommandArguments()))
	case "confirm":
		b.handleConfirm(ctx, chatID, a)
	case "orders":
		b.reply(chatID, formatOrders(a.Session().Orders()))
	case "manage":
		b.handleManage(chatID, a)
	case "pantry":
		b.reply(chatID, formatPantry(a.Session().Pantry()))
	case "pantry_add":
		item, err := a.Session().AddPantryItem(msg.CommandArguments())
		if err != nil {
			b.reply(chatID, "Usage: /pantry\\_add <name>")
			return
		}
		b.reply(chatID, fmt.Sprintf("🥫 Added *%s* to your pantry.", esc(item.Name)))
	case "pantry_rm":
		if len(args) != 1 {
			b.reply(chatID, "Usage: /pantry\\_rm <id>")
			return
		}
		if err := a.Session().RemovePantryItem(args[0]); err != nil {
			b.reply(chatID, "❓ No pantry item with that id.")
			return
		}
		b.reply(chatID, formatPantry(a.Session().Pantry()))
	case "reminders":
		n, err := a.CheckReminders(ctx)
		if err != nil {
			b.logger.WithError(err).Warn("reminder check failed")
			b.reply(chatID, "❌ Could not fetch restock reminders.")
			return
		}
		b.reply(chatID, fmt.Sprintf("🔔 %d restock reminder(s) on the way.", n))
	default:
		b.reply(chatID, helpText)
	}
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, a *app.App, args []string) {
	if len(args) != 2 {
		b.reply(chatID, "Usage: /login <email> <password>")
		return
	}
	if err := a.Session().Login(args[0], args[1]); err != nil {
		b.reply(chatID, "❌ Email and password are required.")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Welcome back, *%s*!", esc(args[0])))
	b.startFeed(ctx, chatID, a)
}

// handleRegister takes email, password and username, optionally followed by
// age, height, weight, goal and activity level.
func (b *Bot) handleRegister(ctx context.Context, chatID int64, a *app.App, args []string) {
	r, err := parseRegistration(args)
	if err != nil {
		b.reply(chatID, "Usage: /register <email> <password> <username> (optional: age height weight goal activity)")
		return
	}
	if err := a.Session().Register(ctx, r); err != nil {
		b.logger.WithError(err).Info("registration rejected")
		b.reply(chatID, fmt.Sprintf("❌ *Registration failed:*\n```\n%s\n```", safeErr(err)))
		return
	}
	user, _ := a.Session().User()
	b.reply(chatID, fmt.Sprintf("🎉 Registered as *%s*.", esc(user.ID)))
	b.startFeed(ctx, chatID, a)
}

func parseRegistration(args []string) (session.Registration, error) {
	if len(args) < 3 {
		return session.Registration{}, errors.New("missing arguments")
	}
	r := session.Registration{Email: args[0], Password: args[1], Username: args[2]}
	ints := []*int{&r.Age, &r.Height, &r.Weight}
	for i, target := range ints {
		if len(args) <= 3+i {
			break
		}
		v, err := strconv.Atoi(args[3+i])
		if err != nil {
			return session.Registration{}, err
		}
		*target = v
	}
	if len(args) > 6 {
		r.Goal = strings.ToLower(args[6])
	}
	if len(args) > 7 {
		r.ActivityLevel = strings.ToLower(args[7])
	}
	return r, nil
}

func (b *Bot) startFeed(ctx context.Context, chatID int64, a *app.App) {
	if err := a.Launch(ctx); err != nil {
		b.sendRetry(chatID, err)
		return
	}
	b.showTop(ctx, chatID, a)
}

// showTop sends the top card, loading a batch first if the deck ran dry.
func (b *Bot) showTop(ctx context.Context, chatID int64, a *app.App) {
	_, card, ok := a.Feed().Top()
	if !ok {
		a.Feed().Wait()
		if _, card, ok = a.Feed().Top(); !ok {
			if err := a.Launch(ctx); err != nil {
				b.sendRetry(chatID, err)
				return
			}
			if _, card, ok = a.Feed().Top(); !ok {
				b.reply(chatID, "🍽 No meals right now. Try /swipe again in a moment.")
				return
			}
		}
	}
	b.sendCard(chatID, card)
}

func (b *Bot) sendCard(chatID int64, card feed.Card) {
	keyboard := cardKeyboard(card)
	if card.Image != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(card.Image))
		photo.Caption = formatCard(card)
		photo.ParseMode = tgbotapi.ModeMarkdown
		photo.ReplyMarkup = keyboard
		b.send(photo)
		return
	}
	b.replyWithKeyboard(chatID, formatCard(card), keyboard)
}

func cardKeyboard(card feed.Card) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👈 Skip", cbSwipe+"|"+string(feed.Left)+"|"+card.ID),
			tgbotapi.NewInlineKeyboardButtonData("⬆️ Like", cbSwipe+"|"+string(feed.Up)+"|"+card.ID),
			tgbotapi.NewInlineKeyboardButtonData("👉 Pick", cbSwipe+"|"+string(feed.Right)+"|"+card.ID),
		),
	}
	if card.Link != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("📖 Recipe", card.Link)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) sendRetry(chatID int64, err error) {
	b.logger.WithError(err).Info("meal batch not loaded, offering retry")
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", cbRetry+"|")),
	)
	b.replyWithKeyboard(chatID, fmt.Sprintf("❌ *Could not load meals:*\n```\n%s\n```", safeErr(err)), keyboard)
}

func (b *Bot) showSelected(chatID int64, a *app.App) {
	meals := a.Selection().Selected()
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range meals {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ "+truncate(m.Name, 40), cbUnselect+"|"+m.ID),
		))
	}
	b.replyWithKeyboard(chatID, formatSelected(meals), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) unselect(chatID int64, a *app.App, mealID string) {
	if a.Unselect(mealID) == 0 {
		b.reply(chatID, "❓ That meal is not in your selection.")
		return
	}
	b.showSelected(chatID, a)
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, a *app.App) {
	b.reply(chatID, "🧮 *Building your grocery list...*")
	lines, source, err := a.Done(ctx)
	if errors.Is(err, order.ErrEmptySelection) {
		b.reply(chatID, "🛒 Pick at least one meal before finishing.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ *Could not build the list:*\n```\n%s\n```", safeErr(err)))
		return
	}
	b.sendGroceries(chatID, lines, source)
}

func (b *Bot) sendGroceries(chatID int64, lines []grocery.Line, source grocery.Source) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, l := range lines {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+truncate(l.Name, 40), removeData(cbRemove, i, l.Name)),
		))
	}
	b.replyWithKeyboard(chatID, formatGroceries(lines, source), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleAdd(chatID int64, a *app.App, query string) {
	products := a.Catalog().Search(query)
	if len(products) == 0 {
		b.reply(chatID, fmt.Sprintf("🔍 No products match *%s*.", esc(query)))
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		label := fmt.Sprintf("➕ %s (€%.2f)", p.Name, p.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, cbAdd+"|"+p.ID)))
	}
	b.replyWithKeyboard(chatID, "🛍 *Suggested products*", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, a *app.App) {
	o, err := a.Confirm(ctx)
	if errors.Is(err, order.ErrEmptySelection) {
		b.reply(chatID, "🛒 Nothing to order yet. Pick some meals first.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ *Order failed:*\n```\n%s\n```", safeErr(err)))
		return
	}
	b.reply(chatID, formatOrderConfirmed(o))
	b.showTop(ctx, chatID, a)
}

// handleManage lists open orders with cancel buttons.
func (b *Bot) handleManage(chatID int64, a *app.App) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range a.Session().Orders() {
		if o.Canceled {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel #"+o.ID, cbCancel+"|"+o.ID),
		))
	}
	if len(rows) == 0 {
		b.reply(chatID, "📦 No open orders.")
		return
	}
	b.replyWithKeyboard(chatID, "🛠 *Manage orders*", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.WithError(err).Debug("callback not answered")
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	a, _ := b.registry.Get(query.From.ID)
	if !a.Session().LoggedIn() {
		b.reply(chatID, "🔒 Please /login or /register first.")
		return
	}

	action, args := parseCallback(query.Data)
	switch action {
	case cbSwipe:
		if len(args) != 2 {
			return
		}
		b.handleSwipe(ctx, query, a, args[0], args[1])
	case cbRetry:
		err := a.Feed().FetchBatch(ctx)
		switch {
		case errors.Is(err, feed.ErrFetchInFlight):
			b.reply(chatID, "⏳ Already loading, hang on.")
		case err != nil:
			b.sendRetry(chatID, err)
		default:
			b.showTop(ctx, chatID, a)
		}
	case cbRemove, cbRemoveOK, cbRemoveNo:
		if len(args) != 2 {
			return
		}
		b.handleRemove(ctx, chatID, a, action, args[0], args[1])
	case cbAdd:
		if len(args) != 1 {
			return
		}
		line, err := a.AddSuggested(args[0])
		if err != nil {
			b.reply(chatID, "❓ That product is no longer available.")
			return
		}
		b.reply(chatID, fmt.Sprintf("➕ Added *%s*.", esc(line.Name)))
		b.sendGroceries(chatID, a.Groceries().Lines(), a.Groceries().Source())
	case cbCancel:
		if len(args) != 1 {
			return
		}
		if err := a.Cancel(ctx, args[0]); err != nil {
			b.reply(chatID, "❓ Order not found.")
			return
		}
		b.reply(chatID, fmt.Sprintf("🚫 Order *#%s* canceled.", esc(args[0])))
	case cbUnselect:
		if len(args) != 1 {
			return
		}
		b.unselect(chatID, a, args[0])
	default:
		b.logger.WithField("data", query.Data).Debug("unknown callback")
	}
}

func (b *Bot) handleSwipe(ctx context.Context, query *tgbotapi.CallbackQuery, a *app.App, dir, cardID string) {
	chatID := query.Message.Chat.ID
	direction, err := feed.ParseDirection(dir)
	if err != nil {
		return
	}
	res, err := a.Swipe(direction, cardID)
	if errors.Is(err, feed.ErrCardNotFound) {
		b.reply(chatID, "↩️ That card was already swiped.")
		return
	}
	if err != nil {
		b.logger.WithError(err).Warn("swipe failed")
		return
	}

	// Drop the buttons from the swiped card.
	strip := tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(strip); err != nil {
		b.logger.WithError(err).Debug("keyboard not cleared")
	}

	switch {
	case res.Nudge:
		b.reply(chatID, fmt.Sprintf("🎉 That's %d meals, a full week! Tap /done when you're ready, or keep swiping.", a.Selection().Len()))
	case direction == feed.Up && res.Liked:
		b.reply(chatID, fmt.Sprintf("💛 Saved *%s* to your likes.", esc(res.Card.Name)))
	}
	b.showTop(ctx, chatID, a)
}

// findLine resolves a button to the line it was rendered for. The index is
// only a hint: the list may have changed since, and the tag decides.
func findLine(lines []grocery.Line, rawIndex, tag string) (int, bool) {
	if idx, err := strconv.Atoi(rawIndex); err == nil && idx >= 0 && idx < len(lines) && lineTag(lines[idx].Name) == tag {
		return idx, true
	}
	for i, l := range lines {
		if lineTag(l.Name) == tag {
			return i, true
		}
	}
	return -1, false
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, a *app.App, action, rawIndex, tag string) {
	lines := a.Groceries().Lines()
	idx, ok := findLine(lines, rawIndex, tag)
	if !ok {
		b.reply(chatID, "❓ That item is no longer on the list.")
		return
	}
	name := lines[idx].Name

	if action == cbRemove {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Remove", removeData(cbRemoveOK, idx, name)),
			tgbotapi.NewInlineKeyboardButtonData("Keep", removeData(cbRemoveNo, idx, name)),
		))
		b.replyWithKeyboard(chatID, fmt.Sprintf("Remove *%s* from the list?", esc(name)), keyboard)
		return
	}

	confirmer := grocery.ConfirmFunc(func(context.Context, string) (bool, error) {
		return action == cbRemoveOK, nil
	})
	switch err := a.RemoveGrocery(ctx, name, confirmer); {
	case errors.Is(err, grocery.ErrRemovalNotConfirmed):
		b.reply(chatID, fmt.Sprintf("👍 Kept *%s*.", esc(name)))
	case err != nil:
		b.reply(chatID, "❓ That item is no longer on the list.")
	default:
		b.sendGroceries(chatID, a.Groceries().Lines(), a.Groceries().Source())
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	health := metrics.GetSysHealth(b.registry, metrics.CounterFunc(b.watchingCounter()), b.started)
	b.reply(msg.Chat.ID, formatMetrics(health))
	if health.Goroutines > goroutineAlert {
		b.sendAdminAlert(fmt.Sprintf("⚠️ *Goroutine Alert*\n%d goroutines for %d sessions", health.Goroutines, health.Sessions))
	}
}

const goroutineAlert = 1000

// truncate keeps button labels short.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func safeErr(err error) string {
	return strings.ReplaceAll(err.Error(), "`", "'")
}
