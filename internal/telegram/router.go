package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingTZ   = "await_tz_text"
	pendingTime = "await_time_text"
)

// botAPI is the part of tgbotapi.BotAPI the router uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Planner lists upcoming birthdays for a user. scheduler.Scheduler implements it.
type Planner interface {
	Upcoming(ctx context.Context, userID string, now time.Time, days int) ([]domain.Upcoming, error)
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot     botAPI
	log     *zap.Logger
	repo    store.Repo
	planner Planner
	now     func() time.Time
	state   map[int64]string // chatID -> pending state
	mu      sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot botAPI, log *zap.Logger, repo store.Repo, planner Planner) *Router {
	return &Router{
		bot:     bot,
		log:     log,
		repo:    repo,
		planner: planner,
		now:     time.Now,
		state:   make(map[int64]string),
	}
}

// SetPlanner attaches the planner after construction.
func (r *Router) SetPlanner(p Planner) { r.planner = p }

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
			r.handleStart(chatID)
		case strings.HasPrefix(text, "/today"):
			r.handleUpcoming(ctx, chatID, 0)
		case strings.HasPrefix(text, "/upcoming"):
			r.handleUpcoming(ctx, chatID, upcomingDays)
		case strings.HasPrefix(text, "/status"):
			r.handleStatus(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/stop"):
			r.handleStop(ctx, chatID)
		default:
			// Free-form text used in "Custom" flows (tz/time)
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case data == "set_tz":
			r.askTZPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, data, cb.ID)

		case data == "set_time":
			r.askTimePresets(chatID, cb.ID)
		case strings.HasPrefix(data, "time:"):
			r.handleTimeCallback(ctx, chatID, data, cb.ID)

		default:
			// Unknown callback: ignore silently
			_ = r.answerCallback(cb.ID, "")
		}
	}
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
