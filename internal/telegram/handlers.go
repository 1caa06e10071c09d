package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
)

const upcomingDays = 30

// linkedUser resolves the chat to the user who saved this chat id in their settings.
// It replies with linking instructions when the chat is not linked.
func (r *Router) linkedUser(ctx context.Context, chatID int64) (string, bool) {
	userID, err := r.repo.FindUserByTelegramChat(ctx, chatID)
	if err == nil {
		return userID, true
	}
	if !errors.Is(err, store.ErrNotFound) {
		r.log.Error("find user by chat failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Could not read your profile. Please try again later.")
		return "", false
	}
	r.sendText(chatID, fmt.Sprintf(notLinkedFmt, chatID))
	return "", false
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// --- Core commands ---

func (r *Router) handleStart(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(startFmt, chatID))
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleUpcoming(ctx context.Context, chatID int64, days int) {
	userID, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	list, err := r.planner.Upcoming(ctx, userID, r.now(), days)
	if err != nil {
		r.log.Error("upcoming failed", zap.String("user_id", userID), zap.Error(err))
		r.sendText(chatID, "Error reading birthdays.")
		return
	}
	r.sendText(chatID, formatUpcoming(list, days))
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	userID, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	rows, err := r.repo.ListSettings(ctx, userID)
	if err != nil {
		r.log.Error("list settings failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}
	records, err := r.repo.ListBirthdays(ctx, userID)
	if err != nil {
		r.log.Error("list birthdays failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}
	settings, _ := domain.FoldSettings(rows)
	us := settings[userID]

	enabled := 0
	for _, rec := range records {
		if rec.NotificationEnabled {
			enabled++
		}
	}
	tz := us.Timezone.String()
	if tz == "" {
		tz = "UTC"
	}
	times := "—"
	if g := us.GlobalTimes(); len(g) > 0 {
		short := make([]string, len(g))
		for i, t := range g {
			short[i] = domain.ShortClock(t)
		}
		times = strings.Join(short, ", ")
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s\n\n"+statusFmt, statusTitle, tz, times, len(records), enabled))
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	if _, ok := r.linkedUser(ctx, chatID); !ok {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "What do you want to configure?")
	msg.ReplyMarkup = settingsInlineKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleStop(ctx context.Context, chatID int64) {
	userID, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	if err := r.repo.PutSettings(ctx, userID, map[string]string{domain.KeyTelegramChatID: ""}); err != nil {
		r.log.Error("unlink failed", zap.Error(err))
		r.sendText(chatID, "Failed to unlink this chat.")
		return
	}
	r.sendText(chatID, "This chat will no longer receive reminders. Link it again from your profile any time.")
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingTZ:
		r.clearPending(chatID)
		r.applyTZ(ctx, chatID, text)
	case pendingTime:
		r.clearPending(chatID)
		r.applyTime(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}

// --- Timezone flow ---

func (r *Router) askTZPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
	msg.ReplyMarkup = tzPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "tz:custom" {
		r.sendText(chatID, "Enter timezone (e.g., Europe/Warsaw):")
		r.setPending(chatID, pendingTZ)
		return
	}
	r.applyTZ(ctx, chatID, strings.TrimPrefix(data, "tz:"))
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, value string) {
	userID, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	kv, err := domain.SettingsPatch{Timezone: &value}.Rows()
	if err != nil {
		r.sendText(chatID, "Invalid timezone. Example: Europe/Warsaw")
		return
	}
	if err := r.repo.PutSettings(ctx, userID, kv); err != nil {
		r.log.Error("update timezone failed", zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+kv[domain.KeyTimezone])
}

// --- Default notification time flow ---

func (r *Router) askTimePresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "When should reminders arrive by default?")
	msg.ReplyMarkup = timePresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleTimeCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "time:custom" {
		r.sendText(chatID, "Enter one or more times as HH:MM, separated by commas (e.g., 09:00, 18:30):")
		r.setPending(chatID, pendingTime)
		return
	}
	r.applyTime(ctx, chatID, strings.TrimPrefix(data, "time:"))
}

func (r *Router) applyTime(ctx context.Context, chatID int64, value string) {
	userID, ok := r.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	var times []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			times = append(times, p)
		}
	}
	kv, err := domain.SettingsPatch{DefaultTimes: times}.Rows()
	if err != nil || len(times) == 0 {
		r.sendText(chatID, "Invalid time. Example: 09:00, 18:30 (up to "+strconv.Itoa(domain.MaxNotificationTimes)+")")
		return
	}
	if err := r.repo.PutSettings(ctx, userID, kv); err != nil {
		r.log.Error("update default times failed", zap.Error(err))
		r.sendText(chatID, "Could not save notification time.")
		return
	}
	r.sendText(chatID, "Default notification times updated: "+strings.Join(times, ", "))
}
