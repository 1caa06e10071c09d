package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

// UI texts in English
const (
	startFmt = "👋 I send birthday reminders.\n\n" +
		"Your chat ID is %d. Paste it into the Telegram field of your profile to link this chat.\n\n" +
		"Commands: /today, /upcoming, /status, /settings, /stop"
	notLinkedFmt = "This chat is not linked yet. Add chat ID %d to the Telegram field of your profile."
	statusTitle  = "🧾 Your current settings:"
	statusFmt    = "• TZ: %s\n• Default times: %s\n• Birthdays: %d (%d with reminders)\n"
)

// formatUpcoming renders an upcoming list; days == 0 means "today only".
func formatUpcoming(list []domain.Upcoming, days int) string {
	var b strings.Builder
	if days == 0 {
		b.WriteString("🎂 Today:\n")
	} else {
		fmt.Fprintf(&b, "📅 Next %d days:\n", days)
	}
	n := 0
	for _, u := range list {
		if u.DaysUntil > days {
			continue
		}
		n++
		switch u.DaysUntil {
		case 0:
			fmt.Fprintf(&b, "• %s turns %d today\n", u.Record.FullName(), u.Turning)
		case 1:
			fmt.Fprintf(&b, "• %s turns %d tomorrow (%s)\n", u.Record.FullName(), u.Turning, u.Date.Format("02.01"))
		default:
			fmt.Fprintf(&b, "• %s turns %d in %d days (%s)\n", u.Record.FullName(), u.Turning, u.DaysUntil, u.Date.Format("02.01"))
		}
	}
	if n == 0 {
		b.WriteString("Nobody. 🎈")
	}
	return strings.TrimRight(b.String(), "\n")
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/today"),
			tgbotapi.NewKeyboardButton("/upcoming"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/status"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
	)
}

// Inline keyboards
func settingsInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "set_tz"),
			tgbotapi.NewInlineKeyboardButtonData("🕘 Default time", "set_time"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Warsaw", "tz:Europe/Warsaw"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/Kyiv", "tz:Europe/Kyiv"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/London", "tz:Europe/London"),
			tgbotapi.NewInlineKeyboardButtonData("America/New_York", "tz:America/New_York"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("UTC only", "tz:disabled"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}

func timePresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("08:00", "time:08:00"),
			tgbotapi.NewInlineKeyboardButtonData("09:00", "time:09:00"),
			tgbotapi.NewInlineKeyboardButtonData("10:00", "time:10:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("09:00 + 18:00", "time:09:00,18:00"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "time:custom"),
		),
	)
}
