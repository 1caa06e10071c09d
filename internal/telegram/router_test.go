package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
)

type fakeBot struct {
	sent      []tgbotapi.Chattable
	callbacks int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.callbacks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	}
	return msg.Text
}

type fakePlanner struct{ list []domain.Upcoming }

func (p fakePlanner) Upcoming(context.Context, string, time.Time, int) ([]domain.Upcoming, error) {
	return p.list, nil
}

func newTestRouter(t *testing.T, planner Planner) (*Router, *fakeBot, store.Repo) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tg.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	bot := &fakeBot{}
	return NewRouter(bot, zap.NewNop(), repo, planner), bot, repo
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func link(t *testing.T, repo store.Repo, userID string, chatID string) {
	t.Helper()
	if err := repo.PutSettings(context.Background(), userID, map[string]string{domain.KeyTelegramChatID: chatID}); err != nil {
		t.Fatalf("link: %v", err)
	}
}

func TestRouter_StartShowsChatID(t *testing.T) {
	r, bot, _ := newTestRouter(t, fakePlanner{})
	r.HandleUpdate(context.Background(), textUpdate(4242, "/start"))
	if !strings.Contains(bot.lastText(t), "4242") {
		t.Fatalf("start text should include chat id: %q", bot.lastText(t))
	}
}

func TestRouter_UnlinkedChat(t *testing.T) {
	r, bot, _ := newTestRouter(t, fakePlanner{})
	r.HandleUpdate(context.Background(), textUpdate(7, "/today"))
	if !strings.Contains(bot.lastText(t), "not linked") {
		t.Fatalf("want linking hint, got %q", bot.lastText(t))
	}
}

func TestRouter_Today(t *testing.T) {
	planner := fakePlanner{list: []domain.Upcoming{
		{Record: domain.BirthdayRecord{FirstName: "Anna", LastName: "Nowak"}, DaysUntil: 0, Turning: 35},
		{Record: domain.BirthdayRecord{FirstName: "Jan", LastName: "Kowal"}, DaysUntil: 3, Turning: 40},
	}}
	r, bot, repo := newTestRouter(t, planner)
	link(t, repo, "u1", "7")

	r.HandleUpdate(context.Background(), textUpdate(7, "/today"))
	text := bot.lastText(t)
	if !strings.Contains(text, "Anna Nowak turns 35 today") || strings.Contains(text, "Jan") {
		t.Fatalf("unexpected today text %q", text)
	}

	r.HandleUpdate(context.Background(), textUpdate(7, "/upcoming"))
	if !strings.Contains(bot.lastText(t), "Jan Kowal turns 40 in 3 days") {
		t.Fatalf("unexpected upcoming text %q", bot.lastText(t))
	}
}

func TestRouter_CustomTimezoneFlow(t *testing.T) {
	r, bot, repo := newTestRouter(t, fakePlanner{})
	link(t, repo, "u1", "9")
	ctx := context.Background()

	r.HandleUpdate(ctx, callbackUpdate(9, "tz:custom"))
	if bot.callbacks != 1 {
		t.Fatalf("callback not answered")
	}
	r.HandleUpdate(ctx, textUpdate(9, "Mars/Phobos"))
	if !strings.Contains(bot.lastText(t), "Invalid timezone") {
		t.Fatalf("want rejection, got %q", bot.lastText(t))
	}

	r.HandleUpdate(ctx, callbackUpdate(9, "tz:custom"))
	r.HandleUpdate(ctx, textUpdate(9, "Asia/Tokyo"))
	if !strings.Contains(bot.lastText(t), "Asia/Tokyo") {
		t.Fatalf("unexpected reply %q", bot.lastText(t))
	}

	rows, _ := repo.ListSettings(ctx, "u1")
	settings, _ := domain.FoldSettings(rows)
	if settings["u1"].Timezone.Zone != "Asia/Tokyo" {
		t.Fatalf("timezone not stored: %+v", settings["u1"])
	}
}

func TestRouter_TimePreset(t *testing.T) {
	r, _, repo := newTestRouter(t, fakePlanner{})
	link(t, repo, "u1", "9")
	ctx := context.Background()

	r.HandleUpdate(ctx, callbackUpdate(9, "time:09:00,18:00"))

	rows, _ := repo.ListSettings(ctx, "u1")
	settings, _ := domain.FoldSettings(rows)
	got := settings["u1"].DefaultTimes
	if len(got) != 2 || got[0] != "09:00:00" || got[1] != "18:00:00" {
		t.Fatalf("default times not stored: %v", got)
	}
}

func TestRouter_StopUnlinks(t *testing.T) {
	r, _, repo := newTestRouter(t, fakePlanner{})
	link(t, repo, "u1", "9")
	ctx := context.Background()

	r.HandleUpdate(ctx, textUpdate(9, "/stop"))
	if _, err := repo.FindUserByTelegramChat(ctx, 9); err == nil {
		t.Fatalf("chat still linked")
	}
}
