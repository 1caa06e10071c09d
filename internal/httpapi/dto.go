package httpapi

import (
	"time"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

type birthdayJSON struct {
	ID                  string    `json:"id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	BirthDate           string    `json:"birth_date"`
	Phone               string    `json:"phone,omitempty"`
	Email               string    `json:"email,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	NotificationEnabled bool      `json:"notification_enabled"`
	NotificationTime    string    `json:"notification_time,omitempty"`
	NotificationTimes   []string  `json:"notification_times"`
	Timezone            string    `json:"timezone,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toBirthdayJSON(r domain.BirthdayRecord) birthdayJSON {
	times := r.NotificationTimes
	if times == nil {
		times = []string{}
	}
	return birthdayJSON{
		ID:                  r.ID,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		BirthDate:           r.BirthDate,
		Phone:               r.Phone,
		Email:               r.Email,
		Notes:               r.Notes,
		NotificationEnabled: r.NotificationEnabled,
		NotificationTime:    r.NotificationTime,
		NotificationTimes:   times,
		Timezone:            r.Timezone.String(),
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// birthdayInput is the create/replace body. A nil NotificationEnabled means true on
// create and unchanged on update.
type birthdayInput struct {
	FirstName           string   `json:"first_name"`
	LastName            string   `json:"last_name"`
	BirthDate           string   `json:"birth_date"`
	Phone               string   `json:"phone"`
	Email               string   `json:"email"`
	Notes               string   `json:"notes"`
	NotificationEnabled *bool    `json:"notification_enabled"`
	NotificationTime    string   `json:"notification_time"`
	NotificationTimes   []string `json:"notification_times"`
	Timezone            string   `json:"timezone"`
}

// apply copies the input onto r. A timezone of "auto" is pinned to detectedTZ when
// the client reported a loadable zone.
func (in birthdayInput) apply(r *domain.BirthdayRecord, detectedTZ string) {
	r.FirstName = in.FirstName
	r.LastName = in.LastName
	r.BirthDate = in.BirthDate
	r.Phone = in.Phone
	r.Email = in.Email
	r.Notes = in.Notes
	if in.NotificationEnabled != nil {
		r.NotificationEnabled = *in.NotificationEnabled
	}
	r.NotificationTime = in.NotificationTime
	r.NotificationTimes = in.NotificationTimes

	tz := domain.ParseTimezone(in.Timezone)
	if tz.Mode == domain.TZAuto && detectedTZ != "" {
		if zone, err := domain.ValidateTZ(detectedTZ); err == nil {
			tz = domain.Explicit(zone)
		}
	}
	r.Timezone = tz
}

type upcomingJSON struct {
	Birthday  birthdayJSON `json:"birthday"`
	Date      string       `json:"date"`
	DaysUntil int          `json:"days_until"`
	Turning   int          `json:"turning"`
	Timezone  string       `json:"timezone"`
}

func toUpcomingJSON(list []domain.Upcoming) []upcomingJSON {
	out := make([]upcomingJSON, 0, len(list))
	for _, u := range list {
		out = append(out, upcomingJSON{
			Birthday:  toBirthdayJSON(u.Record),
			Date:      domain.FormatDate(u.Date),
			DaysUntil: u.DaysUntil,
			Turning:   u.Turning,
			Timezone:  u.Timezone,
		})
	}
	return out
}

type settingsJSON struct {
	Timezone       string   `json:"timezone"`
	DefaultTime    string   `json:"default_notification_time"`
	DefaultTimes   []string `json:"default_notification_times"`
	TelegramChatID int64    `json:"telegram_chat_id,omitempty"`
	DisplayName    string   `json:"display_name,omitempty"`
	Language       string   `json:"language,omitempty"`
}

func toSettingsJSON(us domain.UserSettings) settingsJSON {
	times := us.DefaultTimes
	if times == nil {
		times = []string{}
	}
	return settingsJSON{
		Timezone:       us.Timezone.String(),
		DefaultTime:    us.DefaultTime,
		DefaultTimes:   times,
		TelegramChatID: us.TelegramChatID,
		DisplayName:    us.DisplayName,
		Language:       us.Language,
	}
}

type evaluationJSON struct {
	BirthdayID    string   `json:"birthday_id"`
	Name          string   `json:"name"`
	Due           bool     `json:"due"`
	BirthdayToday bool     `json:"birthday_today"`
	MatchedTime   string   `json:"matched_time,omitempty"`
	LocalTime     string   `json:"local_time"`
	Times         []string `json:"times"`
	Timezone      string   `json:"timezone"`
	TZFallback    bool     `json:"tz_fallback"`
	Age           int      `json:"age,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func toEvaluationJSON(ev domain.Evaluation) evaluationJSON {
	out := evaluationJSON{
		BirthdayID:    ev.Record.ID,
		Name:          ev.Record.FullName(),
		Due:           ev.Due,
		BirthdayToday: ev.BirthdayToday,
		MatchedTime:   ev.MatchedTime,
		LocalTime:     ev.LocalTime.Format(time.RFC3339),
		Times:         ev.Times,
		Timezone:      ev.Timezone,
		TZFallback:    ev.TZFallback,
		Age:           ev.Age,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}
