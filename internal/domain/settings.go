package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Setting keys stored as sparse per-user rows.
const (
	KeyTimezone                 = "timezone"
	KeyDefaultNotificationTime  = "default_notification_time"
	KeyDefaultNotificationTimes = "default_notification_times"
	KeyTelegramChatID           = "telegram_chat_id"
	KeyDisplayName              = "display_name"
	KeyLanguage                 = "language"
)

// SettingRow is one stored (user, key, value) triple.
type SettingRow struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// UserSettings is the typed view of a user's setting rows.
type UserSettings struct {
	UserID         string
	Timezone       Timezone
	DefaultTime    string   // normalized HH:MM:SS or ""
	DefaultTimes   []string // normalized
	TelegramChatID int64
	DisplayName    string
	Language       string
}

// GlobalTimes returns the user's default times, multi-value list first.
func (s UserSettings) GlobalTimes() []string {
	out := make([]string, 0, len(s.DefaultTimes)+1)
	for _, t := range s.DefaultTimes {
		out = appendUnique(out, t)
	}
	if s.DefaultTime != "" {
		out = appendUnique(out, s.DefaultTime)
	}
	return out
}

// FoldSettings builds one UserSettings per user from sparse rows.
// Rows are applied oldest first so the latest write for a key wins; rows with equal
// timestamps keep their input order. Malformed values are reported in problems and
// leave the field at its zero value.
func FoldSettings(rows []SettingRow) (settings map[string]UserSettings, problems []error) {
	sorted := make([]SettingRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
	})

	settings = make(map[string]UserSettings)
	for _, row := range sorted {
		s := settings[row.UserID]
		s.UserID = row.UserID
		if err := s.apply(row.Key, row.Value); err != nil {
			problems = append(problems, fmt.Errorf("user %s key %s: %w", row.UserID, row.Key, err))
		}
		settings[row.UserID] = s
	}
	return settings, problems
}

func (s *UserSettings) apply(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyTimezone:
		s.Timezone = ParseTimezone(value)
	case KeyDefaultNotificationTime:
		s.DefaultTime = ""
		if value == "" {
			return nil
		}
		n, err := NormalizeClock(value)
		if err != nil {
			return err
		}
		s.DefaultTime = n
	case KeyDefaultNotificationTimes:
		s.DefaultTimes = nil
		if value == "" {
			return nil
		}
		var raw []string
		if err := json.Unmarshal([]byte(value), &raw); err != nil {
			return fmt.Errorf("decode times: %w", err)
		}
		var firstErr error
		for _, t := range raw {
			n, err := NormalizeClock(t)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			s.DefaultTimes = appendUnique(s.DefaultTimes, n)
		}
		return firstErr
	case KeyTelegramChatID:
		s.TelegramChatID = 0
		if value == "" {
			return nil
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("chat id: %w", err)
		}
		s.TelegramChatID = id
	case KeyDisplayName:
		s.DisplayName = value
	case KeyLanguage:
		s.Language = value
	}
	return nil
}

// SettingsPatch holds optional updates to a user's settings; nil fields are untouched.
type SettingsPatch struct {
	Timezone       *string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	DefaultTime    *string  `json:"default_notification_time,omitempty" yaml:"default_notification_time,omitempty"`
	DefaultTimes   []string `json:"default_notification_times,omitempty" yaml:"default_notification_times,omitempty"`
	TelegramChatID *string  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
	DisplayName    *string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Language       *string  `json:"language,omitempty" yaml:"language,omitempty"`
}

// Rows validates the patch and converts it into key/value pairs ready to store.
func (p SettingsPatch) Rows() (map[string]string, error) {
	out := make(map[string]string)
	if p.Timezone != nil {
		tz := ParseTimezone(*p.Timezone)
		if tz.Mode == TZExplicit {
			zone, err := ValidateTZ(tz.Zone)
			if err != nil {
				return nil, fmt.Errorf("timezone %q: %w", tz.Zone, err)
			}
			tz.Zone = zone
		}
		out[KeyTimezone] = tz.String()
	}
	if p.DefaultTime != nil {
		v := ""
		if strings.TrimSpace(*p.DefaultTime) != "" {
			n, err := NormalizeClock(*p.DefaultTime)
			if err != nil {
				return nil, err
			}
			v = n
		}
		out[KeyDefaultNotificationTime] = v
	}
	if p.DefaultTimes != nil {
		if len(p.DefaultTimes) > MaxNotificationTimes {
			return nil, fmt.Errorf("at most %d default notification times", MaxNotificationTimes)
		}
		times := make([]string, 0, len(p.DefaultTimes))
		for _, t := range p.DefaultTimes {
			n, err := NormalizeClock(t)
			if err != nil {
				return nil, err
			}
			times = appendUnique(times, n)
		}
		b, err := json.Marshal(times)
		if err != nil {
			return nil, err
		}
		out[KeyDefaultNotificationTimes] = string(b)
	}
	if p.TelegramChatID != nil {
		v := strings.TrimSpace(*p.TelegramChatID)
		if v != "" {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return nil, fmt.Errorf("telegram chat id %q: %w", v, err)
			}
		}
		out[KeyTelegramChatID] = v
	}
	if p.DisplayName != nil {
		out[KeyDisplayName] = strings.TrimSpace(*p.DisplayName)
	}
	if p.Language != nil {
		out[KeyLanguage] = strings.TrimSpace(*p.Language)
	}
	return out, nil
}
