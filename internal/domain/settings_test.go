package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestFoldSettings(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []SettingRow{
		{UserID: "u1", Key: KeyTimezone, Value: "Asia/Tokyo", UpdatedAt: t0.Add(2 * time.Hour)},
		{UserID: "u1", Key: KeyTimezone, Value: "Europe/Warsaw", UpdatedAt: t0},
		{UserID: "u1", Key: KeyDefaultNotificationTimes, Value: `["09:00","9:00:00","18:00"]`, UpdatedAt: t0},
		{UserID: "u1", Key: KeyDefaultNotificationTime, Value: "07:45", UpdatedAt: t0},
		{UserID: "u1", Key: KeyTelegramChatID, Value: "123456", UpdatedAt: t0},
		{UserID: "u2", Key: KeyTimezone, Value: "disabled", UpdatedAt: t0},
		{UserID: "u2", Key: KeyTelegramChatID, Value: "not-a-number", UpdatedAt: t0},
		{UserID: "u2", Key: "theme", Value: "dark", UpdatedAt: t0},
	}

	got, problems := FoldSettings(rows)
	if len(problems) != 1 {
		t.Fatalf("want 1 problem, got %v", problems)
	}

	u1 := got["u1"]
	if u1.Timezone.Zone != "Asia/Tokyo" {
		t.Fatalf("want latest timezone, got %+v", u1.Timezone)
	}
	if !reflect.DeepEqual(u1.DefaultTimes, []string{"09:00:00", "18:00:00"}) {
		t.Fatalf("default times: %v", u1.DefaultTimes)
	}
	if u1.TelegramChatID != 123456 {
		t.Fatalf("chat id: %d", u1.TelegramChatID)
	}
	if !reflect.DeepEqual(u1.GlobalTimes(), []string{"09:00:00", "18:00:00", "07:45:00"}) {
		t.Fatalf("global times: %v", u1.GlobalTimes())
	}

	u2 := got["u2"]
	if u2.Timezone.Mode != TZDisabled || u2.TelegramChatID != 0 {
		t.Fatalf("u2: %+v", u2)
	}
}

func TestSettingsPatchRows(t *testing.T) {
	tz := "Europe/Warsaw"
	dt := "9:30"
	chat := " 42 "
	rows, err := SettingsPatch{
		Timezone:       &tz,
		DefaultTime:    &dt,
		DefaultTimes:   []string{"08:00", "08:00:00"},
		TelegramChatID: &chat,
	}.Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := map[string]string{
		KeyTimezone:                 "Europe/Warsaw",
		KeyDefaultNotificationTime:  "09:30:00",
		KeyDefaultNotificationTimes: `["08:00:00"]`,
		KeyTelegramChatID:           "42",
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}

	bad := "Mars/Phobos"
	if _, err := (SettingsPatch{Timezone: &bad}).Rows(); err == nil {
		t.Fatalf("want error for unknown timezone")
	}
	auto := "auto"
	rows, err = SettingsPatch{Timezone: &auto}.Rows()
	if err != nil || rows[KeyTimezone] != "auto" {
		t.Fatalf("auto sentinel: %v %v", rows, err)
	}
}
