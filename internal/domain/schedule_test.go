package domain

import (
	"reflect"
	"testing"
	"time"
)

// helper: build a time in given tz and return its UTC
func mustLocalUTC(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	lt := time.Date(y, m, d, hh, mm, 0, 0, loc)
	return lt.UTC()
}

func warsawRecord() BirthdayRecord {
	return BirthdayRecord{
		ID:                  "r1",
		UserID:              "u1",
		FirstName:           "Anna",
		LastName:            "Nowak",
		BirthDate:           "1990-05-05",
		NotificationEnabled: true,
		NotificationTimes:   []string{"09:00"},
		Timezone:            Explicit("Europe/Warsaw"),
	}
}

func TestEvaluateRecord_DueAtLocalTime(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0)
	ev, err := EvaluateRecord(now, warsawRecord(), UserSettings{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ev.Due {
		t.Fatalf("want due at 09:00 Warsaw, got %+v", ev)
	}
	if ev.MatchedTime != "09:00:00" {
		t.Fatalf("want matched 09:00:00, got %s", ev.MatchedTime)
	}
	if ev.Timezone != "Europe/Warsaw" {
		t.Fatalf("want Europe/Warsaw, got %s", ev.Timezone)
	}
	if ev.Age != 35 {
		t.Fatalf("want age 35, got %d", ev.Age)
	}
}

func TestEvaluateRecord_OneMinuteOff(t *testing.T) {
	at := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0)
	for _, now := range []time.Time{at.Add(-time.Minute), at.Add(time.Minute)} {
		ev, err := EvaluateRecord(now, warsawRecord(), UserSettings{})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if ev.Due {
			t.Fatalf("want not due at %s", now)
		}
		if !ev.BirthdayToday {
			t.Fatalf("want birthday today at %s", now)
		}
	}
}

func TestEvaluateRecord_SecondsIgnored(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0).Add(42 * time.Second)
	ev, _ := EvaluateRecord(now, warsawRecord(), UserSettings{})
	if !ev.Due {
		t.Fatalf("want due within the matching minute")
	}
}

func TestEvaluateRecord_DisabledForcesUTC(t *testing.T) {
	r := BirthdayRecord{
		ID:                  "r2",
		BirthDate:           "1985-03-10",
		NotificationEnabled: true,
		NotificationTime:    "09:00",
		Timezone:            ParseTimezone("disabled"),
	}
	us := UserSettings{Timezone: Explicit("America/New_York")}
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	ev, err := EvaluateRecord(now, r, us)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ev.Due || ev.Timezone != "UTC" {
		t.Fatalf("want due in UTC, got due=%v tz=%s", ev.Due, ev.Timezone)
	}
}

func TestEvaluateRecord_UnknownZoneFallsBackToUTC(t *testing.T) {
	r := BirthdayRecord{
		ID:                  "r3",
		BirthDate:           "2000-07-01",
		NotificationEnabled: true,
		NotificationTimes:   []string{"12:30"},
		Timezone:            ParseTimezone("Mars/Phobos"),
	}
	now := time.Date(2025, time.July, 1, 12, 30, 0, 0, time.UTC)

	ev, err := EvaluateRecord(now, r, UserSettings{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ev.TZFallback || ev.Timezone != "UTC" {
		t.Fatalf("want UTC fallback, got tz=%s fallback=%v", ev.Timezone, ev.TZFallback)
	}
	if !ev.Due {
		t.Fatalf("want due in UTC fallback")
	}
}

func TestEvaluateRecord_NotBirthdayToday(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 6, 9, 0)
	ev, err := EvaluateRecord(now, warsawRecord(), UserSettings{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Due || ev.BirthdayToday {
		t.Fatalf("want not due on another day, got %+v", ev)
	}
}

func TestEvaluateRecord_DateBoundaryFollowsTimezone(t *testing.T) {
	// 23:30 UTC on May 4 is already May 5 in Tokyo.
	r := warsawRecord()
	r.Timezone = Explicit("Asia/Tokyo")
	r.NotificationTimes = []string{"08:30"}
	now := time.Date(2025, time.May, 4, 23, 30, 0, 0, time.UTC)

	ev, _ := EvaluateRecord(now, r, UserSettings{})
	if !ev.Due {
		t.Fatalf("want due in Tokyo, local %s", ev.LocalTime)
	}
}

func TestEvaluateRecord_EmptyTimeSetNeverFires(t *testing.T) {
	r := warsawRecord()
	r.NotificationTimes = nil
	start := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 0, 0)
	for m := 0; m < 24*60; m++ {
		ev, _ := EvaluateRecord(start.Add(time.Duration(m)*time.Minute), r, UserSettings{})
		if ev.Due {
			t.Fatalf("record without times fired at minute %d", m)
		}
	}
}

func TestEvaluateRecord_UserTimezoneFallback(t *testing.T) {
	r := warsawRecord()
	r.Timezone = ParseTimezone("auto")
	us := UserSettings{Timezone: Explicit("America/New_York")}
	now := mustLocalUTC(t, "America/New_York", 2025, time.May, 5, 9, 0)

	ev, _ := EvaluateRecord(now, r, us)
	if !ev.Due || ev.Timezone != "America/New_York" {
		t.Fatalf("want due in user timezone, got due=%v tz=%s", ev.Due, ev.Timezone)
	}
}

func TestEvaluateRecord_DSTOffsets(t *testing.T) {
	r := warsawRecord()
	r.BirthDate = "1990-01-15"
	winter := time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC) // CET, UTC+1
	if ev, _ := EvaluateRecord(winter, r, UserSettings{}); !ev.Due {
		t.Fatalf("want due at 08:00 UTC in winter")
	}

	r.BirthDate = "1990-07-15"
	summer := time.Date(2025, time.July, 15, 7, 0, 0, 0, time.UTC) // CEST, UTC+2
	if ev, _ := EvaluateRecord(summer, r, UserSettings{}); !ev.Due {
		t.Fatalf("want due at 07:00 UTC in summer")
	}
}

func TestEvaluateRecord_Idempotent(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0)
	a, _ := EvaluateRecord(now, warsawRecord(), UserSettings{})
	b, _ := EvaluateRecord(now, warsawRecord(), UserSettings{})
	if a.Due != b.Due || a.MatchedTime != b.MatchedTime || a.Timezone != b.Timezone {
		t.Fatalf("evaluation not stable: %+v vs %+v", a, b)
	}
}

func TestEffectiveTimes_MergeAndDedup(t *testing.T) {
	r := BirthdayRecord{
		NotificationTimes: []string{"09:00", "18:30:00"},
		NotificationTime:  "09:00:00",
	}
	us := UserSettings{DefaultTimes: []string{"18:30:00", "07:15:00"}, DefaultTime: "9:00"}

	got := EffectiveTimes(r, us)
	want := []string{"09:00:00", "18:30:00", "07:15:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestEffectiveTimes_SkipsGarbage(t *testing.T) {
	r := BirthdayRecord{NotificationTimes: []string{"nope", "25:00", "10:05"}}
	got := EffectiveTimes(r, UserSettings{})
	if !reflect.DeepEqual(got, []string{"10:05:00"}) {
		t.Fatalf("got %v", got)
	}
}

func TestEvaluate_IsolatesMalformedRecord(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0)
	bad := warsawRecord()
	bad.ID = "bad"
	bad.BirthDate = "05/05/1990"
	disabled := warsawRecord()
	disabled.ID = "off"
	disabled.NotificationEnabled = false

	evs := NewEvaluator(nil).Evaluate(now, []BirthdayRecord{bad, warsawRecord(), disabled}, nil)
	if len(evs) != 2 {
		t.Fatalf("want 2 evaluations (disabled skipped), got %d", len(evs))
	}
	if evs[0].Due || evs[0].Err == nil {
		t.Fatalf("want malformed record not due with error, got %+v", evs[0])
	}
	due := Due(evs)
	if len(due) != 1 || due[0].Record.ID != "r1" {
		t.Fatalf("want r1 due, got %+v", due)
	}
}

func TestEvaluate_GlobalAndRecordTimeFireOnce(t *testing.T) {
	now := mustLocalUTC(t, "Europe/Warsaw", 2025, time.May, 5, 9, 0)
	settings := map[string]UserSettings{"u1": {UserID: "u1", DefaultTimes: []string{"09:00:00"}}}
	evs := NewEvaluator(nil).Evaluate(now, []BirthdayRecord{warsawRecord()}, settings)
	if len(Due(evs)) != 1 {
		t.Fatalf("want exactly one due event, got %d", len(Due(evs)))
	}
	if len(evs[0].Times) != 1 {
		t.Fatalf("want deduplicated time set, got %v", evs[0].Times)
	}
}

func TestUpcomingBirthdays(t *testing.T) {
	now := time.Date(2025, time.December, 28, 12, 0, 0, 0, time.UTC)
	recs := []BirthdayRecord{
		{ID: "a", FirstName: "A", LastName: "A", BirthDate: "1990-01-02"},
		{ID: "b", FirstName: "B", LastName: "B", BirthDate: "1980-12-28"},
		{ID: "c", FirstName: "C", LastName: "C", BirthDate: "1970-06-01"},
		{ID: "d", FirstName: "D", LastName: "D", BirthDate: "garbage"},
	}
	got := UpcomingBirthdays(now, recs, nil, 7)
	if len(got) != 2 {
		t.Fatalf("want 2 upcoming, got %d", len(got))
	}
	if got[0].Record.ID != "b" || got[0].DaysUntil != 0 || got[0].Turning != 45 {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[1].Record.ID != "a" || got[1].DaysUntil != 5 || got[1].Turning != 36 {
		t.Fatalf("unexpected second entry %+v", got[1])
	}
}

func TestUpcomingBirthdays_LeapDay(t *testing.T) {
	now := time.Date(2025, time.February, 20, 12, 0, 0, 0, time.UTC)
	recs := []BirthdayRecord{{ID: "leap", BirthDate: "2000-02-29"}}
	if got := UpcomingBirthdays(now, recs, nil, 30); len(got) != 0 {
		t.Fatalf("no Feb 29 in 2025, got %+v", got)
	}
	got := UpcomingBirthdays(now, recs, nil, 1200)
	if len(got) != 1 || got[0].Date.Year() != 2028 {
		t.Fatalf("want next leap day in 2028, got %+v", got)
	}
}
