package domain

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Evaluation is the outcome of checking one record against an instant.
type Evaluation struct {
	Record        BirthdayRecord
	Due           bool
	BirthdayToday bool
	MatchedTime   string    // HH:MM:SS, set only when Due
	LocalTime     time.Time // the instant projected into Timezone
	Times         []string  // effective notification-time set
	Timezone      string    // IANA name of the location used
	TZFallback    bool      // an explicit zone failed to load and UTC was used
	Age           int       // years turning this calendar year in Timezone
	Err           error
}

// Evaluator decides which records fire at a given minute. It holds no state besides
// its logger and is safe for concurrent use.
type Evaluator struct {
	log *zap.Logger
}

func NewEvaluator(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log}
}

// Evaluate checks every enabled record in the batch. A malformed record is reported
// as not due with Err set and does not affect the others.
func (e *Evaluator) Evaluate(now time.Time, records []BirthdayRecord, settings map[string]UserSettings) []Evaluation {
	out := make([]Evaluation, 0, len(records))
	for _, r := range records {
		if !r.NotificationEnabled {
			continue
		}
		ev, err := EvaluateRecord(now, r, settings[r.UserID])
		if err != nil {
			e.log.Warn("skipping malformed birthday record",
				zap.String("record_id", r.ID),
				zap.String("user_id", r.UserID),
				zap.Error(err),
			)
		}
		if ev.TZFallback {
			e.log.Warn("unknown timezone, evaluating in UTC",
				zap.String("record_id", r.ID),
				zap.String("record_tz", r.Timezone.String()),
				zap.String("user_tz", settings[r.UserID].Timezone.String()),
			)
		}
		out = append(out, ev)
	}
	return out
}

// Due filters evaluations down to the ones that should fire.
func Due(evs []Evaluation) []Evaluation {
	var out []Evaluation
	for _, ev := range evs {
		if ev.Due {
			out = append(out, ev)
		}
	}
	return out
}

// EvaluateRecord is the pure single-record check.
func EvaluateRecord(now time.Time, r BirthdayRecord, us UserSettings) (Evaluation, error) {
	loc, fallback := ResolveLocation(r.Timezone, us.Timezone)
	local := now.In(loc)

	ev := Evaluation{
		Record:     r,
		LocalTime:  local,
		Timezone:   loc.String(),
		TZFallback: fallback,
		Times:      EffectiveTimes(r, us),
	}

	bd, err := ParseDate(r.BirthDate)
	if err != nil {
		ev.Err = fmt.Errorf("record %s: %w", r.ID, err)
		return ev, ev.Err
	}
	ev.Age = local.Year() - bd.Year()
	ev.BirthdayToday = local.Month() == bd.Month() && local.Day() == bd.Day()
	if !ev.BirthdayToday {
		return ev, nil
	}

	clock := fmt.Sprintf("%02d:%02d:00", local.Hour(), local.Minute())
	for _, t := range ev.Times {
		if t == clock {
			ev.Due = true
			ev.MatchedTime = clock
			break
		}
	}
	return ev, nil
}

// EffectiveTimes merges the record's times, its legacy single time and the user's
// global defaults. Entries are normalized to HH:MM:SS, deduplicated in first-seen
// order; entries that do not parse are dropped.
func EffectiveTimes(r BirthdayRecord, us UserSettings) []string {
	sources := make([]string, 0, len(r.NotificationTimes)+len(us.DefaultTimes)+2)
	sources = append(sources, r.NotificationTimes...)
	sources = append(sources, r.NotificationTime)
	sources = append(sources, us.DefaultTimes...)
	sources = append(sources, us.DefaultTime)

	out := make([]string, 0, len(sources))
	for _, s := range sources {
		n, err := NormalizeClock(s)
		if err != nil {
			continue
		}
		out = appendUnique(out, n)
	}
	return out
}

// Upcoming is one birthday within a look-ahead window.
type Upcoming struct {
	Record    BirthdayRecord
	Date      time.Time // next occurrence, midnight in Timezone
	DaysUntil int       // 0 means today
	Turning   int
	Timezone  string
}

// UpcomingBirthdays lists records whose next birthday falls within days of now,
// each computed in the record's effective timezone. Sorted soonest first.
// Malformed records are skipped.
func UpcomingBirthdays(now time.Time, records []BirthdayRecord, settings map[string]UserSettings, days int) []Upcoming {
	var out []Upcoming
	for _, r := range records {
		bd, err := ParseDate(r.BirthDate)
		if err != nil {
			continue
		}
		loc, _ := ResolveLocation(r.Timezone, settings[r.UserID].Timezone)
		local := now.In(loc)
		today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

		next, ok := nextOccurrence(today, bd)
		if !ok {
			continue
		}
		d := calendarDays(today, next)
		if d > days {
			continue
		}
		out = append(out, Upcoming{
			Record:    r,
			Date:      next,
			DaysUntil: d,
			Turning:   next.Year() - bd.Year(),
			Timezone:  loc.String(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].Record.FullName() < out[j].Record.FullName()
	})
	return out
}

// nextOccurrence finds the first date on or after today with the birth month/day.
// February 29 only occurs in leap years.
func nextOccurrence(today, bd time.Time) (time.Time, bool) {
	for y := today.Year(); y <= today.Year()+8; y++ {
		c := time.Date(y, bd.Month(), bd.Day(), 0, 0, 0, 0, today.Location())
		if c.Month() != bd.Month() || c.Day() != bd.Day() {
			continue
		}
		if !c.Before(today) {
			return c, true
		}
	}
	return time.Time{}, false
}

// calendarDays counts whole days between two local midnights, DST-safe.
func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
