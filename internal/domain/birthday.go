package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxNotificationTimes caps per-record notification times.
const MaxNotificationTimes = 5

var ErrInvalidRecord = errors.New("invalid birthday record")

// BirthdayRecord is one member whose birthday a user wants to be reminded of.
type BirthdayRecord struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	BirthDate string // YYYY-MM-DD; parsed lazily so one malformed row stays isolated
	Phone     string
	Email     string
	Notes     string

	NotificationEnabled bool
	NotificationTime    string   // legacy single time, optional
	NotificationTimes   []string // 0..MaxNotificationTimes
	Timezone            Timezone

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name.
func (r BirthdayRecord) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Validate checks a record before it is written and normalizes its time fields in place.
func (r *BirthdayRecord) Validate(now time.Time) error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.FirstName == "" {
		return fmt.Errorf("%w: first name is required", ErrInvalidRecord)
	}
	if r.LastName == "" {
		return fmt.Errorf("%w: last name is required", ErrInvalidRecord)
	}

	bd, err := ParseDate(r.BirthDate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if bd.After(now) {
		return fmt.Errorf("%w: birth date is in the future", ErrInvalidRecord)
	}
	r.BirthDate = FormatDate(bd)

	if len(r.NotificationTimes) > MaxNotificationTimes {
		return fmt.Errorf("%w: at most %d notification times", ErrInvalidRecord, MaxNotificationTimes)
	}
	times := make([]string, 0, len(r.NotificationTimes))
	for _, t := range r.NotificationTimes {
		n, err := NormalizeClock(t)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		times = appendUnique(times, n)
	}
	r.NotificationTimes = times

	if strings.TrimSpace(r.NotificationTime) != "" {
		n, err := NormalizeClock(r.NotificationTime)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		r.NotificationTime = n
	} else {
		r.NotificationTime = ""
	}

	if r.Timezone.Mode == TZExplicit {
		zone, err := ValidateTZ(r.Timezone.Zone)
		if err != nil {
			return fmt.Errorf("%w: timezone %q", ErrInvalidRecord, r.Timezone.Zone)
		}
		r.Timezone.Zone = zone
	}
	return nil
}

// AgeOn returns completed years between birth and the calendar day of at.
// A February 29 birthday completes a year on March 1 in common years.
func AgeOn(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
