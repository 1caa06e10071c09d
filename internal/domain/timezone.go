package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrHostTimezone = errors.New(`timezone "Local" is not allowed`)

// TZMode tells how a stored timezone value should be interpreted.
type TZMode int

const (
	TZUnset TZMode = iota
	TZExplicit
	TZAuto     // browser detection requested; resolved at write time, unset at evaluation
	TZDisabled // always UTC
)

const (
	tzAutoValue     = "auto"
	tzDisabledValue = "disabled"
)

// Timezone is a tagged variant over the stored timezone string.
type Timezone struct {
	Mode TZMode
	Zone string // IANA name, only for TZExplicit
}

// ParseTimezone maps a stored string to its variant. It does not load the zone.
func ParseTimezone(s string) Timezone {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return Timezone{Mode: TZUnset}
	case tzAutoValue:
		return Timezone{Mode: TZAuto}
	case tzDisabledValue:
		return Timezone{Mode: TZDisabled}
	}
	return Timezone{Mode: TZExplicit, Zone: s}
}

// Explicit returns an explicit zone variant.
func Explicit(zone string) Timezone { return Timezone{Mode: TZExplicit, Zone: zone} }

// String returns the storage form.
func (tz Timezone) String() string {
	switch tz.Mode {
	case TZExplicit:
		return tz.Zone
	case TZAuto:
		return tzAutoValue
	case TZDisabled:
		return tzDisabledValue
	}
	return ""
}

// ResolveLocation picks the effective location for a record.
// The record zone wins when explicit; a record set to disabled forces UTC.
// Otherwise the user zone applies when explicit, else UTC.
// fallback is true when an explicit zone failed to load and UTC was used instead.
func ResolveLocation(record, user Timezone) (loc *time.Location, fallback bool) {
	switch record.Mode {
	case TZExplicit:
		return loadOrUTC(record.Zone)
	case TZDisabled:
		return time.UTC, false
	}
	if user.Mode == TZExplicit {
		return loadOrUTC(user.Zone)
	}
	return time.UTC, false
}

func loadOrUTC(zone string) (*time.Location, bool) {
	loc, err := loadZone(zone)
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := loadZone(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// loadZone loads an IANA zone. "Local" is refused: it names the host's zone.
func loadZone(zone string) (*time.Location, error) {
	if strings.EqualFold(strings.TrimSpace(zone), "local") {
		return nil, ErrHostTimezone
	}
	return time.LoadLocation(zone)
}
