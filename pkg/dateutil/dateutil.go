package dateutil

import (
	"fmt"
	"time"
)

// DateLayout is the civil date wire format used everywhere in the API.
const DateLayout = "2006-01-02"

// TimeLayout is the slot time-of-day wire format.
const TimeLayout = "15:04"

const (
	// OpeningHour and ClosingHour bound the daily booking window.
	// Slots start at 08:00 and the last one starts at 19:30.
	OpeningHour = 8
	ClosingHour = 20

	// SlotMinutes is the fixed slot granularity.
	SlotMinutes = 30

	// MaxEligibleDates is how many bookable dates the availability
	// window offers, scanning at most MaxScanDays calendar days ahead.
	MaxEligibleDates = 30
	MaxScanDays      = 60
)

// ParseLocalDate interprets a YYYY-MM-DD string as a calendar date at
// local midnight. It splits the string into components rather than going
// through a generic parser, so the day never shifts under a UTC
// interpretation. Every date comparison in the service must go through
// this function.
func ParseLocalDate(s string) (time.Time, error) {
	var year, month, day int
	if _, err := fmt.Sscanf(s, "%4d-%2d-%2d", &year, &month, &day); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local), nil
}

// FormatLocalDate renders t as a YYYY-MM-DD civil date.
func FormatLocalDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SlotInstant combines a civil date and a HH:MM slot into the local
// instant the appointment starts at.
func SlotInstant(date, slot string) (time.Time, error) {
	d, err := ParseLocalDate(date)
	if err != nil {
		return time.Time{}, err
	}
	var hour, minute int
	if _, err := fmt.Sscanf(slot, "%2d:%2d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", slot, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q", slot)
	}
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// HolidaySet is a lookup of non-bookable civil dates.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from YYYY-MM-DD strings.
func NewHolidaySet(dates []string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Contains reports whether the civil date is a holiday.
func (h HolidaySet) Contains(date string) bool {
	_, ok := h[date]
	return ok
}

// AvailableDates returns up to MaxEligibleDates upcoming bookable civil
// dates starting from today, scanning at most MaxScanDays days forward
// and skipping holidays. Weekends are bookable on purpose: the clinic
// takes Saturday and Sunday appointments.
func AvailableDates(today time.Time, holidays HolidaySet) []string {
	dates := make([]string, 0, MaxEligibleDates)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
	for scanned := 0; scanned < MaxScanDays && len(dates) < MaxEligibleDates; scanned++ {
		s := FormatLocalDate(day)
		if !holidays.Contains(s) {
			dates = append(dates, s)
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

// AvailableTimes returns the fixed ordered sequence of slot start times,
// 08:00 inclusive through 20:00 exclusive at 30-minute steps.
func AvailableTimes() []string {
	times := make([]string, 0, (ClosingHour-OpeningHour)*60/SlotMinutes)
	for hour := OpeningHour; hour < ClosingHour; hour++ {
		for minute := 0; minute < 60; minute += SlotMinutes {
			times = append(times, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return times
}

// ValidSlot reports whether slot is one of the bookable start times.
func ValidSlot(slot string) bool {
	for _, t := range AvailableTimes() {
		if t == slot {
			return true
		}
	}
	return false
}
