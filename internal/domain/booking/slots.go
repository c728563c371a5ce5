package booking

import (
	"fmt"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	slotLayout   = "03:04 PM"
	firstSlot    = 6 * time.Hour
	lastSlot     = 17*time.Hour + 30*time.Minute
	slotInterval = 30 * time.Minute
)

// TimeSlot is one half-hour collection window.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// blockedSlots are never offered.
var blockedSlots = map[string]bool{
	"09:30 AM": true,
	"12:00 PM": true,
	"04:30 PM": true,
}

// DaySlots lists the 24 half-hour slots from 06:00 AM to 05:30 PM.
func DaySlots() []TimeSlot {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []TimeSlot
	for off := firstSlot; off <= lastSlot; off += slotInterval {
		label := base.Add(off).Format(slotLayout)
		out = append(out, TimeSlot{Time: label, Available: !blockedSlots[label]})
	}
	return out
}

// slotAvailable reports whether label is a known, bookable slot.
func slotAvailable(label string) bool {
	for _, s := range DaySlots() {
		if s.Time == label {
			return s.Available
		}
	}
	return false
}

// minDate is the first bookable day: tomorrow in loc.
func minDate(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// parseDate reads a YYYY-MM-DD date in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
