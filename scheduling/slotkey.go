package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format for slot and appointment dates.
	DateLayout = "2006-01-02"
	// TimeLabelLayout is the strict format for slot time labels, e.g. "9:00 AM".
	// Slot and appointment labels must match character for character; the label
	// is the join key between the two tables.
	TimeLabelLayout = "3:04 PM"
)

// SlotKey is the composite natural key shared by a slot and the appointments
// booked against it: a calendar date plus a display time label. Both sides
// must carry the exact same strings, so construction is validated up front
// instead of letting formatting drift produce silent non-matches.
type SlotKey struct {
	Date      string
	TimeLabel string
}

// NewSlotKey validates and normalizes a (date, time label) pair.
func NewSlotKey(date, timeLabel string) (SlotKey, error) {
	date = strings.TrimSpace(date)
	timeLabel = strings.TrimSpace(timeLabel)

	if _, err := time.Parse(DateLayout, date); err != nil {
		return SlotKey{}, fmt.Errorf("%w: date must be yyyy-mm-dd, got %q", ErrInvalidInput, date)
	}
	if _, err := ParseTimeLabel(timeLabel); err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Date: date, TimeLabel: timeLabel}, nil
}

// ParseTimeLabel parses a slot time label such as "9:00 AM". The format is
// strict; anything else is invalid input.
func ParseTimeLabel(label string) (time.Time, error) {
	t, err := time.Parse(TimeLabelLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time label must look like %q, got %q", ErrInvalidInput, "9:00 AM", label)
	}
	return t, nil
}

// At resolves the key to the wall-clock instant it names in loc.
func (k SlotKey) At(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, k.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be yyyy-mm-dd, got %q", ErrInvalidInput, k.Date)
	}
	t, err := ParseTimeLabel(k.TimeLabel)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// MinuteOfDay returns the label's offset from midnight, used for
// chronological ordering of labels within one date.
func (k SlotKey) MinuteOfDay() (int, error) {
	t, err := ParseTimeLabel(k.TimeLabel)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (k SlotKey) String() string {
	return k.Date + " " + k.TimeLabel
}
