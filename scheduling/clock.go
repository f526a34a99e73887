package scheduling

import "time"

// Clock supplies "now" to the engine. The production clock runs on a fixed
// civil offset (the office operates in a single zone with no DST); tests
// inject a frozen clock instead.
type Clock interface {
	Now() time.Time
}

type fixedClock struct {
	loc *time.Location
}

// NewFixedClock returns a clock pinned to a fixed UTC offset in hours.
func NewFixedClock(offsetHours int) Clock {
	return fixedClock{loc: time.FixedZone("OFFICE", offsetHours*3600)}
}

func (c fixedClock) Now() time.Time {
	return time.Now().In(c.loc)
}
