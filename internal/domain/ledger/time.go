package ledger

import "time"

// RippleEpochOffset is seconds between the Unix epoch and 2000-01-01T00:00:00Z.
const RippleEpochOffset = 946684800

func ToRippleTime(t time.Time) uint32 {
	return uint32(t.Unix() - RippleEpochOffset)
}

func FromRippleTime(s uint32) time.Time {
	return time.Unix(int64(s)+RippleEpochOffset, 0).UTC()
}

// MaturityFor is midnight of the due date's calendar day in zone, as UTC.
// The calendar day is taken from the stored date, never from the host zone.
func MaturityFor(due time.Time, zone *time.Location) time.Time {
	y, m, d := due.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone).UTC()
}

// ParseOffset turns "+08:00" / "-05:30" / "Z" into a fixed zone.
func ParseOffset(s string) (*time.Location, error) {
	if s == "" || s == "Z" || s == "UTC" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, err
	}
	_, off := t.Zone()
	return time.FixedZone("UTC"+s, off), nil
}
