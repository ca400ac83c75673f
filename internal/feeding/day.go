package feeding

import "time"

// DayKey is a UTC calendar day in YYYY-MM-DD form. All day-bucketed feeding
// state compares these strings; two actions share a bucket exactly when their
// UTC dates match.
type DayKey string

const dayKeyLayout = "2006-01-02"

// DayOf buckets an instant into its UTC calendar day.
func DayOf(t time.Time) DayKey {
	return DayKey(t.UTC().Format(dayKeyLayout))
}

// String returns the raw key.
func (d DayKey) String() string {
	return string(d)
}

// IsZero reports whether the key is unset.
func (d DayKey) IsZero() bool {
	return d == ""
}
