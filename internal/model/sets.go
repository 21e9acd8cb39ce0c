package model

import "time"

// Categories is the fixed category set products are drawn from.
var Categories = []string{"Electronics", "Fashion", "Home & Garden", "Sports", "Books"}

// Regions is the fixed region set orders are attributed to.
var Regions = []string{"North America", "Europe", "Asia-Pacific", "Latin America"}

// TimeLayout is the persisted ISO-8601 form of timestamps. It is fixed width in UTC so
// that lexical order of stored strings matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in the persisted layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. RFC 3339 values written by other tools are
// accepted as well.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, s)
	if err2 != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
