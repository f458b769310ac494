// Package format turns wire-level numbers and timestamps into display strings.
//
// Every function here is pure and total: no errors, no side effects. The
// date layouts follow the en-US style the pages are written in
// ("Jan 2, 2006" and "Jan 2, 2006, 03:04 PM").
package format

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sakif/skillswap/internal/model"
)

const (
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006, 03:04 PM"
)

// Credits renders a credit value as a plain decimal string.
func Credits(credits uint64) string {
	return strconv.FormatUint(credits, 10)
}

// Date renders a timestamp as a date in the local calendar.
func Date(ts model.Time) string {
	return DateIn(ts, time.Local)
}

// DateTime renders a timestamp as a date and time in the local calendar.
func DateTime(ts model.Time) string {
	return DateTimeIn(ts, time.Local)
}

// DateIn is Date for an explicit location. A nil location means UTC.
func DateIn(ts model.Time, loc *time.Location) string {
	return toTime(ts, loc).Format(dateLayout)
}

// DateTimeIn is DateTime for an explicit location. A nil location means UTC.
func DateTimeIn(ts model.Time, loc *time.Location) string {
	return toTime(ts, loc).Format(dateTimeLayout)
}

// Ago renders a timestamp relative to now, like "3 days ago".
func Ago(ts model.Time) string {
	return AgoFrom(ts, time.Now())
}

// AgoFrom is Ago relative to an explicit instant.
func AgoFrom(ts model.Time, now time.Time) string {
	return humanize.RelTime(toTime(ts, time.UTC), now, "ago", "from now")
}

// toTime converts nanoseconds to a time.Time at millisecond precision,
// which is all a display string ever shows.
func toTime(ts model.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(int64(ts) / int64(time.Millisecond)).In(loc)
}
