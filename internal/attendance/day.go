package attendance

import (
	"time"

	"absensi/internal/model"
)

const (
	dateLayout    = "2006-01-02"
	tanggalLayout = "02 January 2006"
	jamLayout     = "15:04:05"
)

// DayBounds returns the inclusive [00:00:00, 23:59:59] window of t's calendar
// day in loc, formatted like the stored timestamps.
func DayBounds(t time.Time, loc *time.Location) (start, end string) {
	day := t.In(loc).Format(dateLayout)
	return day + " 00:00:00", day + " 23:59:59"
}

// endOfDay is the first instant of the next local day.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func formatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(model.TimestampLayout)
}
