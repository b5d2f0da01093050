package earnings

import (
	"fmt"
	"time"
)

// Period is the resolved sync window for one granularity.
// Start/End bound the deal-history fetch ([Start, End), End being "now");
// BucketStart/BucketEnd identify the stored record's bucket, so repeated
// syncs within the same period land on the same row.
type Period struct {
	Type        string
	Start       time.Time
	End         time.Time
	BucketStart time.Time
	BucketEnd   time.Time
}

// ResolvePeriod computes the canonical window for a period type at a given
// time. Weeks are ISO weeks: they start Monday 00:00:00 local, and Sunday
// belongs to the week that began six days earlier.
func ResolvePeriod(periodType string, now time.Time) (Period, error) {
	switch periodType {
	case PeriodWeekly:
		// Weekday() has Sunday=0, so shift to a Monday=0 week
		offset := (int(now.Weekday()) + 6) % 7
		start := midnight(now).AddDate(0, 0, -offset)
		return Period{
			Type:        PeriodWeekly,
			Start:       start,
			End:         now,
			BucketStart: start,
			BucketEnd:   start.AddDate(0, 0, 7),
		}, nil

	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Period{
			Type:        PeriodMonthly,
			Start:       start,
			End:         now,
			BucketStart: start,
			BucketEnd:   start.AddDate(0, 1, 0),
		}, nil

	default:
		return Period{}, fmt.Errorf("unknown period type: %q", periodType)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
