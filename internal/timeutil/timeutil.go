// Package timeutil converts the job queue's local timestamps into absolute
// instants and computes check lead times.
//
// Scheduled execution times arrive as "YYYY/MM/DD HH:mm" wall-clock strings in
// Asia/Shanghai. Everything past parsing works on time.Time values.
package timeutil

import (
	"strings"
	"sync"
	"time"
)

// ShanghaiTZ is the zone every scheduled execution time is expressed in.
const ShanghaiTZ = "Asia/Shanghai"

const (
	scheduledLayout = "2006/01/02 15:04"
	displayLayout   = "2006-01-02 15:04:05"
)

var (
	locOnce sync.Once
	loc     *time.Location
)

// Location returns the Asia/Shanghai location. Without tzdata on the host it
// falls back to a fixed UTC+8 zone (no DST in that zone, so the offset is exact).
func Location() *time.Location {
	locOnce.Do(func() {
		l, err := time.LoadLocation(ShanghaiTZ)
		if err != nil {
			l = time.FixedZone(ShanghaiTZ, 8*60*60)
		}
		loc = l
	})
	return loc
}

// ParseScheduledTime parses a strict "YYYY/MM/DD HH:mm" string in Asia/Shanghai.
// It returns false for empty or malformed input.
func ParseScheduledTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	// time.ParseInLocation accepts single-digit hours for "15"; the format is
	// fixed-width, so reject anything that isn't exactly the layout length.
	if len(raw) != len(scheduledLayout) || strings.TrimSpace(raw) != raw {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(scheduledLayout, raw, Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MinutesBefore returns t minus the given (possibly fractional) number of minutes.
func MinutesBefore(t time.Time, minutes float64) time.Time {
	return t.Add(-time.Duration(minutes * float64(time.Minute)))
}

// Until returns t - now, clamped at zero so past due times fire immediately.
func Until(t, now time.Time) time.Duration {
	d := t.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// MillisUntil is Until expressed in whole milliseconds.
func MillisUntil(t, now time.Time) int64 {
	return Until(t, now).Milliseconds()
}

// FormatDateTime renders t as "YYYY-MM-DD HH:mm:ss" in Asia/Shanghai. Logging only.
func FormatDateTime(t time.Time) string {
	return t.In(Location()).Format(displayLayout)
}
