package domain

import "time"

// UpdateHourUTC is the hour at which NOAA's daily MUR analysis is considered
// published. Before this hour the freshest available field is still
// yesterday's.
const UpdateHourUTC = 12

// EffectiveCacheDate returns the logical dataset date (YYYY-MM-DD) for a
// given instant: before the daily cutover the calendar date is rolled back
// one day so cache entries keep matching until new data actually exists.
func EffectiveCacheDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() < UpdateHourUTC {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("2006-01-02")
}

// CurrentCacheDate returns the logical dataset date for the current instant.
func CurrentCacheDate() string {
	return EffectiveCacheDate(clock.Now())
}
