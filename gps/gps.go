// Package gps converts between calendar time and GPS time: elapsed seconds
// since the GPS epoch (1980-01-06T00:00:00Z), which unlike UTC is not
// adjusted for leap seconds. Class-B beacon and ping-slot timing in the
// downlink scheduler is expressed in GPS time, per the regional parameters'
// beacon frame format.
package gps

import "time"

var gpsEpochTime = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// leapSeconds lists the UTC instants, in order, after which the cumulative
// GPS-UTC offset increases by one second.
var leapSeconds = []time.Time{
	time.Date(1981, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1982, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1983, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1985, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1988, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1992, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1993, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1994, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1997, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2006, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2012, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC),
}

func leapOffset(t time.Time) time.Duration {
	var n int
	for _, ls := range leapSeconds {
		if !t.Before(ls) {
			n++
		}
	}
	return time.Duration(n) * time.Second
}

// Time represents a timestamp as elapsed GPS time rather than a calendar
// instant.
type Time time.Time

// TimeSinceGPSEpoch returns the GPS time elapsed since the GPS epoch.
func (t Time) TimeSinceGPSEpoch() time.Duration {
	ct := time.Time(t)
	return ct.Sub(gpsEpochTime) + leapOffset(ct)
}

// NewTimeFromTimeSinceGPSEpoch returns the Time d after the GPS epoch.
func NewTimeFromTimeSinceGPSEpoch(d time.Duration) Time {
	var offset time.Duration
	for i := 0; i < 4; i++ {
		t := gpsEpochTime.Add(d - offset)
		next := leapOffset(t)
		if next == offset {
			return Time(t)
		}
		offset = next
	}
	return Time(gpsEpochTime.Add(d - offset))
}
