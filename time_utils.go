package odbcarrow

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

const microsPerDay = 24 * 60 * 60 * 1000000

// timeFromSQLDate converts an ODBC date to a Go time.Time at midnight UTC.
func timeFromSQLDate(d sqlDateStruct) time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// timeFromSQLTime converts an ODBC time of day to a Go time.Time on the zero
// date (0000-01-01) in UTC.
func timeFromSQLTime(t sqlTimeStruct) time.Time {
	return time.Date(0, time.January, 1, int(t.Hour), int(t.Minute), int(t.Second), 0, time.UTC)
}

// timeFromSQLTimestamp converts an ODBC timestamp to a Go time.Time in UTC.
// The fraction field is in nanoseconds.
func timeFromSQLTimestamp(ts sqlTimestampStruct) time.Time {
	return time.Date(int(ts.Year), time.Month(ts.Month), int(ts.Day),
		int(ts.Hour), int(ts.Minute), int(ts.Second), int(ts.Fraction), time.UTC)
}

// Date32FromTime converts a Go time.Time to an Arrow date (days since the
// Unix epoch).
func Date32FromTime(t time.Time) arrow.Date32 {
	return arrow.Date32FromTime(t.UTC())
}

// Time64FromTime converts the clock part of a Go time.Time to an Arrow
// time of day in microseconds.
func Time64FromTime(t time.Time) arrow.Time64 {
	hour, min, sec := t.Clock()

	// Calculate microseconds since midnight
	micros := int64(hour)*3600*1000000 + int64(min)*60*1000000 + int64(sec)*1000000 + int64(t.Nanosecond())/1000

	return arrow.Time64(micros % microsPerDay)
}

// TimestampFromTime converts a Go time.Time to an Arrow timestamp in
// microseconds since the Unix epoch.
func TimestampFromTime(t time.Time) arrow.Timestamp {
	t = t.UTC()

	// Calculate microseconds since Unix epoch
	micros := t.Unix()*1000000 + int64(t.Nanosecond())/1000

	return arrow.Timestamp(micros)
}

// TimeFromTimestamp converts an Arrow microsecond timestamp to a Go time.Time.
func TimeFromTimestamp(ts arrow.Timestamp) time.Time {
	micros := int64(ts)
	seconds := micros / 1000000
	nanos := (micros % 1000000) * 1000

	return time.Unix(seconds, nanos).UTC()
}
