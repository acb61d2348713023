package core

import "time"

// TimeQuality flag bits in the trailing octet of a UtcTime value.
const (
	tqLeapSecondsKnown     = 0x80
	tqClockFailure         = 0x40
	tqClockNotSynchronized = 0x20
	tqAccuracyMask         = 0x1F
)

// TimeQuality is the quality octet of an 8-octet UtcTime value.
// Accuracy holds the number of significant bits in the fraction field;
// 0x1F means unspecified.
type TimeQuality struct {
	LeapSecondsKnown     bool
	ClockFailure         bool
	ClockNotSynchronized bool
	Accuracy             uint8
}

// TimeQualityFromByte unpacks the flag bits and the 5-bit accuracy.
func TimeQualityFromByte(b byte) TimeQuality {
	return TimeQuality{
		LeapSecondsKnown:     b&tqLeapSecondsKnown != 0,
		ClockFailure:         b&tqClockFailure != 0,
		ClockNotSynchronized: b&tqClockNotSynchronized != 0,
		Accuracy:             b & tqAccuracyMask,
	}
}

// Byte packs the quality back into its wire form. Accuracy values
// above 31 are truncated to the 5-bit field.
func (q TimeQuality) Byte() byte {
	b := q.Accuracy & tqAccuracyMask
	if q.LeapSecondsKnown {
		b |= tqLeapSecondsKnown
	}
	if q.ClockFailure {
		b |= tqClockFailure
	}
	if q.ClockNotSynchronized {
		b |= tqClockNotSynchronized
	}
	return b
}

// Timestamp is the 61850 UtcTime: seconds since the Unix epoch, a
// 24-bit binary fraction of a second, and a quality octet.
type Timestamp struct {
	Seconds  uint32
	Fraction uint32 // 24-bit, seconds × 2^24
	Quality  TimeQuality
}

// Now captures the current wall clock as a UtcTime with leap seconds
// known and unspecified accuracy.
func Now() Timestamp {
	return TimestampFromTime(time.Now())
}

// TimestampFromTime converts a time.Time, rounding the nanosecond part
// down to the 24-bit fraction grid.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{
		Seconds:  uint32(t.Unix()),
		Fraction: uint32(uint64(t.Nanosecond()) << 24 / 1_000_000_000),
		Quality:  TimeQuality{LeapSecondsKnown: true, Accuracy: tqAccuracyMask},
	}
}

// Nanoseconds converts the 24-bit fraction to nanoseconds.
func (t Timestamp) Nanoseconds() uint32 {
	return uint32(uint64(t.Fraction) * 1_000_000_000 >> 24)
}

// Time converts the timestamp to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanoseconds())).UTC()
}
