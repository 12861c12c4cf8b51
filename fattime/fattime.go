// Package fattime converts between the packed FAT date/time word pair and
// seconds since the Unix epoch.
//
// The date word holds a 7-bit year offset from 1980, a 4-bit month and a
// 5-bit day. The time word holds a 5-bit hour, a 6-bit minute and a 5-bit
// count of two-second units. Conversions are UTC.
package fattime

import "time"

const secondsPerDay = 86400

// fastYear is a reference point used to shortcut the day loop.
const (
	fastYear = 2018
	fastDays = 1514764800 / secondsPerDay
)

var daysInMonth = [2][12]int64{
	{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func leapIndex(year int) int {
	if IsLeap(year) {
		return 1
	}
	return 0
}

// daysBefore returns the number of days from 1970-01-01 to the first day
// of year.
func daysBefore(year int) int64 {
	var days int64
	y := 1970
	if year > fastYear {
		days, y = fastDays, fastYear
	}
	for ; y < year; y++ {
		days += 365 + int64(leapIndex(y))
	}
	return days
}

// Decode returns the Unix time for a packed date/time pair. A zero pair
// means "no timestamp" and decodes to 0.
func Decode(date, tm uint16) int64 {
	if date == 0 && tm == 0 {
		return 0
	}

	year := int(date>>9&0x7F) + 1980
	month := int(date >> 5 & 0x0F)
	day := int64(date & 0x1F)

	days := daysBefore(year)
	leap := leapIndex(year)
	for m := 0; m < month-1 && m < 12; m++ {
		days += daysInMonth[leap][m]
	}
	days += day - 1

	secs := days * secondsPerDay
	secs += int64(tm>>11) * 3600
	secs += int64(tm>>5&0x3F) * 60
	secs += int64(tm&0x1F) * 2
	return secs
}

// Encode packs a Unix time. Dates in or before 1980 cannot be represented
// and encode to the zero pair.
func Encode(sec int64) (date, tm uint16) {
	t := time.Unix(sec, 0).UTC()
	if t.Year() <= 1980 {
		return 0, 0
	}
	date = uint16((t.Year()-1980)&0x7F)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

// ToTime decodes a packed pair into a time.Time. The zero pair yields the
// zero time.
func ToTime(date, tm uint16) time.Time {
	if date == 0 && tm == 0 {
		return time.Time{}
	}
	return time.Unix(Decode(date, tm), 0).UTC()
}

// FromTime encodes t. The zero time encodes to the zero pair.
func FromTime(t time.Time) (date, tm uint16) {
	if t.IsZero() {
		return 0, 0
	}
	return Encode(t.Unix())
}
